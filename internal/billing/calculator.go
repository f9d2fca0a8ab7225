package billing

import (
	"github.com/shopspring/decimal"

	"restaurant-billing/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// DefaultTipRate is the house service charge.
var DefaultTipRate = decimal.RequireFromString("0.10")

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tip        decimal.Decimal `json:"tip"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	TipEnabled bool            `json:"tip_enabled"`
	TipRate    decimal.Decimal `json:"tip_rate"`
}

type Calculator struct {
	TipRate decimal.Decimal
}

func NewCalculator(tipRate decimal.Decimal) Calculator {
	return Calculator{TipRate: tipRate}
}

// DiscountedPrice is unit × qty × (1 − discount/100). Discounts are trusted
// here; the approval path clamps them to [0, 100].
func DiscountedPrice(unit decimal.Decimal, qty int, discountPercent decimal.Decimal) decimal.Decimal {
	if qty <= 0 {
		return decimal.Zero
	}
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return unit.Mul(decimal.NewFromInt(int64(qty))).Mul(factor)
}

// LinePrice prices the still-payable quantity of a line.
func LinePrice(l domain.OrderLine) decimal.Decimal {
	return DiscountedPrice(l.UnitPrice, l.Remaining, l.DiscountPercent)
}

// PortionPrice prices qty units of a line.
func PortionPrice(l domain.OrderLine, qty int) decimal.Decimal {
	return DiscountedPrice(l.UnitPrice, qty, l.DiscountPercent)
}

func (c Calculator) Tip(amount decimal.Decimal, enabled bool) decimal.Decimal {
	if !enabled {
		return decimal.Zero
	}
	return amount.Mul(c.TipRate)
}

func (c Calculator) Compute(groups []ConsumerGroup, tipEnabled bool) Totals {
	subtotal := decimal.Zero
	for _, g := range groups {
		subtotal = subtotal.Add(g.Subtotal)
	}
	tip := c.Tip(subtotal, tipEnabled)
	return Totals{
		Subtotal:   subtotal,
		Tip:        tip,
		GrandTotal: subtotal.Add(tip),
		TipEnabled: tipEnabled,
		TipRate:    c.TipRate,
	}
}

// Money rounds to cents for records and display.
func Money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
