package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"restaurant-billing/internal/domain"
)

func TestDiscountedPrice(t *testing.T) {
	cases := []struct {
		name     string
		unit     string
		qty      int
		discount string
		want     string
	}{
		{"no discount", "10.00", 3, "0", "30"},
		{"ten percent", "10.00", 2, "10", "18"},
		{"full discount", "42.00", 1, "100", "0"},
		{"zero quantity", "10.00", 0, "0", "0"},
		{"zero price", "0", 5, "15", "0"},
		{"fractional", "19.90", 3, "12.5", "52.2375"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DiscountedPrice(dec(tc.unit), tc.qty, dec(tc.discount))
			assert.True(t, dec(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestCompute_ScenarioA(t *testing.T) {
	l := line("l1", "Picanha", "10.00", 2, domain.Shared(), 0)
	l.DiscountPercent = dec("10")
	groups := GroupLines([]domain.OrderLine{l}, nil, "")
	calc := NewCalculator(DefaultTipRate)

	plain := calc.Compute(groups, false)
	assert.Equal(t, "18.00", plain.Subtotal.StringFixed(2))
	assert.True(t, plain.Tip.IsZero())
	assert.Equal(t, "18.00", plain.GrandTotal.StringFixed(2))

	tipped := calc.Compute(groups, true)
	assert.Equal(t, "1.80", tipped.Tip.StringFixed(2))
	assert.Equal(t, "19.80", tipped.GrandTotal.StringFixed(2))
}

func TestCompute_SumsEveryGroup(t *testing.T) {
	groups := []ConsumerGroup{
		{Subtotal: dec("12.30")},
		{Subtotal: dec("7.70")},
		{Subtotal: decimal.Zero},
	}

	got := NewCalculator(dec("0.15")).Compute(groups, true)

	assert.True(t, dec("20").Equal(got.Subtotal))
	assert.True(t, dec("3").Equal(got.Tip))
	assert.True(t, dec("23").Equal(got.GrandTotal))
	assert.True(t, got.TipEnabled)
}

func TestPortionPrice(t *testing.T) {
	l := line("l1", "Vinho", "90.00", 4, domain.Shared(), 0)
	l.DiscountPercent = dec("20")

	assert.True(t, dec("144").Equal(PortionPrice(l, 2)))
	assert.True(t, dec("288").Equal(LinePrice(l)))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "52.24", Money(dec("52.2375")).String())
}
