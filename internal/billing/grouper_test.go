package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-billing/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(id, product, price string, qty int, c domain.Consumer, at int) domain.OrderLine {
	return domain.OrderLine{
		ID:              id,
		OrderID:         "order-1",
		ProductName:     product,
		UnitPrice:       dec(price),
		Quantity:        qty,
		Remaining:       qty,
		Consumer:        c,
		DiscountPercent: decimal.Zero,
		PrepStatus:      domain.PrepNone,
		CreatedAt:       t0.Add(time.Duration(at) * time.Minute),
	}
}

func TestGroupLines_OneGroupPerOccupantAndOneShared(t *testing.T) {
	occupants := []domain.Occupant{{ID: "ana", Name: "Ana"}, {ID: "bia", Name: "Bia"}}
	lines := []domain.OrderLine{
		line("l1", "Suco", "8.00", 1, domain.OccupantConsumer("ana"), 1),
	}

	groups := GroupLines(lines, occupants, "ana")

	require.Len(t, groups, 3)
	assert.Equal(t, "Ana", groups[0].OccupantName)
	assert.True(t, groups[0].Principal)
	assert.Len(t, groups[0].Lines, 1)
	assert.Equal(t, "Bia", groups[1].OccupantName)
	assert.Empty(t, groups[1].Lines)
	assert.True(t, groups[1].Subtotal.IsZero())
	assert.True(t, groups[2].Consumer.IsShared())
}

func TestGroupLines_MergesByProductNameKeepingEarliestAsRepresentative(t *testing.T) {
	later := line("l2", "Chopp", "12.00", 1, domain.Shared(), 5)
	later.DiscountPercent = dec("50")
	later.DiscountReason = "happy hour"
	lines := []domain.OrderLine{
		later,
		line("l1", "Chopp", "12.00", 2, domain.Shared(), 1),
		line("l3", "Fritas", "20.00", 1, domain.Shared(), 2),
	}

	shared, ok := SharedGroup(GroupLines(lines, nil, ""))
	require.True(t, ok)
	require.Len(t, shared.Lines, 2)

	chopp := shared.Lines[0]
	assert.Equal(t, "Chopp", chopp.ProductName)
	assert.Equal(t, 3, chopp.Quantity)
	assert.Equal(t, "l1", chopp.RepresentativeID)
	assert.True(t, chopp.DiscountPercent.IsZero())
	assert.Equal(t, []string{"l1", "l2"}, chopp.LineIDs)
	assert.True(t, chopp.Merged())
	// 2 × 12 + 1 × 12 × 0.5
	assert.True(t, dec("30").Equal(chopp.Subtotal), chopp.Subtotal.String())

	assert.False(t, shared.Lines[1].Merged())
	assert.True(t, dec("50").Equal(shared.Subtotal))
}

func TestGroupLines_SkipsSettledLinesAndUsesRemaining(t *testing.T) {
	paid := line("l1", "Agua", "5.00", 2, domain.Shared(), 1)
	paid.Remaining = 0
	half := line("l2", "Pizza", "40.00", 2, domain.Shared(), 2)
	half.Remaining = 1

	shared, _ := SharedGroup(GroupLines([]domain.OrderLine{paid, half}, nil, ""))

	require.Len(t, shared.Lines, 1)
	assert.Equal(t, 1, shared.Lines[0].Quantity)
	assert.True(t, dec("40").Equal(shared.Subtotal))
}

func TestGroupLines_KeepsLinesOfUnseatedOccupants(t *testing.T) {
	lines := []domain.OrderLine{
		line("l1", "Cafe", "6.00", 1, domain.OccupantConsumer("gone"), 1),
	}

	groups := GroupLines(lines, nil, "")

	require.Len(t, groups, 2)
	id, ok := groups[0].Consumer.OccupantID()
	require.True(t, ok)
	assert.Equal(t, "gone", id)
	assert.True(t, dec("6").Equal(groups[0].Subtotal))
}

func TestGroupLines_Conservation(t *testing.T) {
	occupants := []domain.Occupant{{ID: "a"}, {ID: "b"}}
	consumers := []domain.Consumer{domain.OccupantConsumer("a"), domain.OccupantConsumer("b"), domain.Shared(), domain.OccupantConsumer("x")}
	products := []string{"Chopp", "Fritas", "Picanha"}
	prices := []string{"12.50", "19.90", "0", "7.33"}
	discounts := []string{"0", "10", "33.3", "100"}

	var lines []domain.OrderLine
	want := decimal.Zero
	n := 0
	for i := 0; i < 48; i++ {
		l := line(
			"l"+decimal.NewFromInt(int64(i)).String(),
			products[i%len(products)],
			prices[i%len(prices)],
			i%4,
			consumers[i%len(consumers)],
			i%7,
		)
		l.DiscountPercent = dec(discounts[(i/3)%len(discounts)])
		if i%5 == 0 && l.Quantity > 0 {
			l.Remaining = l.Quantity - 1
		}
		lines = append(lines, l)
		want = want.Add(LinePrice(l))
		if l.Eligible() {
			n++
		}
	}

	groups := GroupLines(lines, occupants, "a")

	got := decimal.Zero
	seen := map[string]int{}
	for _, g := range groups {
		sum := decimal.Zero
		for _, gl := range g.Lines {
			sum = sum.Add(gl.Subtotal)
			for _, id := range gl.LineIDs {
				seen[id]++
			}
		}
		assert.True(t, sum.Equal(g.Subtotal))
		got = got.Add(g.Subtotal)
	}
	assert.True(t, want.Equal(got), "want %s got %s", want, got)
	assert.Len(t, seen, n)
	for id, c := range seen {
		assert.Equal(t, 1, c, id)
	}
}
