// Package billing merges order lines into consumer groups and prices them.
// Everything here is pure; callers load lines and occupants inside a ledger
// transaction and pass them in.
package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"restaurant-billing/internal/domain"
)

// GroupedLine aggregates the eligible lines of one consumer that share a
// product name. The earliest-created line is the representative.
type GroupedLine struct {
	ProductName      string          `json:"product_name"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	DiscountReason   string          `json:"discount_reason,omitempty"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	RepresentativeID string          `json:"representative_id"`
	LineIDs          []string        `json:"line_ids"`
}

// Merged reports whether more than one original line was folded in.
func (g GroupedLine) Merged() bool { return len(g.LineIDs) > 1 }

type ConsumerGroup struct {
	Consumer     domain.Consumer `json:"consumer"`
	OccupantName string          `json:"occupant_name,omitempty"`
	Principal    bool            `json:"principal,omitempty"`
	Lines        []GroupedLine   `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// GroupLines partitions eligible lines by consumer, then merges by product
// name. Every occupant passed in gets a group even without lines, and the
// table-general group is always last. Lines billed to an occupant who is no
// longer seated still get their own group so no line is dropped.
func GroupLines(lines []domain.OrderLine, occupants []domain.Occupant, principalID string) []ConsumerGroup {
	sorted := make([]domain.OrderLine, 0, len(lines))
	for _, l := range lines {
		if l.Eligible() {
			sorted = append(sorted, l)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	groups := make([]ConsumerGroup, 0, len(occupants)+1)
	index := make(map[string]int, len(occupants)+1)
	for _, o := range occupants {
		c := domain.OccupantConsumer(o.ID)
		index[c.Key()] = len(groups)
		groups = append(groups, ConsumerGroup{
			Consumer:     c,
			OccupantName: o.Name,
			Principal:    o.ID == principalID,
			Subtotal:     decimal.Zero,
		})
	}

	var orphans []ConsumerGroup
	orphanIndex := map[string]int{}
	shared := ConsumerGroup{Consumer: domain.Shared(), Subtotal: decimal.Zero}

	for _, l := range sorted {
		var g *ConsumerGroup
		key := l.Consumer.Key()
		switch {
		case l.Consumer.IsShared():
			g = &shared
		default:
			if i, ok := index[key]; ok {
				g = &groups[i]
			} else {
				i, ok := orphanIndex[key]
				if !ok {
					i = len(orphans)
					orphanIndex[key] = i
					orphans = append(orphans, ConsumerGroup{Consumer: l.Consumer, Subtotal: decimal.Zero})
				}
				g = &orphans[i]
			}
		}
		g.add(l)
	}

	groups = append(groups, orphans...)
	return append(groups, shared)
}

func (g *ConsumerGroup) add(l domain.OrderLine) {
	price := LinePrice(l)
	g.Subtotal = g.Subtotal.Add(price)
	for i := range g.Lines {
		if g.Lines[i].ProductName == l.ProductName {
			g.Lines[i].Quantity += l.Remaining
			g.Lines[i].Subtotal = g.Lines[i].Subtotal.Add(price)
			g.Lines[i].LineIDs = append(g.Lines[i].LineIDs, l.ID)
			return
		}
	}
	g.Lines = append(g.Lines, GroupedLine{
		ProductName:      l.ProductName,
		Quantity:         l.Remaining,
		UnitPrice:        l.UnitPrice,
		DiscountPercent:  l.DiscountPercent,
		DiscountReason:   l.DiscountReason,
		Subtotal:         price,
		RepresentativeID: l.ID,
		LineIDs:          []string{l.ID},
	})
}

// SharedGroup returns the table-general group produced by GroupLines.
func SharedGroup(groups []ConsumerGroup) (ConsumerGroup, bool) {
	for _, g := range groups {
		if g.Consumer.IsShared() {
			return g, true
		}
	}
	return ConsumerGroup{}, false
}

// GroupedLineOf finds the grouped record that contains lineID.
func (g ConsumerGroup) GroupedLineOf(lineID string) (GroupedLine, bool) {
	for _, gl := range g.Lines {
		for _, id := range gl.LineIDs {
			if id == lineID {
				return gl, true
			}
		}
	}
	return GroupedLine{}, false
}
