package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-billing/internal/billing"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

// Transaction-scoped steps shared by the tab, settlement, approval and
// loyalty flows.

func loadOpenOrder(ctx context.Context, tx ledger.Tx, orderID string) (domain.Order, error) {
	o, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !o.IsOpen() {
		return domain.Order{}, domain.Validation("order_id", orderID, "order is %s", o.Status)
	}
	return o, nil
}

// ensureOpenOrder returns the table's open order, creating it on first use.
// An existing order is rewritten so that a settlement or release that read
// it concurrently fails its conditional update and retries.
func ensureOpenOrder(ctx context.Context, tx ledger.Tx, tableID string, now time.Time) (domain.Order, error) {
	o, found, err := tx.OpenOrder(ctx, tableID)
	if err != nil {
		return o, err
	}
	if found {
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, &o); err != nil {
			return domain.Order{}, err
		}
		return o, nil
	}
	o = domain.Order{
		ID:        uuid.NewString(),
		TableID:   tableID,
		Status:    domain.OrderOpen,
		TipAmount: decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return o, tx.CreateOrder(ctx, o)
}

func newLine(order domain.Order, p domain.Product, qty int, c domain.Consumer, now time.Time) domain.OrderLine {
	prep := domain.PrepNone
	if p.RequiresPreparation {
		prep = domain.PrepQueued
	}
	return domain.OrderLine{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		ProductID:       p.ID,
		ProductName:     p.Name,
		UnitPrice:       p.Price,
		Quantity:        qty,
		Remaining:       qty,
		Consumer:        c,
		DiscountPercent: decimal.Zero,
		PrepStatus:      prep,
		CreatedAt:       now,
	}
}

var (
	priorityHigh = decimal.NewFromInt(100)
	priorityMid  = decimal.NewFromInt(50)
)

// ticketFor builds the kitchen ticket; bigger lines jump the queue.
func ticketFor(l domain.OrderLine, tableID string) domain.KitchenTicket {
	value := billing.DiscountedPrice(l.UnitPrice, l.Quantity, decimal.Zero)
	priority := 1
	switch {
	case value.GreaterThanOrEqual(priorityHigh):
		priority = 10
	case value.GreaterThanOrEqual(priorityMid):
		priority = 5
	}
	return domain.KitchenTicket{
		LineID:      l.ID,
		OrderID:     l.OrderID,
		TableID:     tableID,
		ProductName: l.ProductName,
		Quantity:    l.Quantity,
		Priority:    priority,
	}
}

// releaseTable detaches every occupant and clears the principal.
func releaseTable(ctx context.Context, tx ledger.Tx, tableID string) error {
	occupants, err := tx.ListOccupants(ctx, tableID)
	if err != nil {
		return err
	}
	for i := range occupants {
		occupants[i].Detach()
		if err := tx.UpdateOccupant(ctx, &occupants[i]); err != nil {
			return err
		}
	}
	tb, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if tb.PrincipalOccupantID == "" {
		return nil
	}
	tb.PrincipalOccupantID = ""
	return tx.UpdateTable(ctx, &tb)
}

// detachOccupant unseats one occupant. When it was the principal, the
// earliest-seated occupant left takes over.
func detachOccupant(ctx context.Context, tx ledger.Tx, occ *domain.Occupant) error {
	tableID := occ.TableID
	occ.Detach()
	if err := tx.UpdateOccupant(ctx, occ); err != nil {
		return err
	}
	tb, err := tx.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if tb.PrincipalOccupantID != occ.ID {
		return nil
	}
	rest, err := tx.ListOccupants(ctx, tableID)
	if err != nil {
		return err
	}
	tb.PrincipalOccupantID = ""
	if len(rest) > 0 {
		tb.PrincipalOccupantID = rest[0].ID
	}
	return tx.UpdateTable(ctx, &tb)
}

// closeOrder moves an order to a terminal status and frees its table.
func closeOrder(ctx context.Context, tx ledger.Tx, o *domain.Order, status domain.OrderStatus, now time.Time) error {
	o.Status = status
	o.UpdatedAt = now
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return err
	}
	return releaseTable(ctx, tx, o.TableID)
}

func inProgressLine(lines []domain.OrderLine, onlyEligible bool) (domain.OrderLine, bool) {
	for _, l := range lines {
		if onlyEligible && !l.Eligible() {
			continue
		}
		if l.PrepStatus.InProgress() {
			return l, true
		}
	}
	return domain.OrderLine{}, false
}
