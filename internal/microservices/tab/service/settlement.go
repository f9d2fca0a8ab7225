package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-billing/internal/billing"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

type SettlementServiceInterface interface {
	SettleFull(ctx context.Context, orderID, tipRecipientID string) (domain.SettlementRecord, error)
	SettleOccupant(ctx context.Context, orderID, occupantID, tipRecipientID string) (domain.SettlementRecord, error)
	SettlePartial(ctx context.Context, req domain.PartialSettlementRequest) (domain.SettlementRecord, error)
	ListSettlements(ctx context.Context, orderID string) ([]domain.SettlementRecord, error)
}

type SettlementService struct {
	*core
}

func NewSettlementService(c *core) SettlementServiceInterface {
	return &SettlementService{core: c}
}

// SettleFull closes out every remaining line of the order. Lines still
// queued or preparing in the kitchen block it.
func (s *SettlementService) SettleFull(ctx context.Context, orderID, tipRecipientID string) (domain.SettlementRecord, error) {
	tipRecipientID = strings.TrimSpace(tipRecipientID)
	var rec domain.SettlementRecord
	err := s.update(ctx, "settle_full", func(ctx context.Context, tx ledger.Tx) error {
		order, err := loadOpenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		lines, err := tx.ListLines(ctx, orderID)
		if err != nil {
			return err
		}
		if l, blocked := inProgressLine(lines, true); blocked {
			return domain.IncompleteOrder(l.ID, l.PrepStatus)
		}

		var picked []*domain.OrderLine
		for i := range lines {
			if lines[i].Eligible() {
				picked = append(picked, &lines[i])
			}
		}
		if len(picked) == 0 {
			return domain.Validation("order_id", orderID, "order has nothing left to settle")
		}
		rec, err = s.settleLines(ctx, tx, order, lines, picked, nil, domain.SettlementFull, "", tipRecipientID)
		return err
	})
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	s.completed(ctx, rec)
	return rec, nil
}

// SettleOccupant pays every remaining line billed to one occupant and
// unseats them. Shared lines are never included.
func (s *SettlementService) SettleOccupant(ctx context.Context, orderID, occupantID, tipRecipientID string) (domain.SettlementRecord, error) {
	tipRecipientID = strings.TrimSpace(tipRecipientID)
	var rec domain.SettlementRecord
	err := s.update(ctx, "settle_occupant", func(ctx context.Context, tx ledger.Tx) error {
		order, err := loadOpenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		occ, err := tx.GetOccupant(ctx, occupantID)
		if err != nil {
			return err
		}
		if occ.TableID != order.TableID {
			return domain.Validation("occupant_id", occupantID, "occupant is not seated at the order's table")
		}
		lines, err := tx.ListLines(ctx, orderID)
		if err != nil {
			return err
		}

		var picked []*domain.OrderLine
		for i := range lines {
			id, ok := lines[i].Consumer.OccupantID()
			if ok && id == occupantID && lines[i].Eligible() {
				picked = append(picked, &lines[i])
			}
		}
		if len(picked) == 0 {
			return domain.Validation("occupant_id", occupantID, "occupant has nothing left to settle")
		}
		rec, err = s.settleLines(ctx, tx, order, lines, picked, nil, domain.SettlementOccupant, occupantID, tipRecipientID)
		if err != nil {
			return err
		}
		if rec.OrderStatus == domain.OrderOpen {
			// A closed order already released the whole table.
			return detachOccupant(ctx, tx, &occ)
		}
		return nil
	})
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	s.completed(ctx, rec)
	return rec, nil
}

// SettlePartial pays qty units of one table-general line. A line whose
// product is split over several shared lines is refused: the payer must
// not have to guess which one is charged.
func (s *SettlementService) SettlePartial(ctx context.Context, req domain.PartialSettlementRequest) (domain.SettlementRecord, error) {
	if req.Quantity <= 0 {
		return domain.SettlementRecord{}, domain.Validation("quantity", req.LineID, "quantity must be positive")
	}
	if strings.TrimSpace(req.PayingOccupantID) == "" {
		return domain.SettlementRecord{}, domain.Validation("paying_occupant_id", "", "paying occupant is required")
	}
	tipRecipientID := strings.TrimSpace(req.TipRecipientID)

	var rec domain.SettlementRecord
	err := s.update(ctx, "settle_partial", func(ctx context.Context, tx ledger.Tx) error {
		order, err := loadOpenOrder(ctx, tx, req.OrderID)
		if err != nil {
			return err
		}
		lines, err := tx.ListLines(ctx, req.OrderID)
		if err != nil {
			return err
		}
		var target *domain.OrderLine
		for i := range lines {
			if lines[i].ID == req.LineID {
				target = &lines[i]
				break
			}
		}
		if target == nil {
			return domain.NotFound("line", req.LineID)
		}
		if !target.Consumer.IsShared() {
			return domain.Validation("line_id", req.LineID, "only table-general lines can be paid partially")
		}
		if req.Quantity > target.Remaining {
			return domain.Validation("quantity", req.LineID, "quantity %d exceeds remaining %d", req.Quantity, target.Remaining)
		}
		payer, err := tx.GetOccupant(ctx, req.PayingOccupantID)
		if err != nil {
			return err
		}
		if payer.TableID != order.TableID {
			return domain.Validation("paying_occupant_id", payer.ID, "paying occupant is not seated at the order's table")
		}

		shared, _ := billing.SharedGroup(billing.GroupLines(lines, nil, ""))
		if gl, ok := shared.GroupedLineOf(target.ID); ok && gl.Merged() {
			return domain.AmbiguousPartial(target.ID, len(gl.LineIDs))
		}

		qty := map[string]int{target.ID: req.Quantity}
		rec, err = s.settleLines(ctx, tx, order, lines, []*domain.OrderLine{target}, qty, domain.SettlementPartial, payer.ID, tipRecipientID)
		return err
	})
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	s.completed(ctx, rec)
	return rec, nil
}

func (s *SettlementService) ListSettlements(ctx context.Context, orderID string) ([]domain.SettlementRecord, error) {
	var out []domain.SettlementRecord
	err := s.Store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.GetOrder(ctx, orderID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListSettlements(ctx, orderID)
		return err
	})
	return out, err
}

// settleLines decrements the picked lines (all of their remaining quantity
// unless qty overrides it), charges tip when a recipient is named, closes
// the order once nothing is left and stores the record. lines must hold
// the picked pointers.
func (s *SettlementService) settleLines(
	ctx context.Context, tx ledger.Tx, order domain.Order, lines []domain.OrderLine,
	picked []*domain.OrderLine, qty map[string]int,
	kind domain.SettlementKind, payerID, tipRecipientID string,
) (domain.SettlementRecord, error) {
	now := s.now()
	amount := decimal.Zero
	settled := make([]domain.SettledLine, 0, len(picked))
	for _, l := range picked {
		n := l.Remaining
		if q, ok := qty[l.ID]; ok {
			n = q
		}
		price := billing.PortionPrice(*l, n)
		amount = amount.Add(price)
		settled = append(settled, domain.SettledLine{LineID: l.ID, Quantity: n, Amount: billing.Money(price)})
		l.Remaining -= n
		if err := tx.UpdateLine(ctx, l); err != nil {
			return domain.SettlementRecord{}, err
		}
	}

	tip := billing.Money(s.Calculator.Tip(amount, tipRecipientID != ""))
	if tip.IsPositive() {
		order.TipAmount = order.TipAmount.Add(tip)
		order.TipRecipientID = tipRecipientID
	}

	done := true
	for _, l := range lines {
		if l.Remaining > 0 {
			done = false
			break
		}
	}
	if done {
		if err := closeOrder(ctx, tx, &order, domain.OrderSettled, now); err != nil {
			return domain.SettlementRecord{}, err
		}
	} else {
		order.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, &order); err != nil {
			return domain.SettlementRecord{}, err
		}
	}

	rec := domain.SettlementRecord{
		ID:              uuid.NewString(),
		OrderID:         order.ID,
		TableID:         order.TableID,
		Kind:            kind,
		PayerOccupantID: payerID,
		Lines:           settled,
		Amount:          billing.Money(amount),
		Tip:             tip,
		TipRecipientID:  tipRecipientID,
		OrderStatus:     order.Status,
		SettledAt:       now,
	}
	if tip.IsZero() {
		rec.TipRecipientID = ""
	}
	return rec, tx.InsertSettlement(ctx, rec)
}

func (s *SettlementService) completed(ctx context.Context, rec domain.SettlementRecord) {
	s.Log.Info("settlement_completed", map[string]any{
		"settlement_id": rec.ID, "order_id": rec.OrderID, "kind": rec.Kind,
		"amount": rec.Amount.String(), "tip": rec.Tip.String(), "order_status": rec.OrderStatus,
	})
	s.emit(ctx, domain.EventSettlementCompleted, domain.SettlementEvent{Record: rec})
}
