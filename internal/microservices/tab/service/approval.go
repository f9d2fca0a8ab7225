package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

type ApprovalServiceInterface interface {
	RequestAction(ctx context.Context, actor domain.Actor, action domain.Action) (domain.ActionResult, error)
	ResolveRequest(ctx context.Context, approver domain.Actor, requestID string, decision domain.Decision) (domain.ApprovalRequest, error)
	ListPending(ctx context.Context) ([]domain.ApprovalRequest, error)
}

type ApprovalService struct {
	*core
}

func NewApprovalService(c *core) ApprovalServiceInterface {
	return &ApprovalService{core: c}
}

var hundred = decimal.NewFromInt(100)

// RequestAction runs a gated action right away for privileged actors and
// queues it for approval otherwise.
func (s *ApprovalService) RequestAction(ctx context.Context, actor domain.Actor, action domain.Action) (domain.ActionResult, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return domain.ActionResult{}, domain.Validation("actor.id", "", "actor is required")
	}
	actor.Role = canonicalRole(actor.Role)
	action, err := normalizeAction(action)
	if err != nil {
		return domain.ActionResult{}, err
	}

	if s.privileged(actor.Role) {
		err := s.update(ctx, "apply_action", func(ctx context.Context, tx ledger.Tx) error {
			return s.apply(ctx, tx, action, actor.ID)
		})
		if err != nil {
			return domain.ActionResult{}, err
		}
		s.Log.Info("action_executed", map[string]any{
			"action": action.Type, "target_id": action.TargetID, "actor_id": actor.ID, "role": actor.Role,
		})
		return domain.ActionResult{Executed: true}, nil
	}

	req := domain.ApprovalRequest{
		ID:            uuid.NewString(),
		Action:        action,
		RequesterID:   actor.ID,
		RequesterRole: actor.Role,
		Status:        domain.ApprovalPending,
		CreatedAt:     s.now(),
	}
	err = s.update(ctx, "request_approval", func(ctx context.Context, tx ledger.Tx) error {
		if err := s.precheck(ctx, tx, action); err != nil {
			return err
		}
		return tx.CreateApproval(ctx, req)
	})
	if err != nil {
		return domain.ActionResult{}, err
	}
	s.Log.Info("approval_requested", map[string]any{
		"request_id": req.ID, "action": action.Type, "target_id": action.TargetID, "requester_id": actor.ID,
	})
	s.emit(ctx, domain.EventApprovalRequested, domain.ApprovalEvent{Request: req, NotifyRoles: s.Privileged})
	return domain.ActionResult{Queued: true, RequestID: req.ID}, nil
}

// ResolveRequest applies or rejects a pending request. The status write is
// conditional on pending, so a second resolution fails with already_resolved
// instead of applying the action twice.
func (s *ApprovalService) ResolveRequest(ctx context.Context, approver domain.Actor, requestID string, decision domain.Decision) (domain.ApprovalRequest, error) {
	approver.Role = canonicalRole(approver.Role)
	if !s.privileged(approver.Role) {
		return domain.ApprovalRequest{}, domain.NotPrivileged(approver.ID, approver.Role)
	}
	var status domain.ApprovalStatus
	switch decision {
	case domain.DecisionApprove:
		status = domain.ApprovalApproved
	case domain.DecisionReject:
		status = domain.ApprovalRejected
	default:
		return domain.ApprovalRequest{}, domain.Validation("decision", requestID, "decision must be approve or reject")
	}

	var req domain.ApprovalRequest
	err := s.update(ctx, "resolve_approval", func(ctx context.Context, tx ledger.Tx) error {
		var err error
		req, err = tx.GetApproval(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.ApprovalPending {
			return domain.AlreadyResolved(req.ID, req.Status)
		}
		if status == domain.ApprovalApproved {
			if err := s.apply(ctx, tx, req.Action, approver.ID); err != nil {
				return err
			}
		}
		now := s.now()
		req.Status = status
		req.ResolverID = approver.ID
		req.ResolvedAt = &now
		return tx.ResolveApproval(ctx, req)
	})
	if err != nil {
		return domain.ApprovalRequest{}, err
	}
	s.Log.Info("approval_resolved", map[string]any{
		"request_id": req.ID, "status": req.Status, "resolver_id": approver.ID,
	})
	s.emit(ctx, domain.EventApprovalResolved, domain.ApprovalEvent{Request: req, NotifyActorID: req.RequesterID})
	return req, nil
}

func (s *ApprovalService) ListPending(ctx context.Context) ([]domain.ApprovalRequest, error) {
	var out []domain.ApprovalRequest
	err := s.Store.View(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListApprovals(ctx, domain.ApprovalPending)
		return err
	})
	return out, err
}

func normalizeAction(a domain.Action) (domain.Action, error) {
	a.TargetID = strings.TrimSpace(a.TargetID)
	if a.TargetID == "" {
		return a, domain.Validation("action.target_id", "", "target is required")
	}
	switch a.Type {
	case domain.ActionApplyDiscount:
		pct := a.Payload.DiscountPercent
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return a, domain.Validation("action.payload.discount_percent", a.TargetID, "discount must be between 0 and 100, got %s", pct)
		}
		a.Payload.DiscountPercent = pct.Round(2)
		a.Payload.Reason = strings.TrimSpace(a.Payload.Reason)
	case domain.ActionFreeTable:
		a.Payload = domain.ActionPayload{}
	default:
		return a, domain.Validation("action.type", a.TargetID, "unknown action %q", a.Type)
	}
	return a, nil
}

// precheck rejects requests that could never be applied, so nobody is asked
// to approve them. The same checks run again when the action is applied.
func (s *ApprovalService) precheck(ctx context.Context, tx ledger.Tx, a domain.Action) error {
	switch a.Type {
	case domain.ActionApplyDiscount:
		_, err := discountTarget(ctx, tx, a.TargetID)
		return err
	case domain.ActionFreeTable:
		return freeTableCheck(ctx, tx, a.TargetID)
	}
	return nil
}

func (s *ApprovalService) apply(ctx context.Context, tx ledger.Tx, a domain.Action, actorID string) error {
	switch a.Type {
	case domain.ActionApplyDiscount:
		line, err := discountTarget(ctx, tx, a.TargetID)
		if err != nil {
			return err
		}
		line.DiscountPercent = a.Payload.DiscountPercent
		line.DiscountReason = a.Payload.Reason
		return tx.UpdateLine(ctx, &line)

	case domain.ActionFreeTable:
		if err := freeTableCheck(ctx, tx, a.TargetID); err != nil {
			return err
		}
		order, found, err := tx.OpenOrder(ctx, a.TargetID)
		if err != nil {
			return err
		}
		if !found {
			return releaseTable(ctx, tx, a.TargetID)
		}
		s.Log.Info("order_cancelled", map[string]any{"order_id": order.ID, "table_id": a.TargetID, "actor_id": actorID})
		return closeOrder(ctx, tx, &order, domain.OrderCancelled, s.now())
	}
	return domain.Validation("action.type", a.TargetID, "unknown action %q", a.Type)
}

// discountTarget loads a line that can still take a discount.
func discountTarget(ctx context.Context, tx ledger.Tx, lineID string) (domain.OrderLine, error) {
	line, err := tx.GetLine(ctx, lineID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	if _, err := loadOpenOrder(ctx, tx, line.OrderID); err != nil {
		return domain.OrderLine{}, err
	}
	if !line.Eligible() {
		return domain.OrderLine{}, domain.Validation("action.target_id", lineID, "line is already settled")
	}
	return line, nil
}

// freeTableCheck refuses to release a table while the kitchen still holds
// any of its lines.
func freeTableCheck(ctx context.Context, tx ledger.Tx, tableID string) error {
	if _, err := tx.GetTable(ctx, tableID); err != nil {
		return err
	}
	order, found, err := tx.OpenOrder(ctx, tableID)
	if err != nil || !found {
		return err
	}
	lines, err := tx.ListLines(ctx, order.ID)
	if err != nil {
		return err
	}
	if l, blocked := inProgressLine(lines, false); blocked {
		return domain.IncompleteOrder(l.ID, l.PrepStatus)
	}
	return nil
}
