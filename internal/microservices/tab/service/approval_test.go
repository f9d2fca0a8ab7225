package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-billing/internal/domain"
)

func discountAction(lineID, pct, reason string) domain.Action {
	return domain.Action{
		Type:     domain.ActionApplyDiscount,
		TargetID: lineID,
		Payload:  domain.ActionPayload{DiscountPercent: dec(pct), Reason: reason},
	}
}

// Scenario C: a garçom asks, a gerente approves, a second approval bounces.
func TestApproval_QueuedDiscountAppliedOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	l := f.add(soda, 2, "")

	role, ok := domain.ParseRole("garçom")
	require.True(t, ok)
	requester := domain.Actor{ID: "staff-joao", Role: role}
	res, err := f.svc.Approval.RequestAction(f.ctx, requester, discountAction(l.ID, "20", "birthday"))
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.True(t, res.Queued)
	require.NotEmpty(t, res.RequestID)
	assert.True(t, f.line(l.ID).DiscountPercent.IsZero())

	pending, err := f.svc.Approval.ListPending(f.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ApprovalPending, pending[0].Status)

	requested := f.rec.ofType(domain.EventApprovalRequested)
	require.Len(t, requested, 1)
	assert.ElementsMatch(t, []domain.Role{domain.RoleManager, domain.RoleOwner},
		requested[0].Payload.(domain.ApprovalEvent).NotifyRoles)

	gerente, ok := domain.ParseRole("Gerente")
	require.True(t, ok)
	approver := domain.Actor{ID: "staff-marta", Role: gerente}
	req, err := f.svc.Approval.ResolveRequest(f.ctx, approver, res.RequestID, domain.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, req.Status)
	assert.Equal(t, approver.ID, req.ResolverID)
	require.NotNil(t, req.ResolvedAt)

	line := f.line(l.ID)
	money(t, "20.00", line.DiscountPercent)
	assert.Equal(t, "birthday", line.DiscountReason)
	versionAfterApply := line.Version

	_, err = f.svc.Approval.ResolveRequest(f.ctx, approver, res.RequestID, domain.DecisionApprove)
	requireKind(t, err, domain.KindAlreadyResolved)
	assert.Equal(t, versionAfterApply, f.line(l.ID).Version, "action must not be applied twice")

	resolved := f.rec.ofType(domain.EventApprovalResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, requester.ID, resolved[0].Payload.(domain.ApprovalEvent).NotifyActorID)

	pending, err = f.svc.Approval.ListPending(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	totals, err := f.svc.Tab.OrderTotals(f.ctx, l.OrderID, false)
	require.NoError(t, err)
	money(t, "16.00", totals.Subtotal)
}

func TestApproval_PrivilegedActorExecutesImmediately(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	l := f.add(soda, 2, "")

	res, err := f.svc.Approval.RequestAction(f.ctx, domain.Actor{ID: "owner-1", Role: domain.RoleOwner}, discountAction(l.ID, "12.345", ""))
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Empty(t, res.RequestID)
	money(t, "12.35", f.line(l.ID).DiscountPercent)

	pending, err := f.svc.Approval.ListPending(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, f.rec.ofType(domain.EventApprovalRequested))
}

func TestApproval_RejectsOutOfRangeDiscount(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	l := f.add(soda, 1, "")

	for _, pct := range []string{"-1", "100.01"} {
		for _, actor := range []domain.Actor{waiter, manager} {
			_, err := f.svc.Approval.RequestAction(f.ctx, actor, discountAction(l.ID, pct, ""))
			de := requireKind(t, err, domain.KindValidation)
			assert.Equal(t, "action.payload.discount_percent", de.Field)
		}
	}
	pending, err := f.svc.Approval.ListPending(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	res, err := f.svc.Approval.RequestAction(f.ctx, manager, discountAction(l.ID, "100", "on the house"))
	require.NoError(t, err)
	assert.True(t, res.Executed)
	totals, err := f.svc.Tab.OrderTotals(f.ctx, l.OrderID, false)
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.IsZero())
}

func TestApproval_UnknownTargetsAreNotQueued(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Approval.RequestAction(f.ctx, waiter, discountAction("no-such-line", "5", ""))
	requireKind(t, err, domain.KindNotFound)
	_, err = f.svc.Approval.RequestAction(f.ctx, waiter, domain.Action{Type: "comp_bottle", TargetID: "x"})
	requireKind(t, err, domain.KindValidation)

	pending, err := f.svc.Approval.ListPending(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproval_ResolveNeedsPrivilege(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	l := f.add(soda, 1, "")
	res, err := f.svc.Approval.RequestAction(f.ctx, waiter, discountAction(l.ID, "5", ""))
	require.NoError(t, err)

	_, err = f.svc.Approval.ResolveRequest(f.ctx, domain.Actor{ID: "c1", Role: domain.RoleCashier}, res.RequestID, domain.DecisionApprove)
	requireKind(t, err, domain.KindNotPrivileged)

	_, err = f.svc.Approval.ResolveRequest(f.ctx, manager, res.RequestID, "maybe")
	requireKind(t, err, domain.KindValidation)

	_, err = f.svc.Approval.ResolveRequest(f.ctx, manager, "no-such-request", domain.DecisionApprove)
	requireKind(t, err, domain.KindNotFound)

	assert.True(t, f.line(l.ID).DiscountPercent.IsZero())
}

func TestApproval_RejectLeavesLineUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	l := f.add(soda, 1, "")
	res, err := f.svc.Approval.RequestAction(f.ctx, waiter, discountAction(l.ID, "50", ""))
	require.NoError(t, err)

	req, err := f.svc.Approval.ResolveRequest(f.ctx, manager, res.RequestID, domain.DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalRejected, req.Status)
	assert.True(t, f.line(l.ID).DiscountPercent.IsZero())

	_, err = f.svc.Approval.ResolveRequest(f.ctx, manager, res.RequestID, domain.DecisionApprove)
	requireKind(t, err, domain.KindAlreadyResolved)
}

func TestApproval_FreeTableCancelsOrder(t *testing.T) {
	f := newFixture(t, nil)
	ana := f.seat("Ana", 0)
	l := f.add(soda, 3, "")

	res, err := f.svc.Approval.RequestAction(f.ctx, waiter, domain.Action{Type: domain.ActionFreeTable, TargetID: f.table.ID})
	require.NoError(t, err)
	require.True(t, res.Queued)
	assert.True(t, f.occupant(ana.ID).Seated())

	_, err = f.svc.Approval.ResolveRequest(f.ctx, manager, res.RequestID, domain.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, f.order(l.OrderID).Status)
	assert.False(t, f.occupant(ana.ID).Seated())

	tab, err := f.svc.Tab.GetTab(f.ctx, f.table.ID)
	require.NoError(t, err)
	assert.Nil(t, tab.Order)
	assert.Empty(t, tab.Table.PrincipalOccupantID)
}

func TestApproval_FreeTableRecheckedAtResolution(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	f.add(soda, 1, "")

	res, err := f.svc.Approval.RequestAction(f.ctx, waiter, domain.Action{Type: domain.ActionFreeTable, TargetID: f.table.ID})
	require.NoError(t, err)

	p := f.add(pizza, 1, "")
	_, err = f.svc.Approval.ResolveRequest(f.ctx, manager, res.RequestID, domain.DecisionApprove)
	requireKind(t, err, domain.KindIncompleteOrder)

	pending, err := f.svc.Approval.ListPending(f.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1, "request stays pending when the action cannot run")
	assert.Equal(t, domain.OrderOpen, f.order(p.OrderID).Status)

	_, err = f.svc.Approval.RequestAction(f.ctx, waiter, domain.Action{Type: domain.ActionFreeTable, TargetID: f.table.ID})
	requireKind(t, err, domain.KindIncompleteOrder)

	f.setPrep(p.ID, domain.PrepServed)
	req, err := f.svc.Approval.ResolveRequest(f.ctx, manager, res.RequestID, domain.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, req.Status)
	assert.Equal(t, domain.OrderCancelled, f.order(p.OrderID).Status)
}

func TestApproval_FloorRoleNamesAreRecognised(t *testing.T) {
	f := newFixture(t, nil)
	f.seat("Ana", 0)
	l := f.add(soda, 2, "")

	res, err := f.svc.Approval.RequestAction(f.ctx, domain.Actor{ID: "w1", Role: "garçom"}, discountAction(l.ID, "10", ""))
	require.NoError(t, err)
	require.True(t, res.Queued)
	pending, err := f.svc.Approval.ListPending(f.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.RoleWaiter, pending[0].RequesterRole)

	req, err := f.svc.Approval.ResolveRequest(f.ctx, domain.Actor{ID: "g1", Role: "Gerente"}, res.RequestID, domain.DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, req.Status)
	money(t, "10.00", f.line(l.ID).DiscountPercent)

	res, err = f.svc.Approval.RequestAction(f.ctx, domain.Actor{ID: "d1", Role: "dono"}, discountAction(l.ID, "15", ""))
	require.NoError(t, err)
	assert.True(t, res.Executed)
	money(t, "15.00", f.line(l.ID).DiscountPercent)

	_, err = f.svc.Approval.ResolveRequest(f.ctx, domain.Actor{ID: "c1", Role: "caixa"}, "any", domain.DecisionApprove)
	requireKind(t, err, domain.KindNotPrivileged)
}
