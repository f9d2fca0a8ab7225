package service

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/domain"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		name string
		ev   domain.Event
		want string
	}{
		{
			"approval requested",
			domain.Event{Type: domain.EventApprovalRequested, Payload: domain.ApprovalEvent{
				Request: domain.ApprovalRequest{
					ID: "apr-1", RequesterID: "joao", RequesterRole: domain.RoleWaiter,
					Action: domain.Action{Type: domain.ActionApplyDiscount, TargetID: "ln-1"},
				},
				NotifyRoles: []domain.Role{domain.RoleManager, domain.RoleOwner},
			}},
			"approval apr-1: joao (waiter) asks for apply_discount on ln-1; notify manager,owner",
		},
		{
			"approval resolved",
			domain.Event{Type: domain.EventApprovalResolved, Payload: domain.ApprovalEvent{
				Request:       domain.ApprovalRequest{ID: "apr-1", Status: domain.ApprovalApproved, ResolverID: "marta"},
				NotifyActorID: "joao",
			}},
			"approval apr-1 approved by marta; notify joao",
		},
		{
			"settlement with tip",
			domain.Event{Type: domain.EventSettlementCompleted, Payload: domain.SettlementEvent{Record: domain.SettlementRecord{
				TableID: "t-1", Kind: domain.SettlementFull, Amount: decimal.RequireFromString("18"),
				Tip: decimal.RequireFromString("1.8"), TipRecipientID: "joao", OrderStatus: domain.OrderSettled,
			}}},
			"table t-1: full settlement of 18.00, order settled, tip 1.80 for joao",
		},
		{
			"line status",
			domain.Event{Type: domain.EventLineStatus, Payload: domain.LineStatusEvent{
				TableID: "t-1", LineID: "ln-2", OldStatus: domain.PrepPreparing, NewStatus: domain.PrepReady, ChangedBy: "chef-1",
			}},
			"table t-1: line ln-2 preparing -> ready by chef-1",
		},
		{"unknown", domain.Event{Type: "table.cleaned"}, "unhandled event table.cleaned"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Describe(tc.ev))
		})
	}
}

func TestHandle_LogsDecodedEvent(t *testing.T) {
	var buf bytes.Buffer
	ns := NewNotificatorService(nil, logger.NewWithOutput("notificator-test", &buf))

	body, err := json.Marshal(domain.Event{ID: "ev-9", Type: domain.EventLineStatus, Payload: domain.LineStatusEvent{
		TableID: "t-1", LineID: "ln-2", OldStatus: domain.PrepQueued, NewStatus: domain.PrepPreparing, ChangedBy: "chef-1",
	}})
	require.NoError(t, err)
	require.NoError(t, ns.handle(body, "kitchen-worker"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "notification_received", entry["action"])
	assert.Equal(t, "ev-9", entry["event_id"])
	assert.Equal(t, "kitchen-worker", entry["source"])
	assert.Contains(t, entry["details"], "queued -> preparing")

	assert.Error(t, ns.handle([]byte("not json"), "x"))
}
