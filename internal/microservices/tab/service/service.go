package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"restaurant-billing/internal/billing"
	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/events"
	"restaurant-billing/internal/ledger"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type Identity interface {
	Identify(ctx context.Context, sample []byte) (occupantID string, found bool, err error)
}

type Deps struct {
	Store      ledger.Store
	Catalog    Catalog
	Identity   Identity
	Events     events.Publisher
	Kitchen    events.TicketDispatcher
	Calculator billing.Calculator
	Privileged []domain.Role
	Log        *logger.Logger
	Now        func() time.Time
}

type Service struct {
	Tab        TabServiceInterface
	Settlement SettlementServiceInterface
	Approval   ApprovalServiceInterface
	Loyalty    LoyaltyServiceInterface
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.New("tab-service")
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Events == nil {
		d.Events = events.LogPublisher{Log: d.Log}
	}
	if d.Kitchen == nil {
		d.Kitchen = events.LogPublisher{Log: d.Log}
	}
	c := &core{Deps: d}
	return &Service{
		Tab:        NewTabService(c),
		Settlement: NewSettlementService(c),
		Approval:   NewApprovalService(c),
		Loyalty:    NewLoyaltyService(c),
	}
}

// core holds what every operation shares: the ledger, the clock, the
// single conflict retry and post-commit publishing.
type core struct {
	Deps
}

func (c *core) now() time.Time { return c.Now() }

// update runs fn in a ledger transaction and re-runs it once on a version
// conflict. fn must reset anything it captures.
func (c *core) update(ctx context.Context, op string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	err := c.Store.InTx(ctx, fn)
	if domain.IsKind(err, domain.KindConflict) {
		c.Log.Warn("ledger_conflict_retry", map[string]any{"op": op, "error": err.Error()})
		err = c.Store.InTx(ctx, fn)
	}
	return err
}

// emit publishes after commit. Delivery failures are logged, never returned:
// the ledger is the source of truth.
func (c *core) emit(ctx context.Context, typ domain.EventType, payload any) {
	ev := domain.Event{ID: uuid.NewString(), Type: typ, OccurredAt: c.now(), Payload: payload}
	if err := c.Events.Publish(ctx, ev); err != nil {
		c.Log.Error("event_publish_failed", err, map[string]any{"event_id": ev.ID, "event_type": typ})
	}
}

func (c *core) dispatch(ctx context.Context, t domain.KitchenTicket) {
	if err := c.Kitchen.Dispatch(ctx, t); err != nil {
		c.Log.Error("kitchen_dispatch_failed", err, map[string]any{"line_id": t.LineID, "order_id": t.OrderID})
	}
}

func (c *core) privileged(r domain.Role) bool {
	r = canonicalRole(r)
	for _, p := range c.Privileged {
		if p == r {
			return true
		}
	}
	return false
}

// canonicalRole maps floor-staff aliases onto the English role names.
// Unknown roles pass through unchanged.
func canonicalRole(r domain.Role) domain.Role {
	if parsed, ok := domain.ParseRole(string(r)); ok {
		return parsed
	}
	return r
}
