// Package events delivers domain events after their ledger transaction has
// committed: notifications over the RabbitMQ fanout, settlement records to
// Kafka for reporting, kitchen tickets over the orders topic.
package events

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

type TicketDispatcher interface {
	Dispatch(ctx context.Context, t domain.KitchenTicket) error
}

// Fanout publishes to every sink and reports all failures together.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev domain.Event) error {
	var result *multierror.Error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// LogPublisher stands in for the broker when running without RabbitMQ.
type LogPublisher struct {
	Log *logger.Logger
}

func (p LogPublisher) Publish(ctx context.Context, ev domain.Event) error {
	p.Log.Info("event_published", map[string]any{
		"event_id":       ev.ID,
		"event_type":     ev.Type,
		"correlation_id": ev.CorrelationID(),
	})
	return nil
}

func (p LogPublisher) Dispatch(ctx context.Context, t domain.KitchenTicket) error {
	p.Log.Info("kitchen_ticket_logged", map[string]any{
		"line_id":  t.LineID,
		"order_id": t.OrderID,
		"product":  t.ProductName,
		"quantity": t.Quantity,
	})
	return nil
}
