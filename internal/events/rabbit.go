package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-billing/internal/common/mq"
	"restaurant-billing/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, m mq.Message) error
}

// Notifier publishes events to the notifications fanout exchange.
type Notifier struct {
	client  publisher
	source  string
	timeout time.Duration
}

func NewNotifier(client *mq.Client, source string) *Notifier {
	return &Notifier{client: client, source: source, timeout: 5 * time.Second}
}

func (n *Notifier) Publish(ctx context.Context, ev domain.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.client.Publish(ctx, mq.Message{
		Exchange:      mq.ExchangeNotifications,
		Body:          body,
		MessageID:     ev.ID,
		CorrelationID: ev.CorrelationID(),
		Headers: amqp.Table{
			"x-source":     n.source,
			"x-event-type": string(ev.Type),
		},
	})
}

// KitchenDispatcher routes tickets to kitchen.<table>.<priority> on the
// orders topic.
type KitchenDispatcher struct {
	client  publisher
	timeout time.Duration
}

func NewKitchenDispatcher(client *mq.Client) *KitchenDispatcher {
	return &KitchenDispatcher{client: client, timeout: 5 * time.Second}
}

func TicketRoutingKey(t domain.KitchenTicket) string {
	return fmt.Sprintf("kitchen.%s.%d", t.TableID, t.Priority)
}

func (d *KitchenDispatcher) Dispatch(ctx context.Context, t domain.KitchenTicket) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.client.Publish(ctx, mq.Message{
		Exchange:      mq.ExchangeOrders,
		Key:           TicketRoutingKey(t),
		Body:          body,
		MessageID:     uuid.NewString(),
		CorrelationID: t.OrderID,
		Priority:      uint8(t.Priority),
		Headers:       amqp.Table{"x-source": "tab-service"},
	})
}
