package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"restaurant-billing/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SettlementStream forwards settlement.completed events to the reporting
// topic keyed by order id, so one order's records stay in one partition.
// Other event types are ignored.
type SettlementStream struct {
	w messageWriter
}

func NewSettlementStream(brokers []string, topic string) *SettlementStream {
	return &SettlementStream{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

func (s *SettlementStream) Publish(ctx context.Context, ev domain.Event) error {
	if ev.Type != domain.EventSettlementCompleted {
		return nil
	}
	p, ok := ev.Payload.(domain.SettlementEvent)
	if !ok {
		return fmt.Errorf("settlement stream: unexpected payload %T", ev.Payload)
	}
	body, err := json.Marshal(p.Record)
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(p.Record.OrderID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(ev.ID)},
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	})
}

func (s *SettlementStream) Close() error { return s.w.Close() }
