package service

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/common/mq"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/events"
)

type eventSource interface {
	Consume(queue, tag string, prefetch int) (*mq.Consumer, error)
}

type NotificatorService struct {
	source eventSource
	log    *logger.Logger
	Queue  string
	Tag    string
}

func NewNotificatorService(source eventSource, lg *logger.Logger) *NotificatorService {
	return &NotificatorService{source: source, log: lg, Queue: mq.QueueNotifications, Tag: "notificator"}
}

// Notify logs every event on the notifications queue until ctx is done.
func (ns *NotificatorService) Notify(ctx context.Context) error {
	cons, err := ns.source.Consume(ns.Queue, ns.Tag, 10)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ns.Queue, err)
	}
	defer cons.Close()
	ns.log.Info("notificator_listening", map[string]any{"queue": ns.Queue})

	for {
		select {
		case <-ctx.Done():
			_ = cons.Cancel()
			ns.log.Info("graceful_shutdown", nil)
			return nil
		case amqpErr := <-cons.Closed:
			if amqpErr == nil {
				return nil
			}
			return fmt.Errorf("amqp channel closed: %s", amqpErr.Reason)
		case d, ok := <-cons.Deliveries:
			if !ok {
				return nil
			}
			if err := ns.handle(d.Body, source(d.Headers)); err != nil {
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func source(h amqp.Table) string {
	s, _ := h["x-source"].(string)
	return s
}

func (ns *NotificatorService) handle(body []byte, from string) error {
	ev, err := events.Decode(body)
	if err != nil {
		ns.log.Warn("notification_undecodable", map[string]any{"error": err.Error(), "source": from})
		return err
	}
	ns.log.Info("notification_received", map[string]any{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"source":     from,
		"details":    Describe(ev),
	})
	return nil
}

// Describe renders an event as one line for the floor staff.
func Describe(ev domain.Event) string {
	switch p := ev.Payload.(type) {
	case domain.ApprovalEvent:
		r := p.Request
		if ev.Type == domain.EventApprovalRequested {
			roles := make([]string, len(p.NotifyRoles))
			for i, role := range p.NotifyRoles {
				roles[i] = string(role)
			}
			return fmt.Sprintf("approval %s: %s (%s) asks for %s on %s; notify %s",
				r.ID, r.RequesterID, r.RequesterRole, r.Action.Type, r.Action.TargetID, strings.Join(roles, ","))
		}
		return fmt.Sprintf("approval %s %s by %s; notify %s", r.ID, r.Status, r.ResolverID, p.NotifyActorID)
	case domain.SettlementEvent:
		r := p.Record
		msg := fmt.Sprintf("table %s: %s settlement of %s, order %s",
			r.TableID, r.Kind, r.Amount.StringFixed(2), r.OrderStatus)
		if r.Tip.IsPositive() {
			msg += fmt.Sprintf(", tip %s for %s", r.Tip.StringFixed(2), r.TipRecipientID)
		}
		return msg
	case domain.LineStatusEvent:
		return fmt.Sprintf("table %s: line %s %s -> %s by %s", p.TableID, p.LineID, p.OldStatus, p.NewStatus, p.ChangedBy)
	}
	return fmt.Sprintf("unhandled event %s", ev.Type)
}
