package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/common/mq"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/events"
	"restaurant-billing/internal/microservices/kitchen/repository"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

const workerType = "kitchen"

type KitchenServiceInterface interface {
	Heartbeat(ctx context.Context) error
	Run(ctx context.Context) error
}

type ticketSource interface {
	Consume(queue, tag string, prefetch int) (*mq.Consumer, error)
}

type KitchenService struct {
	db     repository.KitchenRepositoryInterface
	source ticketSource
	events events.Publisher
	log    *logger.Logger

	WorkerName string
	Queue      string
	Prefetch   int
	BeatEvery  time.Duration
	// PrepTime is how long one unit of a line takes.
	PrepTime time.Duration
	Now      func() time.Time
}

type Options struct {
	WorkerName        string
	Prefetch          int
	HeartbeatInterval time.Duration
	PrepTime          time.Duration
}

func NewKitchenService(db repository.KitchenRepositoryInterface, source ticketSource, pub events.Publisher, lg *logger.Logger, o Options) *KitchenService {
	if o.Prefetch <= 0 {
		o.Prefetch = 1
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	return &KitchenService{
		db:         db,
		source:     source,
		events:     pub,
		log:        lg,
		WorkerName: o.WorkerName,
		Queue:      mq.QueueKitchen,
		Prefetch:   o.Prefetch,
		BeatEvery:  o.HeartbeatInterval,
		PrepTime:   o.PrepTime,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func (ks *KitchenService) Heartbeat(ctx context.Context) error {
	return ks.db.Heartbeat(ctx, ks.WorkerName)
}

func (ks *KitchenService) Run(ctx context.Context) error {
	if strings.TrimSpace(ks.WorkerName) == "" {
		return fmt.Errorf("worker name is empty: pass --worker-name")
	}

	if _, err := ks.db.RegisterOrFail(ctx, ks.WorkerName, workerType); err != nil {
		ks.log.Error("worker_registration_failed", err, map[string]any{"worker": ks.WorkerName})
		return err
	}
	ks.log.Info("worker_registered", map[string]any{"worker": ks.WorkerName, "type": workerType})

	cons, err := ks.source.Consume(ks.Queue, ks.WorkerName, ks.Prefetch)
	if err != nil {
		_ = ks.db.SetOffline(context.Background(), ks.WorkerName)
		return fmt.Errorf("consume %s: %w", ks.Queue, err)
	}
	defer cons.Close()

	stopBeat := make(chan struct{})
	go ks.beat(ctx, stopBeat)

	ks.log.Info("kitchen_consuming", map[string]any{"queue": ks.Queue, "prefetch": ks.Prefetch, "worker": ks.WorkerName})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range cons.Deliveries {
			ks.settle(d, ks.processOne(ctx, d.Body))
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		ks.log.Info("graceful_shutdown", map[string]any{"worker": ks.WorkerName})
	case amqpErr := <-cons.Closed:
		if amqpErr != nil {
			runErr = fmt.Errorf("amqp channel closed: %s", amqpErr.Reason)
			ks.log.Error("amqp_channel_closed", amqpErr, map[string]any{"code": amqpErr.Code})
		}
	}

	_ = cons.Cancel()
	if err := ks.db.SetOffline(context.Background(), ks.WorkerName); err != nil {
		ks.log.Warn("worker_offline_failed", map[string]any{"worker": ks.WorkerName, "error": err.Error()})
	}
	close(stopBeat)
	<-done
	return runErr
}

func (ks *KitchenService) beat(ctx context.Context, stop <-chan struct{}) {
	t := time.NewTicker(ks.BeatEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if err := ks.db.Heartbeat(context.Background(), ks.WorkerName); err != nil {
				ks.log.Warn("heartbeat_failed", map[string]any{"worker": ks.WorkerName, "error": err.Error()})
				continue
			}
			ks.log.Debug("heartbeat_sent", map[string]any{"worker": ks.WorkerName})
		}
	}
}

func (ks *KitchenService) settle(d amqp.Delivery, err error) {
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrDLQ):
		_ = d.Nack(false, false)
	default:
		_ = d.Nack(false, true)
	}
}

// processOne drives one ticket through preparing and ready. Redelivered
// tickets whose line already moved on are acknowledged without side effects;
// a line left in preparing by a crashed worker is finished.
func (ks *KitchenService) processOne(ctx context.Context, body []byte) error {
	var t domain.KitchenTicket
	if err := json.Unmarshal(body, &t); err != nil {
		ks.log.Warn("ticket_malformed", map[string]any{"error": err.Error()})
		return ErrDLQ
	}
	if t.LineID == "" {
		ks.log.Warn("ticket_without_line", map[string]any{"order_id": t.OrderID})
		return ErrDLQ
	}

	ref, started, err := ks.db.TryStartPreparingTx(ctx, t.LineID, ks.WorkerName)
	if errors.Is(err, repository.ErrLineNotFound) {
		ks.log.Warn("ticket_unknown_line", map[string]any{"line_id": t.LineID})
		return ErrDLQ
	}
	if err != nil {
		ks.log.Error("line_start_failed", err, map[string]any{"line_id": t.LineID})
		return ErrRequeue
	}
	if !started && ref.Status != domain.PrepPreparing {
		ks.log.Debug("ticket_already_handled", map[string]any{"line_id": t.LineID, "status": ref.Status})
		return nil
	}

	delay := ks.prepDelay(t.Quantity)
	if started {
		if err := ks.publish(ctx, ref, domain.PrepQueued, domain.PrepPreparing, ks.Now().Add(delay)); err != nil {
			ks.log.Error("status_publish_failed", err, map[string]any{"line_id": t.LineID})
			return ErrRequeue
		}
		ks.log.Debug("line_preparing", map[string]any{"line_id": t.LineID, "product": t.ProductName, "worker": ks.WorkerName})
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ErrRequeue
	}

	ready, err := ks.db.MarkReadyTx(ctx, t.LineID, ks.WorkerName)
	if err != nil {
		ks.log.Error("line_ready_failed", err, map[string]any{"line_id": t.LineID})
		return ErrRequeue
	}
	if !ready {
		return nil
	}
	if err := ks.publish(ctx, ref, domain.PrepPreparing, domain.PrepReady, time.Time{}); err != nil {
		ks.log.Error("status_publish_failed", err, map[string]any{"line_id": t.LineID})
		return ErrRequeue
	}
	ks.log.Debug("line_ready", map[string]any{"line_id": t.LineID, "worker": ks.WorkerName})
	return nil
}

func (ks *KitchenService) prepDelay(qty int) time.Duration {
	if qty < 1 {
		qty = 1
	}
	return ks.PrepTime * time.Duration(qty)
}

func (ks *KitchenService) publish(ctx context.Context, ref repository.LineRef, from, to domain.PrepStatus, eta time.Time) error {
	now := ks.Now()
	return ks.events.Publish(ctx, domain.Event{
		ID:         uuid.NewString(),
		Type:       domain.EventLineStatus,
		OccurredAt: now,
		Payload: domain.LineStatusEvent{
			LineID:              ref.LineID,
			OrderID:             ref.OrderID,
			TableID:             ref.TableID,
			OldStatus:           from,
			NewStatus:           to,
			ChangedBy:           ks.WorkerName,
			Timestamp:           now,
			EstimatedCompletion: eta,
		},
	})
}
