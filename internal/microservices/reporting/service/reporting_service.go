package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"restaurant-billing/internal/common/logger"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/microservices/reporting/models"
	"restaurant-billing/internal/microservices/reporting/repository"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type ReportingServiceInterface interface {
	Apply(ctx context.Context, value []byte) error
	OrderSettlements(ctx context.Context, orderID string, limit, offset int) ([]models.SettlementReport, error)
	Tips(ctx context.Context, staffID string, from, to *time.Time) (models.TipSummary, error)
	Workers(ctx context.Context) ([]models.WorkerStatus, error)
}

// ErrMalformed marks records that will never decode; the consumer skips them.
var ErrMalformed = errors.New("malformed settlement record")

type ReportingService struct {
	repo repository.ReportingRepoInterface
	log  *logger.Logger
}

func NewReportingService(repo repository.ReportingRepoInterface, lg *logger.Logger) *ReportingService {
	return &ReportingService{repo: repo, log: lg}
}

func (s *ReportingService) Apply(ctx context.Context, value []byte) error {
	var rec domain.SettlementRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rec.ID == "" || rec.OrderID == "" {
		return fmt.Errorf("%w: missing id or order_id", ErrMalformed)
	}
	inserted, err := s.repo.SaveSettlement(ctx, models.SettlementReport{
		SettlementID:   rec.ID,
		OrderID:        rec.OrderID,
		TableID:        rec.TableID,
		Kind:           string(rec.Kind),
		Amount:         rec.Amount,
		Tip:            rec.Tip,
		TipRecipientID: rec.TipRecipientID,
		OrderStatus:    string(rec.OrderStatus),
		SettledAt:      rec.SettledAt,
	})
	if err != nil {
		return err
	}
	if !inserted {
		s.log.Debug("settlement_report_duplicate", map[string]any{"settlement_id": rec.ID})
		return nil
	}
	s.log.Info("settlement_report_saved", map[string]any{
		"settlement_id": rec.ID, "order_id": rec.OrderID, "kind": rec.Kind, "amount": rec.Amount.StringFixed(2),
	})
	return nil
}

func (s *ReportingService) OrderSettlements(ctx context.Context, orderID string, limit, offset int) ([]models.SettlementReport, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.repo.ListOrderSettlements(ctx, orderID, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.SettlementReport{}
	}
	return out, nil
}

func (s *ReportingService) Tips(ctx context.Context, staffID string, from, to *time.Time) (models.TipSummary, error) {
	if from != nil && to != nil && !from.Before(*to) {
		return models.TipSummary{}, domain.Validation("from", "", "from must be before to")
	}
	n, total, err := s.repo.TipTotal(ctx, staffID, from, to)
	if err != nil {
		return models.TipSummary{}, err
	}
	return models.TipSummary{StaffID: staffID, Settlements: n, Total: total, From: from, To: to}, nil
}

func (s *ReportingService) Workers(ctx context.Context) ([]models.WorkerStatus, error) {
	out, err := s.repo.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.WorkerStatus{}
	}
	return out, nil
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer feeds the settlement topic into the reporting store. Offsets are
// committed only after a record is stored or found malformed.
type Consumer struct {
	reader     messageReader
	svc        ReportingServiceInterface
	log        *logger.Logger
	RetryDelay time.Duration
}

func NewConsumer(reader messageReader, svc ReportingServiceInterface, lg *logger.Logger) *Consumer {
	return &Consumer{reader: reader, svc: svc, log: lg, RetryDelay: 2 * time.Second}
}

func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch settlement: %w", err)
		}
		if err := c.apply(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// apply retries store failures until ctx ends; malformed records are logged
// and dropped.
func (c *Consumer) apply(ctx context.Context, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := c.svc.Apply(ctx, msg.Value)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrMalformed) {
			c.log.Warn("settlement_record_skipped", map[string]any{
				"partition": msg.Partition, "offset": msg.Offset, "error": err.Error(),
			})
			return nil
		}
		c.log.Error("settlement_report_failed", err, map[string]any{"offset": msg.Offset, "attempt": attempt})
		select {
		case <-time.After(c.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
