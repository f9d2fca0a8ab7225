package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"restaurant-billing/internal/microservices/reporting/models"
)

type ReportingRepoInterface interface {
	// SaveSettlement ignores a record it already holds, so replays are safe.
	SaveSettlement(ctx context.Context, r models.SettlementReport) (inserted bool, err error)
	ListOrderSettlements(ctx context.Context, orderID string, limit, offset int) ([]models.SettlementReport, error)
	TipTotal(ctx context.Context, staffID string, from, to *time.Time) (count int, total decimal.Decimal, err error)
	ListWorkers(ctx context.Context) ([]models.WorkerStatus, error)
}

type ReportingRepo struct {
	pool *pgxpool.Pool
}

func NewReportingRepo(pool *pgxpool.Pool) *ReportingRepo { return &ReportingRepo{pool: pool} }

func (r *ReportingRepo) SaveSettlement(ctx context.Context, s models.SettlementReport) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
INSERT INTO settlement_reports
  (settlement_id, order_id, table_id, kind, amount, tip, tip_recipient_id, order_status, settled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (settlement_id) DO NOTHING
`, s.SettlementID, s.OrderID, s.TableID, s.Kind, s.Amount, s.Tip, nullIfEmpty(s.TipRecipientID), s.OrderStatus, s.SettledAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReportingRepo) ListOrderSettlements(ctx context.Context, orderID string, limit, offset int) ([]models.SettlementReport, error) {
	rows, err := r.pool.Query(ctx, `
SELECT settlement_id, order_id, table_id, kind, amount, tip, COALESCE(tip_recipient_id,''), order_status, settled_at
FROM settlement_reports WHERE order_id=$1
ORDER BY settled_at ASC, settlement_id ASC
LIMIT $2 OFFSET $3
`, orderID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SettlementReport, error) {
		var s models.SettlementReport
		err := row.Scan(&s.SettlementID, &s.OrderID, &s.TableID, &s.Kind, &s.Amount, &s.Tip,
			&s.TipRecipientID, &s.OrderStatus, &s.SettledAt)
		return s, err
	})
}

func (r *ReportingRepo) TipTotal(ctx context.Context, staffID string, from, to *time.Time) (int, decimal.Decimal, error) {
	var (
		n     int
		total decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, `
SELECT count(*), COALESCE(sum(tip), 0)
FROM settlement_reports
WHERE tip_recipient_id=$1
  AND ($2::timestamptz IS NULL OR settled_at >= $2)
  AND ($3::timestamptz IS NULL OR settled_at < $3)
`, staffID, from, to).Scan(&n, &total)
	return n, total, err
}

func (r *ReportingRepo) ListWorkers(ctx context.Context) ([]models.WorkerStatus, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, status, lines_prepared, last_seen FROM workers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WorkerStatus, error) {
		var w models.WorkerStatus
		err := row.Scan(&w.WorkerName, &w.Status, &w.LinesPrepared, &w.LastSeen)
		return w, err
	})
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
