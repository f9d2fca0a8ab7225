package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"restaurant-billing/internal/domain"
)

// ErrLineNotFound is returned when a ticket names a line the ledger never saw.
var ErrLineNotFound = errors.New("order line not found")

// LineRef locates a line for notifications.
type LineRef struct {
	LineID  string
	OrderID string
	TableID string
	Status  domain.PrepStatus
}

type KitchenRepositoryInterface interface {
	RegisterOrFail(ctx context.Context, name, wtype string) (bool, error)
	SetOffline(ctx context.Context, name string) error
	Heartbeat(ctx context.Context, name string) error

	// TryStartPreparingTx moves a queued line to preparing. started is false
	// when the line already left the queued state, which happens on redelivery.
	TryStartPreparingTx(ctx context.Context, lineID, workerName string) (ref LineRef, started bool, err error)
	// MarkReadyTx moves a preparing line to ready; done is false when it was
	// already past preparing.
	MarkReadyTx(ctx context.Context, lineID, workerName string) (done bool, err error)
}

type KitchenRepository struct {
	pool *pgxpool.Pool
}

func NewKitchenRepository(pool *pgxpool.Pool) KitchenRepositoryInterface {
	return &KitchenRepository{pool: pool}
}

func (r *KitchenRepository) Heartbeat(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE workers SET last_seen=now() WHERE name=$1`, name)
	return err
}

// RegisterOrFail refuses a name that is already online; existed reports that
// case so the caller can tell it from a database failure.
func (r *KitchenRepository) RegisterOrFail(ctx context.Context, name, wtype string) (bool, error) {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM workers WHERE name=$1`, name).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = r.pool.Exec(ctx, `
			INSERT INTO workers(name,type,status,last_seen) VALUES ($1,$2,'online',now())
		`, name, wtype)
		return false, err
	case err != nil:
		return false, err
	case status == "online":
		return true, fmt.Errorf("worker %s already online", name)
	default:
		_, err = r.pool.Exec(ctx, `
			UPDATE workers SET type=$2, status='online', last_seen=now() WHERE name=$1
		`, name, wtype)
		return false, err
	}
}

func (r *KitchenRepository) SetOffline(ctx context.Context, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE workers SET status='offline', last_seen=now() WHERE name=$1`, name)
	return err
}

func (r *KitchenRepository) TryStartPreparingTx(ctx context.Context, lineID, workerName string) (LineRef, bool, error) {
	var ref LineRef
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
			SELECT l.id, l.order_id, o.table_id, l.prep_status
			FROM order_lines l JOIN orders o ON o.id = l.order_id
			WHERE l.id=$1
			FOR UPDATE OF l
		`, lineID).Scan(&ref.LineID, &ref.OrderID, &ref.TableID, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLineNotFound
		}
		if err != nil {
			return err
		}
		ref.Status = domain.PrepStatus(status)
		if ref.Status != domain.PrepQueued {
			return nil
		}
		// The version bump makes a concurrent settlement of this line retry.
		if _, err := tx.Exec(ctx, `
			UPDATE order_lines SET prep_status='preparing', version=version+1, updated_at=now()
			WHERE id=$1
		`, lineID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO line_status_log(line_id,status,changed_by,changed_at) VALUES ($1,'preparing',$2,now())
		`, lineID, workerName)
		return err
	})
	if err != nil {
		return LineRef{}, false, err
	}
	if ref.Status != domain.PrepQueued {
		return ref, false, nil
	}
	ref.Status = domain.PrepPreparing
	return ref, true, nil
}

func (r *KitchenRepository) MarkReadyTx(ctx context.Context, lineID, workerName string) (bool, error) {
	var done bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE order_lines SET prep_status='ready', version=version+1, updated_at=now()
			WHERE id=$1 AND prep_status='preparing'
		`, lineID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		done = true
		if _, err := tx.Exec(ctx, `
			INSERT INTO line_status_log(line_id,status,changed_by,changed_at) VALUES ($1,'ready',$2,now())
		`, lineID, workerName); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE workers SET lines_prepared = lines_prepared + 1, last_seen=now() WHERE name=$1
		`, workerName)
		return err
	})
	return done, err
}
