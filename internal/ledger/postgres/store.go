// Package postgres is the durable ledger on pgx. Every Store.InTx call is a
// single database transaction; conditional updates key on the version column.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ ledger.Store   = (*Store)(nil)
	_ ledger.Catalog = (*Store)(nil)
)

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{}, fn)
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx ledger.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return domain.StoreUnavailable("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr("commit", "", "", err)
	}
	return nil
}

// mapErr turns driver errors into domain kinds: unique violations and
// serialization failures become conflicts, lost connections become
// store_unavailable.
func mapErr(op, entity, id string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			c := domain.Conflict(entity, id)
			c.Cause = err
			return c
		case "23503", "23514":
			return &domain.Error{Kind: domain.KindValidation, Field: entity, ID: id, Message: pgErr.Message, Cause: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return domain.StoreUnavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("numeric %q: %w", s, err)
	}
	return d, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	var price string
	err := s.pool.QueryRow(ctx, `
SELECT id, name, price::text, requires_preparation, points_cost
FROM products WHERE id=$1`, id).Scan(&p.ID, &p.Name, &price, &p.RequiresPreparation, &p.PointsCost)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.NotFound("product", id)
	}
	if err != nil {
		return domain.Product{}, mapErr("get product", "product", id, err)
	}
	if p.Price, err = parseDec(price); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO products (id, name, price, requires_preparation, points_cost)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  name = EXCLUDED.name,
  price = EXCLUDED.price,
  requires_preparation = EXCLUDED.requires_preparation,
  points_cost = EXCLUDED.points_cost`,
		p.ID, p.Name, p.Price.String(), p.RequiresPreparation, p.PointsCost)
	return mapErr("upsert product", "product", p.ID, err)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, price::text, requires_preparation, points_cost
FROM products ORDER BY name`)
	if err != nil {
		return nil, mapErr("list products", "product", "", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.RequiresPreparation, &p.PointsCost); err != nil {
			return nil, err
		}
		if p.Price, err = parseDec(price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
