// Package memory is a go-memdb ledger. Write transactions are serialized by
// memdb and aborted unless fn succeeds, so it keeps the same atomicity the
// Postgres store gives. Used by tests and by the tab service when
// ledger.driver is "memory".
package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-memdb"

	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/ledger"
)

const (
	tTables      = "tables"
	tOccupants   = "occupants"
	tOrders      = "orders"
	tLines       = "lines"
	tSettlements = "settlements"
	tApprovals   = "approvals"
	tProducts    = "products"
)

func idIndex() *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}}
}

func fieldIndex(name, field string, allowMissing bool) *memdb.IndexSchema {
	return &memdb.IndexSchema{Name: name, AllowMissing: allowMissing, Indexer: &memdb.StringFieldIndex{Field: field}}
}

func schema() *memdb.DBSchema {
	table := func(name string, extra ...*memdb.IndexSchema) *memdb.TableSchema {
		idx := map[string]*memdb.IndexSchema{"id": idIndex()}
		for _, e := range extra {
			idx[e.Name] = e
		}
		return &memdb.TableSchema{Name: name, Indexes: idx}
	}
	return &memdb.DBSchema{Tables: map[string]*memdb.TableSchema{
		tTables:      table(tTables),
		tOccupants:   table(tOccupants, fieldIndex("table", "TableID", true)),
		tOrders:      table(tOrders, fieldIndex("table", "TableID", false)),
		tLines:       table(tLines, fieldIndex("order", "OrderID", false)),
		tSettlements: table(tSettlements, fieldIndex("order", "OrderID", false)),
		tApprovals:   table(tApprovals, fieldIndex("status", "Status", false)),
		tProducts:    table(tProducts),
	}}
}

type Store struct {
	db *memdb.MemDB
}

var (
	_ ledger.Store   = (*Store)(nil)
	_ ledger.Catalog = (*Store)(nil)
)

func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("memdb schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, &tx{txn: txn}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fn(ctx, &tx{txn: txn, readOnly: true})
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	p, err := first[domain.Product](txn, tProducts, id)
	if err != nil {
		return domain.Product{}, err
	}
	if p == nil {
		return domain.Product{}, domain.NotFound("product", id)
	}
	return *p, nil
}

func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tProducts, &p); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	out, err := all[domain.Product](txn, tProducts, "id_prefix", "")
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// first returns a copy-safe pointer to the stored row, or nil.
func first[T any](txn *memdb.Txn, table, id string) (*T, error) {
	raw, err := txn.First(table, "id", id)
	if err != nil {
		return nil, fmt.Errorf("memdb %s lookup: %w", table, err)
	}
	if raw == nil {
		return nil, nil
	}
	v := *raw.(*T)
	return &v, nil
}

func all[T any](txn *memdb.Txn, table, index string, args ...any) ([]T, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("memdb %s scan: %w", table, err)
	}
	var out []T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*T))
	}
	return out, nil
}
