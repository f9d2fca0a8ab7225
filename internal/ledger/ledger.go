// Package ledger defines the transactional store behind tabs, settlements,
// approvals and loyalty balances. Implementations live in ledger/postgres and
// ledger/memory.
package ledger

import (
	"context"

	"restaurant-billing/internal/domain"
)

// Tx is one ledger transaction. Update* calls are conditional on the
// Version the caller read and return a conflict error when it moved; on
// success they bump the Version of the passed value.
type Tx interface {
	CreateTable(ctx context.Context, t domain.Table) error
	GetTable(ctx context.Context, id string) (domain.Table, error)
	UpdateTable(ctx context.Context, t *domain.Table) error

	CreateOccupant(ctx context.Context, o domain.Occupant) error
	GetOccupant(ctx context.Context, id string) (domain.Occupant, error)
	// ListOccupants returns the occupants seated at a table, earliest first.
	ListOccupants(ctx context.Context, tableID string) ([]domain.Occupant, error)
	UpdateOccupant(ctx context.Context, o *domain.Occupant) error

	CreateOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	// OpenOrder returns the open order of a table; found is false when the
	// table is free.
	OpenOrder(ctx context.Context, tableID string) (o domain.Order, found bool, err error)
	UpdateOrder(ctx context.Context, o *domain.Order) error

	InsertLine(ctx context.Context, l domain.OrderLine) error
	GetLine(ctx context.Context, id string) (domain.OrderLine, error)
	// ListLines returns every line of an order by creation time.
	ListLines(ctx context.Context, orderID string) ([]domain.OrderLine, error)
	UpdateLine(ctx context.Context, l *domain.OrderLine) error

	InsertSettlement(ctx context.Context, r domain.SettlementRecord) error
	ListSettlements(ctx context.Context, orderID string) ([]domain.SettlementRecord, error)

	CreateApproval(ctx context.Context, a domain.ApprovalRequest) error
	GetApproval(ctx context.Context, id string) (domain.ApprovalRequest, error)
	ListApprovals(ctx context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRequest, error)
	// ResolveApproval writes a terminal status only while the stored request
	// is still pending; otherwise it returns an already_resolved error.
	ResolveApproval(ctx context.Context, a domain.ApprovalRequest) error
}

type Store interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View runs fn on a read-only snapshot.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Catalog resolves products for pricing and redemption.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	UpsertProduct(ctx context.Context, p domain.Product) error
	ListProducts(ctx context.Context) ([]domain.Product, error)
}
