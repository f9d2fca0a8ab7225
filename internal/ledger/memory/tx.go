package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/hashicorp/go-memdb"

	"restaurant-billing/internal/domain"
)

var errReadOnly = errors.New("memory ledger: write in read-only transaction")

type tx struct {
	txn      *memdb.Txn
	readOnly bool
}

func (t *tx) insert(table string, obj any) error {
	if t.readOnly {
		return errReadOnly
	}
	return t.txn.Insert(table, obj)
}

func (t *tx) CreateTable(ctx context.Context, tb domain.Table) error {
	if existing, err := first[domain.Table](t.txn, tTables, tb.ID); err != nil {
		return err
	} else if existing != nil {
		return domain.Conflict("table", tb.ID)
	}
	return t.insert(tTables, &tb)
}

func (t *tx) GetTable(ctx context.Context, id string) (domain.Table, error) {
	tb, err := first[domain.Table](t.txn, tTables, id)
	if err != nil {
		return domain.Table{}, err
	}
	if tb == nil {
		return domain.Table{}, domain.NotFound("table", id)
	}
	return *tb, nil
}

func (t *tx) UpdateTable(ctx context.Context, tb *domain.Table) error {
	cur, err := first[domain.Table](t.txn, tTables, tb.ID)
	if err != nil {
		return err
	}
	if cur == nil || cur.Version != tb.Version {
		return domain.Conflict("table", tb.ID)
	}
	next := *tb
	next.Version++
	if err := t.insert(tTables, &next); err != nil {
		return err
	}
	tb.Version = next.Version
	return nil
}

func (t *tx) CreateOccupant(ctx context.Context, o domain.Occupant) error {
	if existing, err := first[domain.Occupant](t.txn, tOccupants, o.ID); err != nil {
		return err
	} else if existing != nil {
		return domain.Conflict("occupant", o.ID)
	}
	return t.insert(tOccupants, &o)
}

func (t *tx) GetOccupant(ctx context.Context, id string) (domain.Occupant, error) {
	o, err := first[domain.Occupant](t.txn, tOccupants, id)
	if err != nil {
		return domain.Occupant{}, err
	}
	if o == nil {
		return domain.Occupant{}, domain.NotFound("occupant", id)
	}
	return *o, nil
}

func (t *tx) ListOccupants(ctx context.Context, tableID string) ([]domain.Occupant, error) {
	out, err := all[domain.Occupant](t.txn, tOccupants, "table", tableID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SeatedAt.Equal(out[j].SeatedAt) {
			return out[i].SeatedAt.Before(out[j].SeatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) UpdateOccupant(ctx context.Context, o *domain.Occupant) error {
	cur, err := first[domain.Occupant](t.txn, tOccupants, o.ID)
	if err != nil {
		return err
	}
	if cur == nil || cur.Version != o.Version {
		return domain.Conflict("occupant", o.ID)
	}
	next := *o
	next.Version++
	if err := t.insert(tOccupants, &next); err != nil {
		return err
	}
	o.Version = next.Version
	return nil
}

func (t *tx) CreateOrder(ctx context.Context, o domain.Order) error {
	if o.Status == domain.OrderOpen {
		if _, found, err := t.OpenOrder(ctx, o.TableID); err != nil {
			return err
		} else if found {
			return domain.Conflict("order", o.TableID)
		}
	}
	return t.insert(tOrders, &o)
}

func (t *tx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := first[domain.Order](t.txn, tOrders, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o == nil {
		return domain.Order{}, domain.NotFound("order", id)
	}
	return *o, nil
}

func (t *tx) OpenOrder(ctx context.Context, tableID string) (domain.Order, bool, error) {
	orders, err := all[domain.Order](t.txn, tOrders, "table", tableID)
	if err != nil {
		return domain.Order{}, false, err
	}
	for _, o := range orders {
		if o.IsOpen() {
			return o, true, nil
		}
	}
	return domain.Order{}, false, nil
}

func (t *tx) UpdateOrder(ctx context.Context, o *domain.Order) error {
	cur, err := first[domain.Order](t.txn, tOrders, o.ID)
	if err != nil {
		return err
	}
	if cur == nil || cur.Version != o.Version {
		return domain.Conflict("order", o.ID)
	}
	next := *o
	next.Version++
	if err := t.insert(tOrders, &next); err != nil {
		return err
	}
	o.Version = next.Version
	return nil
}

func (t *tx) InsertLine(ctx context.Context, l domain.OrderLine) error {
	return t.insert(tLines, &l)
}

func (t *tx) GetLine(ctx context.Context, id string) (domain.OrderLine, error) {
	l, err := first[domain.OrderLine](t.txn, tLines, id)
	if err != nil {
		return domain.OrderLine{}, err
	}
	if l == nil {
		return domain.OrderLine{}, domain.NotFound("line", id)
	}
	return *l, nil
}

func (t *tx) ListLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	out, err := all[domain.OrderLine](t.txn, tLines, "order", orderID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) UpdateLine(ctx context.Context, l *domain.OrderLine) error {
	cur, err := first[domain.OrderLine](t.txn, tLines, l.ID)
	if err != nil {
		return err
	}
	if cur == nil || cur.Version != l.Version {
		return domain.Conflict("line", l.ID)
	}
	next := *l
	next.Version++
	if err := t.insert(tLines, &next); err != nil {
		return err
	}
	l.Version = next.Version
	return nil
}

func (t *tx) InsertSettlement(ctx context.Context, r domain.SettlementRecord) error {
	r.Lines = append([]domain.SettledLine(nil), r.Lines...)
	return t.insert(tSettlements, &r)
}

func (t *tx) ListSettlements(ctx context.Context, orderID string) ([]domain.SettlementRecord, error) {
	out, err := all[domain.SettlementRecord](t.txn, tSettlements, "order", orderID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettledAt.Before(out[j].SettledAt) })
	return out, nil
}

func (t *tx) CreateApproval(ctx context.Context, a domain.ApprovalRequest) error {
	return t.insert(tApprovals, &a)
}

func (t *tx) GetApproval(ctx context.Context, id string) (domain.ApprovalRequest, error) {
	a, err := first[domain.ApprovalRequest](t.txn, tApprovals, id)
	if err != nil {
		return domain.ApprovalRequest{}, err
	}
	if a == nil {
		return domain.ApprovalRequest{}, domain.NotFound("approval", id)
	}
	return *a, nil
}

func (t *tx) ListApprovals(ctx context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRequest, error) {
	out, err := all[domain.ApprovalRequest](t.txn, tApprovals, "status", string(status))
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) ResolveApproval(ctx context.Context, a domain.ApprovalRequest) error {
	cur, err := first[domain.ApprovalRequest](t.txn, tApprovals, a.ID)
	if err != nil {
		return err
	}
	if cur == nil {
		return domain.NotFound("approval", a.ID)
	}
	if cur.Status != domain.ApprovalPending {
		return domain.AlreadyResolved(a.ID, cur.Status)
	}
	return t.insert(tApprovals, &a)
}
