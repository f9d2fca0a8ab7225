package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-billing/internal/domain"
)

type pgTx struct {
	tx pgx.Tx
}

type scanner interface {
	Scan(dest ...any) error
}

// conditional runs an UPDATE keyed on id and version; zero rows is a conflict.
func (t *pgTx) conditional(ctx context.Context, entity, id string, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr("update "+entity, entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Conflict(entity, id)
	}
	return nil
}

// ---- tables ----

func (t *pgTx) CreateTable(ctx context.Context, tb domain.Table) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO dining_tables (id, label, capacity, principal_occupant_id, version)
VALUES ($1,$2,$3,$4,$5)`, tb.ID, tb.Label, tb.Capacity, nullIfEmpty(tb.PrincipalOccupantID), tb.Version)
	return mapErr("create table", "table", tb.ID, err)
}

func (t *pgTx) GetTable(ctx context.Context, id string) (domain.Table, error) {
	var tb domain.Table
	err := t.tx.QueryRow(ctx, `
SELECT id, label, capacity, COALESCE(principal_occupant_id,''), version
FROM dining_tables WHERE id=$1`, id).Scan(&tb.ID, &tb.Label, &tb.Capacity, &tb.PrincipalOccupantID, &tb.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Table{}, domain.NotFound("table", id)
	}
	return tb, mapErr("get table", "table", id, err)
}

func (t *pgTx) UpdateTable(ctx context.Context, tb *domain.Table) error {
	err := t.conditional(ctx, "table", tb.ID, `
UPDATE dining_tables SET label=$3, capacity=$4, principal_occupant_id=$5, version=version+1
WHERE id=$1 AND version=$2`, tb.ID, tb.Version, tb.Label, tb.Capacity, nullIfEmpty(tb.PrincipalOccupantID))
	if err == nil {
		tb.Version++
	}
	return err
}

// ---- occupants ----

const occupantCols = `id, name, COALESCE(table_id,''), points, seated_at, version`

func scanOccupant(row scanner) (domain.Occupant, error) {
	var o domain.Occupant
	var seated *time.Time
	if err := row.Scan(&o.ID, &o.Name, &o.TableID, &o.Points, &seated, &o.Version); err != nil {
		return domain.Occupant{}, err
	}
	if seated != nil {
		o.SeatedAt = *seated
	}
	return o, nil
}

func nullTime(ts time.Time) any {
	if ts.IsZero() {
		return nil
	}
	return ts
}

func (t *pgTx) CreateOccupant(ctx context.Context, o domain.Occupant) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO occupants (id, name, table_id, points, seated_at, version)
VALUES ($1,$2,$3,$4,$5,$6)`, o.ID, o.Name, nullIfEmpty(o.TableID), o.Points, nullTime(o.SeatedAt), o.Version)
	return mapErr("create occupant", "occupant", o.ID, err)
}

func (t *pgTx) GetOccupant(ctx context.Context, id string) (domain.Occupant, error) {
	o, err := scanOccupant(t.tx.QueryRow(ctx, `SELECT `+occupantCols+` FROM occupants WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Occupant{}, domain.NotFound("occupant", id)
	}
	return o, mapErr("get occupant", "occupant", id, err)
}

func (t *pgTx) ListOccupants(ctx context.Context, tableID string) ([]domain.Occupant, error) {
	rows, err := t.tx.Query(ctx, `
SELECT `+occupantCols+` FROM occupants WHERE table_id=$1 ORDER BY seated_at, id`, tableID)
	if err != nil {
		return nil, mapErr("list occupants", "table", tableID, err)
	}
	defer rows.Close()

	var out []domain.Occupant
	for rows.Next() {
		o, err := scanOccupant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *pgTx) UpdateOccupant(ctx context.Context, o *domain.Occupant) error {
	err := t.conditional(ctx, "occupant", o.ID, `
UPDATE occupants SET name=$3, table_id=$4, points=$5, seated_at=$6, version=version+1
WHERE id=$1 AND version=$2`, o.ID, o.Version, o.Name, nullIfEmpty(o.TableID), o.Points, nullTime(o.SeatedAt))
	if err == nil {
		o.Version++
	}
	return err
}

// ---- orders ----

const orderCols = `id, table_id, status, tip_amount::text, COALESCE(tip_recipient_id,''), created_at, updated_at, version`

func scanOrder(row scanner) (domain.Order, error) {
	var o domain.Order
	var status, tip string
	if err := row.Scan(&o.ID, &o.TableID, &status, &tip, &o.TipRecipientID, &o.CreatedAt, &o.UpdatedAt, &o.Version); err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	var err error
	o.TipAmount, err = parseDec(tip)
	return o, err
}

func (t *pgTx) CreateOrder(ctx context.Context, o domain.Order) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO orders (id, table_id, status, tip_amount, tip_recipient_id, created_at, updated_at, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.TableID, string(o.Status), o.TipAmount.String(), nullIfEmpty(o.TipRecipientID), o.CreatedAt, o.UpdatedAt, o.Version)
	return mapErr("create order", "order", o.TableID, err)
}

func (t *pgTx) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.NotFound("order", id)
	}
	return o, mapErr("get order", "order", id, err)
}

func (t *pgTx) OpenOrder(ctx context.Context, tableID string) (domain.Order, bool, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `
SELECT `+orderCols+` FROM orders WHERE table_id=$1 AND status='open'`, tableID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, mapErr("open order", "table", tableID, err)
	}
	return o, true, nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *domain.Order) error {
	err := t.conditional(ctx, "order", o.ID, `
UPDATE orders SET status=$3, tip_amount=$4, tip_recipient_id=$5, updated_at=$6, version=version+1
WHERE id=$1 AND version=$2`,
		o.ID, o.Version, string(o.Status), o.TipAmount.String(), nullIfEmpty(o.TipRecipientID), o.UpdatedAt)
	if err == nil {
		o.Version++
	}
	return err
}

// ---- lines ----

const lineCols = `id, order_id, product_id, product_name, unit_price::text, quantity, quantity_remaining,
COALESCE(consumer_occupant_id,''), discount_percent::text, discount_reason, prep_status, created_at, version`

func scanLine(row scanner) (domain.OrderLine, error) {
	var l domain.OrderLine
	var price, discount, consumer, prep string
	if err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &price, &l.Quantity, &l.Remaining,
		&consumer, &discount, &l.DiscountReason, &prep, &l.CreatedAt, &l.Version); err != nil {
		return domain.OrderLine{}, err
	}
	var err error
	if l.UnitPrice, err = parseDec(price); err != nil {
		return domain.OrderLine{}, err
	}
	if l.DiscountPercent, err = parseDec(discount); err != nil {
		return domain.OrderLine{}, err
	}
	if consumer == "" {
		l.Consumer = domain.Shared()
	} else {
		l.Consumer = domain.OccupantConsumer(consumer)
	}
	l.PrepStatus = domain.PrepStatus(prep)
	return l, nil
}

func consumerColumn(c domain.Consumer) any {
	if id, ok := c.OccupantID(); ok {
		return id
	}
	return nil
}

func (t *pgTx) InsertLine(ctx context.Context, l domain.OrderLine) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO order_lines (id, order_id, product_id, product_name, unit_price, quantity, quantity_remaining,
  consumer_occupant_id, discount_percent, discount_reason, prep_status, created_at, updated_at, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12,$13)`,
		l.ID, l.OrderID, l.ProductID, l.ProductName, l.UnitPrice.String(), l.Quantity, l.Remaining,
		consumerColumn(l.Consumer), l.DiscountPercent.String(), l.DiscountReason, string(l.PrepStatus), l.CreatedAt, l.Version)
	return mapErr("insert line", "line", l.ID, err)
}

func (t *pgTx) GetLine(ctx context.Context, id string) (domain.OrderLine, error) {
	l, err := scanLine(t.tx.QueryRow(ctx, `SELECT `+lineCols+` FROM order_lines WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OrderLine{}, domain.NotFound("line", id)
	}
	return l, mapErr("get line", "line", id, err)
}

func (t *pgTx) ListLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := t.tx.Query(ctx, `
SELECT `+lineCols+` FROM order_lines WHERE order_id=$1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, mapErr("list lines", "order", orderID, err)
	}
	defer rows.Close()

	var out []domain.OrderLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (t *pgTx) UpdateLine(ctx context.Context, l *domain.OrderLine) error {
	err := t.conditional(ctx, "line", l.ID, `
UPDATE order_lines SET quantity_remaining=$3, discount_percent=$4, discount_reason=$5, prep_status=$6,
  updated_at=now(), version=version+1
WHERE id=$1 AND version=$2`,
		l.ID, l.Version, l.Remaining, l.DiscountPercent.String(), l.DiscountReason, string(l.PrepStatus))
	if err == nil {
		l.Version++
	}
	return err
}

// ---- settlements ----

func (t *pgTx) InsertSettlement(ctx context.Context, r domain.SettlementRecord) error {
	lines, err := json.Marshal(r.Lines)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
INSERT INTO settlements (id, order_id, table_id, kind, payer_occupant_id, lines, amount, tip, tip_recipient_id, order_status, settled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.OrderID, r.TableID, string(r.Kind), nullIfEmpty(r.PayerOccupantID), lines,
		r.Amount.String(), r.Tip.String(), nullIfEmpty(r.TipRecipientID), string(r.OrderStatus), r.SettledAt)
	return mapErr("insert settlement", "settlement", r.ID, err)
}

func (t *pgTx) ListSettlements(ctx context.Context, orderID string) ([]domain.SettlementRecord, error) {
	rows, err := t.tx.Query(ctx, `
SELECT id, order_id, table_id, kind, COALESCE(payer_occupant_id,''), lines, amount::text, tip::text,
  COALESCE(tip_recipient_id,''), order_status, settled_at
FROM settlements WHERE order_id=$1 ORDER BY settled_at`, orderID)
	if err != nil {
		return nil, mapErr("list settlements", "order", orderID, err)
	}
	defer rows.Close()

	var out []domain.SettlementRecord
	for rows.Next() {
		var r domain.SettlementRecord
		var kind, status, amount, tip string
		var lines []byte
		if err := rows.Scan(&r.ID, &r.OrderID, &r.TableID, &kind, &r.PayerOccupantID, &lines, &amount, &tip,
			&r.TipRecipientID, &status, &r.SettledAt); err != nil {
			return nil, err
		}
		r.Kind = domain.SettlementKind(kind)
		r.OrderStatus = domain.OrderStatus(status)
		if err := json.Unmarshal(lines, &r.Lines); err != nil {
			return nil, err
		}
		if r.Amount, err = parseDec(amount); err != nil {
			return nil, err
		}
		if r.Tip, err = parseDec(tip); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- approvals ----

const approvalCols = `id, action, target_id, discount_percent::text, reason, requester_id, requester_role,
status, COALESCE(resolver_id,''), created_at, resolved_at`

func scanApproval(row scanner) (domain.ApprovalRequest, error) {
	var a domain.ApprovalRequest
	var action, discount, role, status string
	if err := row.Scan(&a.ID, &action, &a.Action.TargetID, &discount, &a.Action.Payload.Reason, &a.RequesterID,
		&role, &status, &a.ResolverID, &a.CreatedAt, &a.ResolvedAt); err != nil {
		return domain.ApprovalRequest{}, err
	}
	a.Action.Type = domain.ActionType(action)
	a.RequesterRole = domain.Role(role)
	a.Status = domain.ApprovalStatus(status)
	var err error
	a.Action.Payload.DiscountPercent, err = parseDec(discount)
	return a, err
}

func (t *pgTx) CreateApproval(ctx context.Context, a domain.ApprovalRequest) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO approval_requests (id, action, target_id, discount_percent, reason, requester_id, requester_role, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, string(a.Action.Type), a.Action.TargetID, a.Action.Payload.DiscountPercent.String(), a.Action.Payload.Reason,
		a.RequesterID, string(a.RequesterRole), string(a.Status), a.CreatedAt)
	return mapErr("create approval", "approval", a.ID, err)
}

func (t *pgTx) GetApproval(ctx context.Context, id string) (domain.ApprovalRequest, error) {
	a, err := scanApproval(t.tx.QueryRow(ctx, `SELECT `+approvalCols+` FROM approval_requests WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ApprovalRequest{}, domain.NotFound("approval", id)
	}
	return a, mapErr("get approval", "approval", id, err)
}

func (t *pgTx) ListApprovals(ctx context.Context, status domain.ApprovalStatus) ([]domain.ApprovalRequest, error) {
	rows, err := t.tx.Query(ctx, `
SELECT `+approvalCols+` FROM approval_requests WHERE status=$1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, mapErr("list approvals", "approval", "", err)
	}
	defer rows.Close()

	var out []domain.ApprovalRequest
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *pgTx) ResolveApproval(ctx context.Context, a domain.ApprovalRequest) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE approval_requests SET status=$2, resolver_id=$3, resolved_at=$4
WHERE id=$1 AND status='pending'`, a.ID, string(a.Status), nullIfEmpty(a.ResolverID), a.ResolvedAt)
	if err != nil {
		return mapErr("resolve approval", "approval", a.ID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	cur, err := t.GetApproval(ctx, a.ID)
	if err != nil {
		return err
	}
	return domain.AlreadyResolved(a.ID, cur.Status)
}
