package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Table struct {
	ID                  string `json:"id"`
	Label               string `json:"label"`
	Capacity            int    `json:"capacity"`
	PrincipalOccupantID string `json:"principal_occupant_id,omitempty"`
	Version             int64  `json:"-"`
}

// Occupant is seated when TableID is non-empty.
type Occupant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	TableID  string    `json:"table_id,omitempty"`
	Points   int       `json:"points"`
	SeatedAt time.Time `json:"seated_at,omitempty"`
	Version  int64     `json:"-"`
}

func (o Occupant) Seated() bool { return o.TableID != "" }

// Detach unbinds the occupant from its table.
func (o *Occupant) Detach() {
	o.TableID = ""
	o.SeatedAt = time.Time{}
}

type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderSettled   OrderStatus = "settled"
	OrderCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID             string          `json:"id"`
	TableID        string          `json:"table_id"`
	Status         OrderStatus     `json:"status"`
	TipAmount      decimal.Decimal `json:"tip_amount"`
	TipRecipientID string          `json:"tip_recipient_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int64           `json:"-"`
}

func (o Order) IsOpen() bool { return o.Status == OrderOpen }

type PrepStatus string

const (
	PrepNone      PrepStatus = "none"
	PrepQueued    PrepStatus = "queued"
	PrepPreparing PrepStatus = "preparing"
	PrepReady     PrepStatus = "ready"
	PrepServed    PrepStatus = "served"
)

// InProgress reports whether the kitchen still holds the line. Such lines
// block a full closeout and a forced table release.
func (p PrepStatus) InProgress() bool {
	return p == PrepQueued || p == PrepPreparing
}

type OrderLine struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Quantity        int             `json:"quantity"`
	Remaining       int             `json:"quantity_remaining"`
	Consumer        Consumer        `json:"consumer"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	DiscountReason  string          `json:"discount_reason,omitempty"`
	PrepStatus      PrepStatus      `json:"prep_status"`
	CreatedAt       time.Time       `json:"created_at"`
	Version         int64           `json:"-"`
}

func (l OrderLine) Eligible() bool { return l.Remaining > 0 }

type Product struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Price               decimal.Decimal `json:"price"`
	RequiresPreparation bool            `json:"requires_preparation"`
	PointsCost          int             `json:"points_cost"`
}

type Role string

const (
	RoleWaiter  Role = "waiter"
	RoleCashier Role = "cashier"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

var roleAliases = map[string]Role{
	"waiter":  RoleWaiter,
	"garcom":  RoleWaiter,
	"garçom":  RoleWaiter,
	"cashier": RoleCashier,
	"caixa":   RoleCashier,
	"manager": RoleManager,
	"gerente": RoleManager,
	"owner":   RoleOwner,
	"dono":    RoleOwner,
}

// ParseRole accepts the English role names and the floor staff's own terms.
func ParseRole(s string) (Role, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

type ActionType string

const (
	ActionApplyDiscount ActionType = "apply_discount"
	ActionFreeTable     ActionType = "free_table"
)

type ActionPayload struct {
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Reason          string          `json:"reason,omitempty"`
}

// Action targets a line for apply_discount and a table for free_table.
type Action struct {
	Type     ActionType    `json:"type"`
	TargetID string        `json:"target_id"`
	Payload  ActionPayload `json:"payload"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type ApprovalRequest struct {
	ID            string         `json:"id"`
	Action        Action         `json:"action"`
	RequesterID   string         `json:"requester_id"`
	RequesterRole Role           `json:"requester_role"`
	Status        ApprovalStatus `json:"status"`
	ResolverID    string         `json:"resolver_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
}

type SettlementKind string

const (
	SettlementFull     SettlementKind = "full"
	SettlementOccupant SettlementKind = "occupant"
	SettlementPartial  SettlementKind = "partial"
)

type SettledLine struct {
	LineID   string          `json:"line_id"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

type SettlementRecord struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	TableID         string          `json:"table_id"`
	Kind            SettlementKind  `json:"kind"`
	PayerOccupantID string          `json:"payer_occupant_id,omitempty"`
	Lines           []SettledLine   `json:"lines"`
	Amount          decimal.Decimal `json:"amount"`
	Tip             decimal.Decimal `json:"tip"`
	TipRecipientID  string          `json:"tip_recipient_id,omitempty"`
	OrderStatus     OrderStatus     `json:"order_status"`
	SettledAt       time.Time       `json:"settled_at"`
}

// Total is the amount charged including tip.
func (r SettlementRecord) Total() decimal.Decimal { return r.Amount.Add(r.Tip) }
