package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementReport is the reporting copy of one settlement record.
type SettlementReport struct {
	SettlementID   string          `json:"settlement_id"`
	OrderID        string          `json:"order_id"`
	TableID        string          `json:"table_id"`
	Kind           string          `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Tip            decimal.Decimal `json:"tip"`
	TipRecipientID string          `json:"tip_recipient_id,omitempty"`
	OrderStatus    string          `json:"order_status"`
	SettledAt      time.Time       `json:"settled_at"`
}

type TipSummary struct {
	StaffID     string          `json:"staff_id"`
	Settlements int             `json:"settlements"`
	Total       decimal.Decimal `json:"total"`
	From        *time.Time      `json:"from,omitempty"`
	To          *time.Time      `json:"to,omitempty"`
}

type WorkerStatus struct {
	WorkerName    string    `json:"worker_name"`
	Status        string    `json:"status"` // "online" | "offline"
	LinesPrepared int       `json:"lines_prepared"`
	LastSeen      time.Time `json:"last_seen"`
}
