package domain

import "time"

type EventType string

const (
	EventApprovalRequested   EventType = "approval.requested"
	EventApprovalResolved    EventType = "approval.resolved"
	EventSettlementCompleted EventType = "settlement.completed"
	EventLineStatus          EventType = "kitchen.line_status"
)

// Event is the envelope published on the notification fanout. Payload is one
// of the *Event structs below.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// CorrelationID groups events of the same order or request.
func (e Event) CorrelationID() string {
	switch p := e.Payload.(type) {
	case ApprovalEvent:
		return p.Request.ID
	case SettlementEvent:
		return p.Record.OrderID
	case LineStatusEvent:
		return p.OrderID
	}
	return e.ID
}

type ApprovalEvent struct {
	Request ApprovalRequest `json:"request"`
	// NotifyRoles is set for approval.requested, NotifyActorID for resolutions.
	NotifyRoles   []Role `json:"notify_roles,omitempty"`
	NotifyActorID string `json:"notify_actor_id,omitempty"`
}

type SettlementEvent struct {
	Record SettlementRecord `json:"record"`
}

type LineStatusEvent struct {
	LineID              string     `json:"line_id"`
	OrderID             string     `json:"order_id"`
	TableID             string     `json:"table_id"`
	OldStatus           PrepStatus `json:"old_status"`
	NewStatus           PrepStatus `json:"new_status"`
	ChangedBy           string     `json:"changed_by"`
	Timestamp           time.Time  `json:"timestamp"`
	EstimatedCompletion time.Time  `json:"estimated_completion,omitempty"`
}

// KitchenTicket is routed to the kitchen queue for lines that need preparation.
type KitchenTicket struct {
	LineID      string `json:"line_id"`
	OrderID     string `json:"order_id"`
	TableID     string `json:"table_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Priority    int    `json:"priority"`
}
