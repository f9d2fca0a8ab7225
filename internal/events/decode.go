package events

import (
	"encoding/json"
	"fmt"
	"time"

	"restaurant-billing/internal/domain"
)

type rawEvent struct {
	ID         string           `json:"id"`
	Type       domain.EventType `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    json.RawMessage  `json:"payload"`
}

// Decode parses an envelope published by Notifier, typing the payload by
// event type. Unknown types keep the raw payload.
func Decode(body []byte) (domain.Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Event{}, fmt.Errorf("decode envelope: %w", err)
	}
	ev := domain.Event{ID: raw.ID, Type: raw.Type, OccurredAt: raw.OccurredAt}

	var err error
	switch raw.Type {
	case domain.EventApprovalRequested, domain.EventApprovalResolved:
		var p domain.ApprovalEvent
		err = json.Unmarshal(raw.Payload, &p)
		ev.Payload = p
	case domain.EventSettlementCompleted:
		var p domain.SettlementEvent
		err = json.Unmarshal(raw.Payload, &p)
		ev.Payload = p
	case domain.EventLineStatus:
		var p domain.LineStatusEvent
		err = json.Unmarshal(raw.Payload, &p)
		ev.Payload = p
	default:
		ev.Payload = raw.Payload
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("decode %s payload: %w", raw.Type, err)
	}
	return ev, nil
}
