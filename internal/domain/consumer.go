package domain

import (
	"encoding/json"
	"fmt"
)

type consumerKind uint8

const (
	consumerShared consumerKind = iota
	consumerOccupant
)

// Consumer says who an order line is charged to: one occupant, or the whole
// table. The zero value is Shared.
type Consumer struct {
	kind       consumerKind
	occupantID string
}

func Shared() Consumer { return Consumer{} }

func OccupantConsumer(id string) Consumer {
	return Consumer{kind: consumerOccupant, occupantID: id}
}

func (c Consumer) IsShared() bool { return c.kind == consumerShared }

func (c Consumer) OccupantID() (string, bool) {
	if c.kind != consumerOccupant {
		return "", false
	}
	return c.occupantID, true
}

// Key identifies the consumer inside maps. Shared maps to "".
func (c Consumer) Key() string {
	if c.IsShared() {
		return ""
	}
	return "occupant:" + c.occupantID
}

func (c Consumer) String() string {
	if c.IsShared() {
		return "shared"
	}
	return "occupant(" + c.occupantID + ")"
}

type consumerJSON struct {
	Kind       string `json:"kind"`
	OccupantID string `json:"occupant_id,omitempty"`
}

func (c Consumer) MarshalJSON() ([]byte, error) {
	if c.IsShared() {
		return json.Marshal(consumerJSON{Kind: "shared"})
	}
	return json.Marshal(consumerJSON{Kind: "occupant", OccupantID: c.occupantID})
}

func (c *Consumer) UnmarshalJSON(b []byte) error {
	var v consumerJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.Kind {
	case "", "shared":
		*c = Shared()
	case "occupant":
		if v.OccupantID == "" {
			return fmt.Errorf("consumer: occupant_id is required for kind occupant")
		}
		*c = OccupantConsumer(v.OccupantID)
	default:
		return fmt.Errorf("consumer: unknown kind %q", v.Kind)
	}
	return nil
}
