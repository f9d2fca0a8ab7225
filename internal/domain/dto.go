package domain

type CreateTableRequest struct {
	Label    string `json:"label"`
	Capacity int    `json:"capacity"`
}

type RegisterOccupantRequest struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

type SeatRequest struct {
	OccupantID string `json:"occupant_id"`
}

type AddItemRequest struct {
	TableID   string `json:"-"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// ConsumerOccupantID empty means the line is shared by the table.
	ConsumerOccupantID string `json:"consumer_occupant_id,omitempty"`
}

type SettleRequest struct {
	TipRecipientID string `json:"tip_recipient_id,omitempty"`
}

type SettleOccupantRequest struct {
	OccupantID     string `json:"occupant_id"`
	TipRecipientID string `json:"tip_recipient_id,omitempty"`
}

type PartialSettlementRequest struct {
	OrderID          string `json:"-"`
	LineID           string `json:"line_id"`
	Quantity         int    `json:"quantity"`
	PayingOccupantID string `json:"paying_occupant_id"`
	TipRecipientID   string `json:"tip_recipient_id,omitempty"`
}

type ActionRequest struct {
	Actor  Actor  `json:"actor"`
	Action Action `json:"action"`
}

// ActionResult: Executed for privileged actors, Queued with RequestID otherwise.
type ActionResult struct {
	Executed  bool   `json:"executed"`
	Queued    bool   `json:"queued"`
	RequestID string `json:"request_id,omitempty"`
}

type ResolveRequest struct {
	Approver Actor    `json:"approver"`
	Decision Decision `json:"decision"`
}

type RedeemRequest struct {
	OccupantID string `json:"occupant_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

type Redemption struct {
	Line        OrderLine `json:"line"`
	PointsSpent int       `json:"points_spent"`
	Balance     int       `json:"balance"`
}

// Tab is a consistent snapshot of a table and its open order.
type Tab struct {
	Table     Table       `json:"table"`
	Occupants []Occupant  `json:"occupants"`
	Order     *Order      `json:"order,omitempty"`
	Lines     []OrderLine `json:"lines"`
}
