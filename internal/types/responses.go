package types

import "time"

// TradeResponse is the caller-facing view of a trade, with the two
// bundles split out of the flat item rows.
type TradeResponse struct {
	TradeID        uint64    `json:"trade_id"`
	Initiator      string    `json:"initiator"`
	Counterparty   string    `json:"counterparty"`
	Status         string    `json:"status"`
	OfferedItems   []Item    `json:"offered_items"`
	RequestedItems []Item    `json:"requested_items"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewTradeResponse builds the response view for a trade record.
func NewTradeResponse(t *Trade) *TradeResponse {
	return &TradeResponse{
		TradeID:        t.TradeID,
		Initiator:      t.Initiator,
		Counterparty:   t.Counterparty,
		Status:         t.Status,
		OfferedItems:   t.OfferedItems(),
		RequestedItems: t.RequestedItems(),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
