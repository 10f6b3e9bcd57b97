package escrow

import (
	"time"

	"gorm.io/gorm"
)

// IdempotencyRecord maps a client-supplied creation key to the trade it
// produced, so retried createTrade requests return the original trade
// instead of charging a second fee.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	TradeID        uint64    `json:"trade_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}
