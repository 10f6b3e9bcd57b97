package types

import (
	"time"

	"gorm.io/gorm"
)

// Trade statuses
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Trade item roles
const (
	RoleOffered   = "OFFERED"
	RoleRequested = "REQUESTED"
)

// Item identifies exactly one non-fungible asset instance by its
// collection class and asset id. It has no lifecycle of its own.
type Item struct {
	AssetClass string `json:"asset_class"`
	AssetID    uint64 `json:"asset_id"`
}

// TradeItem is one entry of a trade's asset bundles. Position preserves
// the order the items were supplied in.
type TradeItem struct {
	gorm.Model `json:"-"`
	TradeID    uint64 `gorm:"index" json:"trade_id"`
	Role       string `gorm:"index" json:"role"` // OFFERED or REQUESTED
	Position   int    `json:"position"`
	AssetClass string `json:"asset_class"`
	AssetID    uint64 `json:"asset_id"`
}

// Trade is a two-party proposed exchange of asset bundles. Offered items
// are custodied by the engine for the whole PENDING lifetime; requested
// items only move at acceptance, directly from counterparty to initiator.
type Trade struct {
	gorm.Model   `json:"-"`
	TradeID      uint64      `gorm:"uniqueIndex" json:"trade_id"`
	Initiator    string      `json:"initiator"`
	Counterparty string      `json:"counterparty"`
	Status       string      `json:"status"` // PENDING, COMPLETED, CANCELLED
	Items        []TradeItem `json:"items,omitempty" gorm:"foreignKey:TradeID;references:TradeID"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// OfferedItems returns the initiator's bundle in supply order.
func (t *Trade) OfferedItems() []Item {
	return t.itemsByRole(RoleOffered)
}

// RequestedItems returns the counterparty's bundle in supply order.
func (t *Trade) RequestedItems() []Item {
	return t.itemsByRole(RoleRequested)
}

// ItemCount is the total count across both sides, the basis for fee
// computation at creation and at acceptance.
func (t *Trade) ItemCount() int {
	return len(t.Items)
}

func (t *Trade) itemsByRole(role string) []Item {
	items := make([]Item, 0, len(t.Items))
	for _, ti := range t.Items {
		if ti.Role == role {
			items = append(items, Item{AssetClass: ti.AssetClass, AssetID: ti.AssetID})
		}
	}
	return items
}
