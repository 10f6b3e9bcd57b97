package ledger

import (
	"time"

	"gorm.io/gorm"
)

// NonFungibleAsset records current ownership of one asset instance.
type NonFungibleAsset struct {
	gorm.Model `json:"-"`
	AssetClass string `gorm:"uniqueIndex:idx_assets_class_id" json:"asset_class"`
	AssetID    uint64 `gorm:"uniqueIndex:idx_assets_class_id" json:"asset_id"`
	Owner      string `gorm:"index" json:"owner"`
}

// FungibleBalance holds an account's balance in the unit of account.
type FungibleBalance struct {
	gorm.Model `json:"-"`
	Account    string `gorm:"uniqueIndex" json:"account"`
	Amount     uint64 `json:"amount"`
}

// TransferRecord is one journal entry per successful movement, fungible
// or non-fungible. Kept for audit; nothing in the engine reads it back.
type TransferRecord struct {
	gorm.Model  `json:"-"`
	TransferID  string    `gorm:"uniqueIndex" json:"transfer_id"`
	Kind        string    `json:"kind"` // NON_FUNGIBLE or FUNGIBLE
	AssetClass  string    `json:"asset_class,omitempty"`
	AssetID     uint64    `json:"asset_id,omitempty"`
	Amount      uint64    `json:"amount,omitempty"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	CreatedAt   time.Time `json:"created_at"`
}

// Journal entry kinds
const (
	KindNonFungible = "NON_FUNGIBLE"
	KindFungible    = "FUNGIBLE"
)
