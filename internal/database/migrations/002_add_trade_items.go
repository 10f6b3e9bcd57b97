package migrations

import (
	"github.com/ksred/escrow-api/internal/types"
	"gorm.io/gorm"
)

// AddTradeItems creates the trade item table and its query indexes.
func AddTradeItems(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.TradeItem{}); err != nil {
		return err
	}

	indexes := []string{
		// Composite index for loading one side of a trade in order
		`CREATE INDEX IF NOT EXISTS idx_trade_items_trade_role
		 ON trade_items(trade_id, role, position)`,

		// Index for asset provenance lookups
		`CREATE INDEX IF NOT EXISTS idx_trade_items_asset
		 ON trade_items(asset_class, asset_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
