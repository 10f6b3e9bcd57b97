package migrations

import (
	"github.com/ksred/escrow-api/internal/ledger"
	"gorm.io/gorm"
)

// AddLedger creates the asset ledger tables and the journal indexes.
func AddLedger(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&ledger.NonFungibleAsset{},
		&ledger.FungibleBalance{},
		&ledger.TransferRecord{},
	); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Journal lookups by account
		`CREATE INDEX IF NOT EXISTS idx_transfer_records_from_account
		 ON transfer_records(from_account)`,

		`CREATE INDEX IF NOT EXISTS idx_transfer_records_to_account
		 ON transfer_records(to_account)`,

		// Journal lookups by asset instance
		`CREATE INDEX IF NOT EXISTS idx_transfer_records_asset
		 ON transfer_records(asset_class, asset_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
