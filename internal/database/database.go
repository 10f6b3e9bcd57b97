package database

import (
	"fmt"

	"github.com/ksred/escrow-api/internal/database/migrations"
	"github.com/ksred/escrow-api/internal/escrow"
	"github.com/ksred/escrow-api/internal/fees"
	"github.com/ksred/escrow-api/internal/gate"
	"github.com/ksred/escrow-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	// TranslateError maps sqlite constraint violations onto gorm's
	// sentinel errors so handlers can match gorm.ErrDuplicatedKey.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddLedger(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddTradeItems(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&types.Trade{},
		&escrow.IdempotencyRecord{},
		&fees.FeeRate{},
		&gate.EngineState{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
