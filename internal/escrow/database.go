package escrow

import (
	"errors"
	"time"

	"github.com/ksred/escrow-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateTradeWithIdempotency records a new PENDING trade, its item rows,
// and the idempotency record in one transaction.
func (d *Database) CreateTradeWithIdempotency(trade *types.Trade, idempotencyKey string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(trade).Error; err != nil {
		tx.Rollback()
		return err
	}

	// A stale record under the same key (expired, or left behind by a
	// cancelled trade) must not block the insert on the unique index.
	if err := tx.Unscoped().Where("idempotency_key = ?", idempotencyKey).Delete(&IdempotencyRecord{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	record := IdempotencyRecord{
		IdempotencyKey: idempotencyKey,
		TradeID:        trade.TradeID,
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}

	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetTrade returns a trade with its items in supply order, or nil if
// the id is unknown or the record was reclaimed by cancellation.
func (d *Database) GetTrade(tradeID uint64) (*types.Trade, error) {
	var trade types.Trade
	err := d.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("trade_id = ?", tradeID).
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// MarkCompleted flips PENDING to COMPLETED as a compare-and-swap.
// Returns false when the trade was not PENDING anymore, which is how
// re-entrant and racing acceptance attempts lose.
func (d *Database) MarkCompleted(tradeID uint64) (bool, error) {
	result := d.db.Model(&types.Trade{}).
		Where("trade_id = ? AND status = ?", tradeID, types.StatusPending).
		Update("status", types.StatusCompleted)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReopenTrade undoes MarkCompleted when a later transfer failed.
func (d *Database) ReopenTrade(tradeID uint64) error {
	return d.db.Model(&types.Trade{}).
		Where("trade_id = ? AND status = ?", tradeID, types.StatusCompleted).
		Update("status", types.StatusPending).Error
}

// DeletePending reclaims a PENDING trade's record (soft delete, CAS on
// the status). Returns false when the trade was not PENDING.
func (d *Database) DeletePending(tradeID uint64) (bool, error) {
	result := d.db.
		Where("trade_id = ? AND status = ?", tradeID, types.StatusPending).
		Delete(&types.Trade{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RestoreTrade brings a soft-deleted record back when a cancellation's
// custody return failed partway.
func (d *Database) RestoreTrade(tradeID uint64) error {
	return d.db.Unscoped().Model(&types.Trade{}).
		Where("trade_id = ?", tradeID).
		Update("deleted_at", nil).Error
}

// PurgeTrade removes a trade, its items, and its idempotency record for
// good. Used to unwind a creation whose custody deposit failed; nothing
// of the aborted trade may survive.
func (d *Database) PurgeTrade(tradeID uint64) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("trade_id = ?", tradeID).Delete(&types.Trade{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("trade_id = ?", tradeID).Delete(&types.TradeItem{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("trade_id = ?", tradeID).Delete(&IdempotencyRecord{}).Error
	})
}

// GetIdempotencyRecord retrieves an idempotency record by key. Returns
// the zero record when the key is unknown.
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &record, nil
		}
		return nil, err
	}
	return &record, nil
}
