package gate

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Bootstrap creates the engine state row if it does not exist yet. The
// administrator identity is fixed here; changing it afterwards is a
// separate ownership-transfer concern, out of engine scope.
func (d *Database) Bootstrap(adminAccount string) error {
	var state EngineState
	err := d.db.First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.db.Create(&EngineState{
			AdminAccount: adminAccount,
			NextTradeID:  1,
		}).Error
	}
	return err
}

func (d *Database) GetState() (*EngineState, error) {
	var state EngineState
	if err := d.db.First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

func (d *Database) SetPaused(paused bool) error {
	state, err := d.GetState()
	if err != nil {
		return err
	}
	return d.db.Model(state).Update("paused", paused).Error
}

// AllocateTradeID hands out the next id and advances the counter in one
// transaction. Ids are strictly increasing and start at 1.
func (d *Database) AllocateTradeID() (uint64, error) {
	var id uint64
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var state EngineState
		if err := tx.First(&state).Error; err != nil {
			return err
		}
		id = state.NextTradeID
		return tx.Model(&state).Update("next_trade_id", state.NextTradeID+1).Error
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
