package fees

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

// Seed creates missing fee rate rows with the given defaults. Existing
// rows are left alone so restarts do not clobber admin changes.
func (d *Database) Seed(defaults map[string]uint64) error {
	for tier, perItem := range defaults {
		var rate FeeRate
		err := d.db.Where("tier = ?", tier).First(&rate).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := d.db.Create(&FeeRate{Tier: tier, PerItem: perItem}).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) GetRate(tier string) (*FeeRate, error) {
	var rate FeeRate
	if err := d.db.Where("tier = ?", tier).First(&rate).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (d *Database) SetRate(tier string, perItem uint64) error {
	return d.db.Model(&FeeRate{}).
		Where("tier = ?", tier).
		Update("per_item", perItem).Error
}

func (d *Database) GetAllRates() ([]FeeRate, error) {
	var rates []FeeRate
	if err := d.db.Order("tier").Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}
