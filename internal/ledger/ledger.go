package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VaultAccount is the engine's own account. Offered items sit here for
// the PENDING lifetime of their trade, and fees accrue here until the
// administrator withdraws them.
const VaultAccount = "escrow:vault"

var (
	ErrUnknownAsset      = errors.New("unknown asset")
	ErrNotOwner          = errors.New("account does not own asset")
	ErrInsufficientFunds = errors.New("insufficient fungible balance")
)

// Ledger is the asset capability the engine runs against. Every call
// either fully succeeds or fails with no partial effect. Tests wrap
// this interface with failing or re-entrant implementations.
type Ledger interface {
	TransferNonFungible(assetClass, from, to string, assetID uint64) error
	TransferFungible(from, to string, amount uint64) error
	BalanceOfNonFungible(assetClass, owner string) (int64, error)
	BalanceOfFungible(owner string) (uint64, error)
}

// Database is the production Ledger, backed by the shared GORM
// connection. Each transfer runs in its own transaction together with
// its journal entry.
type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// TransferNonFungible moves one asset instance between accounts. Fails
// with ErrUnknownAsset if the instance was never minted and ErrNotOwner
// if `from` does not currently hold it.
func (d *Database) TransferNonFungible(assetClass, from, to string, assetID uint64) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var asset NonFungibleAsset
		if err := tx.Where("asset_class = ? AND asset_id = ?", assetClass, assetID).First(&asset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s #%d", ErrUnknownAsset, assetClass, assetID)
			}
			return err
		}

		if asset.Owner != from {
			return fmt.Errorf("%w: %s does not hold %s #%d", ErrNotOwner, from, assetClass, assetID)
		}

		if err := tx.Model(&asset).Update("owner", to).Error; err != nil {
			return err
		}

		return tx.Create(&TransferRecord{
			TransferID:  uuid.New().String(),
			Kind:        KindNonFungible,
			AssetClass:  assetClass,
			AssetID:     assetID,
			FromAccount: from,
			ToAccount:   to,
		}).Error
	})
}

// TransferFungible moves `amount` units of account between accounts.
// The destination balance row is created on first credit.
func (d *Database) TransferFungible(from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		var source FungibleBalance
		if err := tx.Where("account = ?", from).First(&source).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s holds 0, needs %d", ErrInsufficientFunds, from, amount)
			}
			return err
		}

		if source.Amount < amount {
			return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, source.Amount, amount)
		}

		if err := tx.Model(&source).Update("amount", source.Amount-amount).Error; err != nil {
			return err
		}

		if err := creditTx(tx, to, amount); err != nil {
			return err
		}

		return tx.Create(&TransferRecord{
			TransferID:  uuid.New().String(),
			Kind:        KindFungible,
			Amount:      amount,
			FromAccount: from,
			ToAccount:   to,
		}).Error
	})
}

// BalanceOfNonFungible counts the instances of a class held by an
// account. Tier membership checks use this.
func (d *Database) BalanceOfNonFungible(assetClass, owner string) (int64, error) {
	var count int64
	err := d.db.Model(&NonFungibleAsset{}).
		Where("asset_class = ? AND owner = ?", assetClass, owner).
		Count(&count).Error
	return count, err
}

// BalanceOfFungible returns an account's unit-of-account balance.
// Accounts with no balance row hold zero.
func (d *Database) BalanceOfFungible(owner string) (uint64, error) {
	var balance FungibleBalance
	if err := d.db.Where("account = ?", owner).First(&balance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance.Amount, nil
}

// Mint creates a new non-fungible asset instance owned by `owner`.
// Minting an existing class/id pair fails on the unique index.
func (d *Database) Mint(assetClass string, assetID uint64, owner string) error {
	return d.db.Create(&NonFungibleAsset{
		AssetClass: assetClass,
		AssetID:    assetID,
		Owner:      owner,
	}).Error
}

// Credit adds units of account to an account out of thin air. Bootstrap
// and simulation only; real funds enter through the fungible ledger's
// own issuance, which is out of engine scope.
func (d *Database) Credit(account string, amount uint64) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		return creditTx(tx, account, amount)
	})
}

// OwnerOf reports the current holder of an asset instance.
func (d *Database) OwnerOf(assetClass string, assetID uint64) (string, error) {
	var asset NonFungibleAsset
	if err := d.db.Where("asset_class = ? AND asset_id = ?", assetClass, assetID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s #%d", ErrUnknownAsset, assetClass, assetID)
		}
		return "", err
	}
	return asset.Owner, nil
}

func creditTx(tx *gorm.DB, account string, amount uint64) error {
	var balance FungibleBalance
	err := tx.Where("account = ?", account).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&FungibleBalance{Account: account, Amount: amount}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&balance).Update("amount", balance.Amount+amount).Error
}
