package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&NonFungibleAsset{}, &FungibleBalance{}, &TransferRecord{}))
	return db
}

func TestTransferNonFungible(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	require.NoError(t, d.Mint("collection:swords", 1, "alice"))
	require.NoError(t, d.TransferNonFungible("collection:swords", "alice", "bob", 1))

	owner, err := d.OwnerOf("collection:swords", 1)
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	aliceHeld, err := d.BalanceOfNonFungible("collection:swords", "alice")
	require.NoError(t, err)
	assert.Zero(t, aliceHeld)

	bobHeld, err := d.BalanceOfNonFungible("collection:swords", "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, bobHeld)
}

func TestTransferNonFungibleNotOwner(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	require.NoError(t, d.Mint("collection:swords", 1, "alice"))

	err := d.TransferNonFungible("collection:swords", "bob", "carol", 1)
	require.ErrorIs(t, err, ErrNotOwner)

	// Ownership untouched by the rejected transfer
	owner, err := d.OwnerOf("collection:swords", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestTransferNonFungibleUnknownAsset(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	err := d.TransferNonFungible("collection:swords", "alice", "bob", 42)
	require.ErrorIs(t, err, ErrUnknownAsset)
}

func TestTransferFungible(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	require.NoError(t, d.Credit("alice", 100))
	require.NoError(t, d.TransferFungible("alice", "bob", 30))

	aliceBalance, err := d.BalanceOfFungible("alice")
	require.NoError(t, err)
	assert.EqualValues(t, 70, aliceBalance)

	bobBalance, err := d.BalanceOfFungible("bob")
	require.NoError(t, err)
	assert.EqualValues(t, 30, bobBalance)
}

func TestTransferFungibleInsufficient(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	require.NoError(t, d.Credit("alice", 10))

	err := d.TransferFungible("alice", "bob", 11)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Rejected transfer must not debit anything
	aliceBalance, err := d.BalanceOfFungible("alice")
	require.NoError(t, err)
	assert.EqualValues(t, 10, aliceBalance)

	bobBalance, err := d.BalanceOfFungible("bob")
	require.NoError(t, err)
	assert.Zero(t, bobBalance)
}

func TestTransferFungibleFromUnknownAccount(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	err := d.TransferFungible("ghost", "bob", 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTransferZeroAmountIsNoop(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	require.NoError(t, d.TransferFungible("ghost", "bob", 0))

	var count int64
	require.NoError(t, d.db.Model(&TransferRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBalanceOfFungibleUnknownAccount(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	balance, err := d.BalanceOfFungible("nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestTransferJournal(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	require.NoError(t, d.Mint("collection:swords", 1, "alice"))
	require.NoError(t, d.Credit("alice", 50))
	require.NoError(t, d.TransferNonFungible("collection:swords", "alice", "bob", 1))
	require.NoError(t, d.TransferFungible("alice", "bob", 5))

	var records []TransferRecord
	require.NoError(t, d.db.Order("id").Find(&records).Error)
	require.Len(t, records, 2)

	assert.Equal(t, KindNonFungible, records[0].Kind)
	assert.Equal(t, "collection:swords", records[0].AssetClass)
	assert.EqualValues(t, 1, records[0].AssetID)
	assert.NotEmpty(t, records[0].TransferID)

	assert.Equal(t, KindFungible, records[1].Kind)
	assert.EqualValues(t, 5, records[1].Amount)
	assert.NotEqual(t, records[0].TransferID, records[1].TransferID)
}

func TestMintDuplicateFails(t *testing.T) {
	d := NewDatabase(newTestDB(t))

	require.NoError(t, d.Mint("collection:swords", 1, "alice"))

	// The unique-index violation must surface as gorm's sentinel so the
	// mint handler can answer with a conflict instead of a server error.
	err := d.Mint("collection:swords", 1, "bob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))

	owner, err := d.OwnerOf("collection:swords", 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}
