package gate

import (
	"testing"

	"github.com/ksred/escrow-api/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const adminAccount = "acct-admin"

func newTestService(t *testing.T) (*Service, *ledger.Database) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&EngineState{},
		&ledger.NonFungibleAsset{},
		&ledger.FungibleBalance{},
		&ledger.TransferRecord{},
	))

	ledgerDB := ledger.NewDatabase(db)
	service := NewService(db, ledgerDB)
	require.NoError(t, service.Bootstrap(adminAccount))
	return service, ledgerDB
}

func TestBootstrapIsIdempotent(t *testing.T) {
	service, _ := newTestService(t)

	// A second bootstrap must not reset the counter
	id, err := service.AllocateTradeID()
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	require.NoError(t, service.Bootstrap(adminAccount))

	id, err = service.AllocateTradeID()
	require.NoError(t, err)
	assert.EqualValues(t, 2, id)
}

func TestAllocateTradeIDStrictlyIncreasing(t *testing.T) {
	service, _ := newTestService(t)

	var last uint64
	for i := 0; i < 5; i++ {
		id, err := service.AllocateTradeID()
		require.NoError(t, err)
		assert.Greater(t, id, last)
		last = id
	}
	assert.EqualValues(t, 5, last)
}

func TestPauseGatesRequire(t *testing.T) {
	service, _ := newTestService(t)

	require.NoError(t, service.Require())

	require.NoError(t, service.Pause(adminAccount))
	require.ErrorIs(t, service.Require(), ErrPaused)

	// Admin checks ignore the pause flag
	require.NoError(t, service.RequireAdmin(adminAccount))

	require.NoError(t, service.Unpause(adminAccount))
	require.NoError(t, service.Require())
}

func TestPauseRequiresAdmin(t *testing.T) {
	service, _ := newTestService(t)

	require.ErrorIs(t, service.Pause("acct-mallory"), ErrUnauthorized)
	require.ErrorIs(t, service.Unpause(""), ErrUnauthorized)
	require.NoError(t, service.Require())
}

func TestWithdrawFees(t *testing.T) {
	service, ledgerDB := newTestService(t)

	require.NoError(t, ledgerDB.Credit(ledger.VaultAccount, 42))

	amount, err := service.WithdrawFees(adminAccount)
	require.NoError(t, err)
	assert.EqualValues(t, 42, amount)

	adminBalance, err := ledgerDB.BalanceOfFungible(adminAccount)
	require.NoError(t, err)
	assert.EqualValues(t, 42, adminBalance)

	vaultBalance, err := ledgerDB.BalanceOfFungible(ledger.VaultAccount)
	require.NoError(t, err)
	assert.Zero(t, vaultBalance)
}

func TestWithdrawFeesEmptyVault(t *testing.T) {
	service, _ := newTestService(t)

	amount, err := service.WithdrawFees(adminAccount)
	require.NoError(t, err)
	assert.Zero(t, amount)
}

func TestWithdrawFeesRequiresAdmin(t *testing.T) {
	service, ledgerDB := newTestService(t)

	require.NoError(t, ledgerDB.Credit(ledger.VaultAccount, 10))

	_, err := service.WithdrawFees("acct-mallory")
	require.ErrorIs(t, err, ErrUnauthorized)

	vaultBalance, err := ledgerDB.BalanceOfFungible(ledger.VaultAccount)
	require.NoError(t, err)
	assert.EqualValues(t, 10, vaultBalance)
}
