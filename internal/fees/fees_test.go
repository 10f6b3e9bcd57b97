package fees

import (
	"testing"

	"github.com/ksred/escrow-api/internal/gate"
	"github.com/ksred/escrow-api/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	adminAccount = "acct-admin"
	eliteClass   = "membership:elite"
	regularClass = "membership:regular"
)

func newTestService(t *testing.T) (*Service, *ledger.Database) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&FeeRate{},
		&gate.EngineState{},
		&ledger.NonFungibleAsset{},
		&ledger.FungibleBalance{},
		&ledger.TransferRecord{},
	))

	ledgerDB := ledger.NewDatabase(db)
	gateService := gate.NewService(db, ledgerDB)
	require.NoError(t, gateService.Bootstrap(adminAccount))

	service := NewService(db, ledgerDB, gateService, eliteClass, regularClass)
	require.NoError(t, service.Seed(1, 2, 3))
	return service, ledgerDB
}

func TestResolveTierNonHolder(t *testing.T) {
	service, _ := newTestService(t)

	tier, err := service.ResolveTier("acct-nobody")
	require.NoError(t, err)
	assert.Equal(t, TierNonHolder, tier)
}

func TestResolveTierRegular(t *testing.T) {
	service, ledgerDB := newTestService(t)

	require.NoError(t, ledgerDB.Mint(regularClass, 1, "acct-member"))

	tier, err := service.ResolveTier("acct-member")
	require.NoError(t, err)
	assert.Equal(t, TierRegular, tier)
}

func TestResolveTierEliteWins(t *testing.T) {
	service, ledgerDB := newTestService(t)

	// Holding both collections resolves elite: first match wins.
	require.NoError(t, ledgerDB.Mint(regularClass, 1, "acct-member"))
	require.NoError(t, ledgerDB.Mint(eliteClass, 1, "acct-member"))

	tier, err := service.ResolveTier("acct-member")
	require.NoError(t, err)
	assert.Equal(t, TierElite, tier)
}

func TestComputeFee(t *testing.T) {
	service, ledgerDB := newTestService(t)

	fee, tier, err := service.ComputeFee("acct-nobody", 3)
	require.NoError(t, err)
	assert.Equal(t, TierNonHolder, tier)
	assert.EqualValues(t, 9, fee)

	require.NoError(t, ledgerDB.Mint(eliteClass, 1, "acct-member"))
	fee, tier, err = service.ComputeFee("acct-member", 3)
	require.NoError(t, err)
	assert.Equal(t, TierElite, tier)
	assert.EqualValues(t, 3, fee)
}

func TestSetFee(t *testing.T) {
	service, _ := newTestService(t)

	require.NoError(t, service.SetFee(adminAccount, TierNonHolder, 7))

	fee, _, err := service.ComputeFee("acct-nobody", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 14, fee)
}

func TestSetFeeRequiresAdmin(t *testing.T) {
	service, _ := newTestService(t)

	err := service.SetFee("acct-mallory", TierNonHolder, 7)
	require.ErrorIs(t, err, gate.ErrUnauthorized)

	// Rate unchanged
	fee, _, err := service.ComputeFee("acct-nobody", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, fee)
}

func TestSetFeeUnknownTier(t *testing.T) {
	service, _ := newTestService(t)

	err := service.SetFee(adminAccount, "PLATINUM", 7)
	require.ErrorIs(t, err, ErrUnknownTier)
}

func TestGetSchedule(t *testing.T) {
	service, _ := newTestService(t)

	schedule, err := service.GetSchedule()
	require.NoError(t, err)
	assert.Equal(t, map[string]uint64{
		TierElite:     1,
		TierRegular:   2,
		TierNonHolder: 3,
	}, schedule.Rates)
}

func TestSeedKeepsExistingRates(t *testing.T) {
	service, _ := newTestService(t)

	require.NoError(t, service.SetFee(adminAccount, TierElite, 9))
	require.NoError(t, service.Seed(1, 2, 3))

	schedule, err := service.GetSchedule()
	require.NoError(t, err)
	assert.EqualValues(t, 9, schedule.Rates[TierElite])
}
