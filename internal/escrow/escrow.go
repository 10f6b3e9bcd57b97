package escrow

import (
	"fmt"
	"time"

	"github.com/ksred/escrow-api/internal/events"
	"github.com/ksred/escrow-api/internal/fees"
	"github.com/ksred/escrow-api/internal/gate"
	"github.com/ksred/escrow-api/internal/ledger"
	"github.com/ksred/escrow-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service orchestrates the trade lifecycle: creation with custody
// deposit, acceptance with the atomic multi-asset exchange, and
// cancellation with custody return.
//
// Every operation commits its registry state change before issuing any
// ledger transfer. A ledger implementation is allowed to call back into
// the engine mid-transfer; such a re-entrant call observes the trade as
// non-PENDING (or absent) and is rejected. That ordering is the sole
// re-entrancy guard and must not be reordered. When a transfer fails,
// the already-performed transfers are compensated in reverse and the
// registry change is rolled back, so each operation either fully
// commits or leaves no trace.
type Service struct {
	db     *Database
	ledger ledger.Ledger
	fees   *fees.Service
	gate   *gate.Service
	events *events.Hub
}

func NewService(gormDB *gorm.DB, l ledger.Ledger, f *fees.Service, g *gate.Service, hub *events.Hub) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: l,
		fees:   f,
		gate:   g,
		events: hub,
	}
}

// CreateTrade opens a new PENDING trade: it allocates the next id,
// records the trade, charges the creation fee against the initiator for
// the total item count, and moves every offered item into engine
// custody. A failure at any step unwinds everything done before it.
// Replaying an unexpired idempotency key returns the original trade.
func (s *Service) CreateTrade(initiator, counterparty string, offered, requested []types.Item, idempotencyKey string) (*types.Trade, error) {
	if err := s.gate.Require(); err != nil {
		return nil, err
	}

	if err := validateCreate(initiator, counterparty, offered, requested); err != nil {
		return nil, err
	}

	// Replay of a previous creation. A record whose trade was since
	// cancelled (or whose key expired) does not replay; the key is
	// treated as fresh and the stale record is replaced below.
	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err == nil && record.TradeID != 0 && record.ExpiresAt.After(time.Now()) {
		replayed, err := s.db.GetTrade(record.TradeID)
		if err != nil {
			return nil, err
		}
		if replayed != nil {
			return replayed, nil
		}
	}

	tradeID, err := s.gate.AllocateTradeID()
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Uint64("trade_id", tradeID).
		Str("initiator", initiator).
		Str("counterparty", counterparty).
		Str("service", "escrow").
		Logger()

	trade := &types.Trade{
		TradeID:      tradeID,
		Initiator:    initiator,
		Counterparty: counterparty,
		Status:       types.StatusPending,
		Items:        buildItems(tradeID, offered, requested),
	}

	if err := s.db.CreateTradeWithIdempotency(trade, idempotencyKey); err != nil {
		logger.Error().Err(err).Msg("failed to record trade")
		return nil, err
	}

	fee, tier, err := s.fees.ComputeFee(initiator, len(offered)+len(requested))
	if err != nil {
		s.purge(logger, tradeID)
		return nil, err
	}

	if err := s.ledger.TransferFungible(initiator, ledger.VaultAccount, fee); err != nil {
		logger.Warn().Err(err).Uint64("fee", fee).Msg("creation fee charge rejected")
		s.purge(logger, tradeID)
		return nil, fmt.Errorf("%w: charging creation fee: %v", ErrTransferFailed, err)
	}

	logger.Debug().
		Uint64("fee", fee).
		Str("tier", tier).
		Msg("charged creation fee")

	for i, item := range offered {
		if err := s.ledger.TransferNonFungible(item.AssetClass, initiator, ledger.VaultAccount, item.AssetID); err != nil {
			logger.Warn().Err(err).
				Str("asset_class", item.AssetClass).
				Uint64("asset_id", item.AssetID).
				Msg("custody deposit rejected, unwinding creation")

			s.transferBack(logger, offered[:i], ledger.VaultAccount, initiator)
			s.refundFee(logger, initiator, fee)
			s.purge(logger, tradeID)
			return nil, fmt.Errorf("%w: depositing %s #%d: %v", ErrTransferFailed, item.AssetClass, item.AssetID, err)
		}
	}

	createdAt := time.Now()
	s.events.TradeInitiated(tradeID, initiator, counterparty, createdAt)

	logger.Info().
		Int("offered_items", len(offered)).
		Int("requested_items", len(requested)).
		Uint64("fee", fee).
		Str("tier", tier).
		Msg("trade created")

	return s.db.GetTrade(tradeID)
}

// AcceptTrade settles a PENDING trade. Only the stored counterparty may
// accept. The status flips to COMPLETED before any transfer is issued;
// then the acceptance fee is charged, the requested items move from the
// caller straight to the initiator, and the custodied offered items are
// released to the caller. Any transfer failure compensates everything
// already moved and reopens the trade.
func (s *Service) AcceptTrade(tradeID uint64, caller string) error {
	if err := s.gate.Require(); err != nil {
		return err
	}

	trade, err := s.db.GetTrade(tradeID)
	if err != nil {
		return err
	}
	if trade == nil {
		return fmt.Errorf("%w: trade %d does not exist", ErrInvalidState, tradeID)
	}
	if trade.Status != types.StatusPending {
		return fmt.Errorf("%w: trade %d is %s", ErrInvalidState, tradeID, trade.Status)
	}
	if caller != trade.Counterparty {
		return fmt.Errorf("%w: only the counterparty may accept trade %d", gate.ErrUnauthorized, tradeID)
	}

	logger := log.With().
		Uint64("trade_id", tradeID).
		Str("caller", caller).
		Str("service", "escrow").
		Logger()

	// Commit the state transition first; anything re-entering from a
	// transfer hook now sees a non-PENDING trade.
	flipped, err := s.db.MarkCompleted(tradeID)
	if err != nil {
		return err
	}
	if !flipped {
		return fmt.Errorf("%w: trade %d is no longer pending", ErrInvalidState, tradeID)
	}

	fee, tier, err := s.fees.ComputeFee(caller, trade.ItemCount())
	if err != nil {
		s.reopen(logger, tradeID)
		return err
	}

	if err := s.ledger.TransferFungible(caller, ledger.VaultAccount, fee); err != nil {
		logger.Warn().Err(err).Uint64("fee", fee).Msg("acceptance fee charge rejected")
		s.reopen(logger, tradeID)
		return fmt.Errorf("%w: charging acceptance fee: %v", ErrTransferFailed, err)
	}

	logger.Debug().
		Uint64("fee", fee).
		Str("tier", tier).
		Msg("charged acceptance fee")

	requested := trade.RequestedItems()
	for i, item := range requested {
		if err := s.ledger.TransferNonFungible(item.AssetClass, caller, trade.Initiator, item.AssetID); err != nil {
			logger.Warn().Err(err).
				Str("asset_class", item.AssetClass).
				Uint64("asset_id", item.AssetID).
				Msg("requested item transfer rejected, unwinding acceptance")

			s.transferBack(logger, requested[:i], trade.Initiator, caller)
			s.refundFee(logger, caller, fee)
			s.reopen(logger, tradeID)
			return fmt.Errorf("%w: moving %s #%d: %v", ErrTransferFailed, item.AssetClass, item.AssetID, err)
		}
	}

	offered := trade.OfferedItems()
	for i, item := range offered {
		if err := s.ledger.TransferNonFungible(item.AssetClass, ledger.VaultAccount, caller, item.AssetID); err != nil {
			logger.Warn().Err(err).
				Str("asset_class", item.AssetClass).
				Uint64("asset_id", item.AssetID).
				Msg("custody release rejected, unwinding acceptance")

			s.transferBack(logger, offered[:i], caller, ledger.VaultAccount)
			s.transferBack(logger, requested, trade.Initiator, caller)
			s.refundFee(logger, caller, fee)
			s.reopen(logger, tradeID)
			return fmt.Errorf("%w: releasing %s #%d: %v", ErrTransferFailed, item.AssetClass, item.AssetID, err)
		}
	}

	s.events.TradeCompleted(tradeID, time.Now())

	logger.Info().
		Int("items_moved", trade.ItemCount()).
		Uint64("fee", fee).
		Msg("trade completed")

	return nil
}

// CancelTrade unwinds a PENDING trade. Only the initiator may cancel.
// The record is reclaimed before the custody returns are issued, so a
// re-entrant call sees an absent trade. No fee is charged or refunded.
func (s *Service) CancelTrade(tradeID uint64, caller string) error {
	if err := s.gate.Require(); err != nil {
		return err
	}

	trade, err := s.db.GetTrade(tradeID)
	if err != nil {
		return err
	}
	if trade == nil {
		return fmt.Errorf("%w: trade %d does not exist", ErrInvalidState, tradeID)
	}
	if trade.Status != types.StatusPending {
		return fmt.Errorf("%w: trade %d is %s", ErrInvalidState, tradeID, trade.Status)
	}
	if caller != trade.Initiator {
		return fmt.Errorf("%w: only the initiator may cancel trade %d", gate.ErrUnauthorized, tradeID)
	}

	logger := log.With().
		Uint64("trade_id", tradeID).
		Str("caller", caller).
		Str("service", "escrow").
		Logger()

	removed, err := s.db.DeletePending(tradeID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: trade %d is no longer pending", ErrInvalidState, tradeID)
	}

	offered := trade.OfferedItems()
	for i, item := range offered {
		if err := s.ledger.TransferNonFungible(item.AssetClass, ledger.VaultAccount, caller, item.AssetID); err != nil {
			logger.Error().Err(err).
				Str("asset_class", item.AssetClass).
				Uint64("asset_id", item.AssetID).
				Msg("custody return rejected, restoring trade")

			s.transferBack(logger, offered[:i], caller, ledger.VaultAccount)
			if restoreErr := s.db.RestoreTrade(tradeID); restoreErr != nil {
				logger.Error().Err(restoreErr).Msg("failed to restore cancelled trade record")
			}
			return fmt.Errorf("%w: returning %s #%d: %v", ErrTransferFailed, item.AssetClass, item.AssetID, err)
		}
	}

	logger.Info().
		Int("items_returned", len(offered)).
		Msg("trade cancelled")

	return nil
}

// FetchTrade reads a trade record. It works while the engine is paused
// and returns nil for unknown or reclaimed ids; the HTTP layer maps nil
// to an explicit not-found.
func (s *Service) FetchTrade(tradeID uint64) (*types.Trade, error) {
	return s.db.GetTrade(tradeID)
}

func validateCreate(initiator, counterparty string, offered, requested []types.Item) error {
	if initiator == "" {
		return fmt.Errorf("%w: initiator is required", ErrInvalidArgument)
	}
	if counterparty == "" {
		return fmt.Errorf("%w: counterparty is required", ErrInvalidArgument)
	}
	if counterparty == initiator {
		return fmt.Errorf("%w: counterparty must differ from initiator", ErrInvalidArgument)
	}
	if len(offered) == 0 {
		return fmt.Errorf("%w: offered items must not be empty", ErrInvalidArgument)
	}
	if len(requested) == 0 {
		return fmt.Errorf("%w: requested items must not be empty", ErrInvalidArgument)
	}
	for _, item := range append(offered[:len(offered):len(offered)], requested...) {
		if item.AssetClass == "" {
			return fmt.Errorf("%w: item asset class is required", ErrInvalidArgument)
		}
	}
	return nil
}

func buildItems(tradeID uint64, offered, requested []types.Item) []types.TradeItem {
	items := make([]types.TradeItem, 0, len(offered)+len(requested))
	for i, item := range offered {
		items = append(items, types.TradeItem{
			TradeID:    tradeID,
			Role:       types.RoleOffered,
			Position:   i,
			AssetClass: item.AssetClass,
			AssetID:    item.AssetID,
		})
	}
	for i, item := range requested {
		items = append(items, types.TradeItem{
			TradeID:    tradeID,
			Role:       types.RoleRequested,
			Position:   i,
			AssetClass: item.AssetClass,
			AssetID:    item.AssetID,
		})
	}
	return items
}
