package escrow

import (
	"github.com/ksred/escrow-api/internal/ledger"
	"github.com/ksred/escrow-api/internal/types"
	"github.com/rs/zerolog"
)

// Compensation helpers. These undo ledger movements the engine itself
// performed moments earlier, so the assets are known to sit at `from`;
// a failure here means the ledger broke its no-partial-effect contract
// and all we can do is log it loudly.

func (s *Service) transferBack(logger zerolog.Logger, items []types.Item, from, to string) {
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if err := s.ledger.TransferNonFungible(item.AssetClass, from, to, item.AssetID); err != nil {
			logger.Error().Err(err).
				Str("asset_class", item.AssetClass).
				Uint64("asset_id", item.AssetID).
				Str("from", from).
				Str("to", to).
				Msg("compensating transfer failed")
		}
	}
}

func (s *Service) refundFee(logger zerolog.Logger, account string, fee uint64) {
	if fee == 0 {
		return
	}
	if err := s.ledger.TransferFungible(ledger.VaultAccount, account, fee); err != nil {
		logger.Error().Err(err).
			Uint64("fee", fee).
			Str("account", account).
			Msg("fee refund failed")
	}
}

func (s *Service) reopen(logger zerolog.Logger, tradeID uint64) {
	if err := s.db.ReopenTrade(tradeID); err != nil {
		logger.Error().Err(err).Msg("failed to reopen trade after aborted acceptance")
	}
}

func (s *Service) purge(logger zerolog.Logger, tradeID uint64) {
	if err := s.db.PurgeTrade(tradeID); err != nil {
		logger.Error().Err(err).Msg("failed to purge trade after aborted creation")
	}
}
