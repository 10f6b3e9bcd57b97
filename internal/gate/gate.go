package gate

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/ksred/escrow-api/internal/ledger"
	"github.com/ksred/escrow-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrPaused       = errors.New("engine is paused")
	ErrUnauthorized = errors.New("caller is not authorized")
)

// Service evaluates the pause flag and administrator authorization, and
// carries the administrative operations that stay available while the
// engine is paused.
type Service struct {
	db     *Database
	ledger ledger.Ledger
}

func NewService(gormDB *gorm.DB, l ledger.Ledger) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		ledger: l,
	}
}

// Bootstrap seeds the engine state row at startup.
func (s *Service) Bootstrap(adminAccount string) error {
	return s.db.Bootstrap(adminAccount)
}

// Require gates entry to every trade-lifecycle operation. When the
// engine is paused it fails before any side effect has happened.
func (s *Service) Require() error {
	state, err := s.db.GetState()
	if err != nil {
		return err
	}
	if state.Paused {
		return ErrPaused
	}
	return nil
}

// RequireAdmin guards administrative operations. Unlike Require it does
// not consult the pause flag: the administrator keeps access while the
// engine is paused.
func (s *Service) RequireAdmin(account string) error {
	state, err := s.db.GetState()
	if err != nil {
		return err
	}
	if account == "" || account != state.AdminAccount {
		return fmt.Errorf("%w: %q is not the administrator", ErrUnauthorized, account)
	}
	return nil
}

// AllocateTradeID hands out the next trade id.
func (s *Service) AllocateTradeID() (uint64, error) {
	return s.db.AllocateTradeID()
}

// Pause closes the gate for trade-lifecycle operations.
func (s *Service) Pause(caller string) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if err := s.db.SetPaused(true); err != nil {
		return err
	}
	log.Info().Str("admin", caller).Msg("engine paused")
	return nil
}

// Unpause reopens the gate.
func (s *Service) Unpause(caller string) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if err := s.db.SetPaused(false); err != nil {
		return err
	}
	log.Info().Str("admin", caller).Msg("engine unpaused")
	return nil
}

// WithdrawFees drains the vault's accrued fungible balance to the
// administrator and returns the amount moved.
func (s *Service) WithdrawFees(caller string) (uint64, error) {
	if err := s.RequireAdmin(caller); err != nil {
		return 0, err
	}

	amount, err := s.ledger.BalanceOfFungible(ledger.VaultAccount)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}

	if err := s.ledger.TransferFungible(ledger.VaultAccount, caller, amount); err != nil {
		return 0, err
	}

	log.Info().
		Str("admin", caller).
		Uint64("amount", amount).
		Msg("withdrew accrued fees")

	return amount, nil
}

// GinHandlers contains HTTP handlers for the administrative endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

func (h *GinHandlers) PauseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("accountID")

		if err := h.service.Pause(caller); err != nil {
			handleGateError(c, err)
			return
		}

		response.Success(c, gin.H{"paused": true})
	}
}

func (h *GinHandlers) UnpauseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("accountID")

		if err := h.service.Unpause(caller); err != nil {
			handleGateError(c, err)
			return
		}

		response.Success(c, gin.H{"paused": false})
	}
}

func (h *GinHandlers) WithdrawFeesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("accountID")

		amount, err := h.service.WithdrawFees(caller)
		if err != nil {
			handleGateError(c, err)
			return
		}

		response.Success(c, gin.H{"withdrawn": amount})
	}
}

func handleGateError(c *gin.Context, err error) {
	if errors.Is(err, ErrUnauthorized) {
		response.Unauthorized(c, err.Error())
		return
	}
	response.Handle(c, nil, err)
}
