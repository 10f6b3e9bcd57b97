package fees

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/escrow-api/internal/gate"
	"github.com/ksred/escrow-api/internal/ledger"
	"github.com/ksred/escrow-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Membership tiers, in resolution order.
const (
	TierElite     = "ELITE"
	TierRegular   = "REGULAR"
	TierNonHolder = "NON_HOLDER"
)

var ErrUnknownTier = errors.New("unknown fee tier")

// Service computes usage fees. The fee per trade operation is
// itemCount * rate[tier], where itemCount spans both sides of the trade
// and the tier is resolved from live membership-collection balances at
// every charge point. The service never debits anything itself; the
// escrow engine performs the actual fungible transfer.
type Service struct {
	db           *Database
	ledger       ledger.Ledger
	gate         *gate.Service
	eliteClass   string
	regularClass string
}

func NewService(gormDB *gorm.DB, l ledger.Ledger, g *gate.Service, eliteClass, regularClass string) *Service {
	return &Service{
		db:           NewDatabase(gormDB),
		ledger:       l,
		gate:         g,
		eliteClass:   eliteClass,
		regularClass: regularClass,
	}
}

// Seed installs the default schedule for rows that do not exist yet.
func (s *Service) Seed(elite, regular, nonHolder uint64) error {
	return s.db.Seed(map[string]uint64{
		TierElite:     elite,
		TierRegular:   regular,
		TierNonHolder: nonHolder,
	})
}

// ResolveTier classifies an account. First match wins: holding at least
// one elite-collection asset beats holding regular-collection assets.
func (s *Service) ResolveTier(account string) (string, error) {
	eliteHeld, err := s.ledger.BalanceOfNonFungible(s.eliteClass, account)
	if err != nil {
		return "", err
	}
	if eliteHeld > 0 {
		return TierElite, nil
	}

	regularHeld, err := s.ledger.BalanceOfNonFungible(s.regularClass, account)
	if err != nil {
		return "", err
	}
	if regularHeld > 0 {
		return TierRegular, nil
	}

	return TierNonHolder, nil
}

// ComputeFee returns the fee amount for an operation touching itemCount
// items, along with the tier it resolved. Read-only.
func (s *Service) ComputeFee(account string, itemCount int) (uint64, string, error) {
	tier, err := s.ResolveTier(account)
	if err != nil {
		return 0, "", err
	}

	rate, err := s.db.GetRate(tier)
	if err != nil {
		return 0, "", fmt.Errorf("fee schedule missing tier %s: %w", tier, err)
	}

	fee := uint64(itemCount) * rate.PerItem

	log.Debug().
		Str("account", account).
		Str("tier", tier).
		Int("item_count", itemCount).
		Uint64("per_item", rate.PerItem).
		Uint64("fee", fee).
		Msg("computed fee")

	return fee, tier, nil
}

// SetFee updates one tier's per-item rate. Administrator only; stays
// available while the engine is paused.
func (s *Service) SetFee(caller, tier string, perItem uint64) error {
	if err := s.gate.RequireAdmin(caller); err != nil {
		return err
	}

	switch tier {
	case TierElite, TierRegular, TierNonHolder:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	if err := s.db.SetRate(tier, perItem); err != nil {
		return err
	}

	log.Info().
		Str("admin", caller).
		Str("tier", tier).
		Uint64("per_item", perItem).
		Msg("updated fee rate")

	return nil
}

// GetSchedule returns the full fee schedule.
func (s *Service) GetSchedule() (*ScheduleResponse, error) {
	rates, err := s.db.GetAllRates()
	if err != nil {
		return nil, err
	}

	schedule := &ScheduleResponse{
		Rates:     make(map[string]uint64, len(rates)),
		Timestamp: time.Now(),
	}
	for _, rate := range rates {
		schedule.Rates[rate.Tier] = rate.PerItem
	}
	return schedule, nil
}

// GinHandlers contains HTTP handlers for fee schedule endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// SetFeeHandler handles PUT requests to change a tier's rate.
// Administrator only. URL parameter: tier
func (h *GinHandlers) SetFeeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString("accountID")
		tier := c.Param("tier")

		var request struct {
			PerItem uint64 `json:"per_item"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.SetFee(caller, tier, request.PerItem); err != nil {
			switch {
			case errors.Is(err, gate.ErrUnauthorized):
				response.Unauthorized(c, err.Error())
			case errors.Is(err, ErrUnknownTier):
				response.BadRequest(c, err.Error())
			default:
				response.Handle(c, nil, err)
			}
			return
		}

		response.Success(c, gin.H{"tier": tier, "per_item": request.PerItem})
	}
}

// GetScheduleHandler handles GET requests for the current schedule.
func (h *GinHandlers) GetScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		schedule, err := h.service.GetSchedule()
		response.Handle(c, schedule, err)
	}
}
