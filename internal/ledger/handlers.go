package ledger

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/ksred/escrow-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GinHandlers contains HTTP handlers for the internal ledger endpoints.
// These exist for bootstrap and simulation; in a real deployment the
// asset ledger is an external system.
type GinHandlers struct {
	db *Database
}

func NewGinHandlers(db *Database) *GinHandlers {
	return &GinHandlers{db: db}
}

// MintAssetHandler handles POST requests to mint non-fungible assets.
// Requires internal authentication.
func (h *GinHandlers) MintAssetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			AssetClass string `json:"asset_class" binding:"required"`
			AssetID    uint64 `json:"asset_id" binding:"required"`
			Owner      string `json:"owner" binding:"required"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.db.Mint(request.AssetClass, request.AssetID, request.Owner); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				response.Conflict(c, "asset already minted")
				return
			}
			response.Handle(c, nil, err)
			return
		}

		log.Info().
			Str("asset_class", request.AssetClass).
			Uint64("asset_id", request.AssetID).
			Str("owner", request.Owner).
			Msg("minted non-fungible asset")

		response.Success(c, request)
	}
}

// CreditFundsHandler handles POST requests to credit fungible balances.
// Requires internal authentication.
func (h *GinHandlers) CreditFundsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Account string `json:"account" binding:"required"`
			Amount  uint64 `json:"amount" binding:"required"`
		}

		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.db.Credit(request.Account, request.Amount); err != nil {
			response.Handle(c, nil, err)
			return
		}

		balance, err := h.db.BalanceOfFungible(request.Account)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"account": request.Account, "balance": balance})
	}
}
