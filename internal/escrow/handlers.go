package escrow

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/escrow-api/internal/gate"
	"github.com/ksred/escrow-api/internal/types"
	"github.com/ksred/escrow-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the trade lifecycle endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreateTradeHandler handles POST requests to open trades. The caller
// from the JWT becomes the initiator. Requires an Idempotency-Key
// header so retried requests do not charge a second fee.
func (h *GinHandlers) CreateTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		initiator := c.GetString("accountID")
		if initiator == "" {
			response.Unauthorized(c, "Invalid account ID in token")
			return
		}

		var request struct {
			Counterparty   string       `json:"counterparty" binding:"required"`
			OfferedItems   []types.Item `json:"offered_items" binding:"required"`
			RequestedItems []types.Item `json:"requested_items" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		trade, err := h.service.CreateTrade(initiator, request.Counterparty,
			request.OfferedItems, request.RequestedItems, idempotencyKey)
		if err != nil {
			handleEscrowError(c, err)
			return
		}

		response.Success(c, types.NewTradeResponse(trade))
	}
}

// GetTradeHandler handles GET requests for a trade record. Works while
// the engine is paused; unknown ids get an explicit not-found.
// URL parameter: trade_id
func (h *GinHandlers) GetTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tradeID, ok := parseTradeID(c)
		if !ok {
			return
		}

		trade, err := h.service.FetchTrade(tradeID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if trade == nil {
			response.NotFound(c, "Trade not found")
			return
		}

		response.Success(c, types.NewTradeResponse(trade))
	}
}

// AcceptTradeHandler handles POST requests to settle a trade.
// Counterparty only. URL parameter: trade_id
func (h *GinHandlers) AcceptTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tradeID, ok := parseTradeID(c)
		if !ok {
			return
		}

		caller := c.GetString("accountID")
		if err := h.service.AcceptTrade(tradeID, caller); err != nil {
			handleEscrowError(c, err)
			return
		}

		response.Success(c, gin.H{"trade_id": tradeID, "status": types.StatusCompleted})
	}
}

// CancelTradeHandler handles POST requests to unwind a trade.
// Initiator only. URL parameter: trade_id
func (h *GinHandlers) CancelTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tradeID, ok := parseTradeID(c)
		if !ok {
			return
		}

		caller := c.GetString("accountID")
		if err := h.service.CancelTrade(tradeID, caller); err != nil {
			handleEscrowError(c, err)
			return
		}

		response.Success(c, gin.H{"trade_id": tradeID, "status": types.StatusCancelled})
	}
}

func parseTradeID(c *gin.Context) (uint64, bool) {
	tradeID, err := strconv.ParseUint(c.Param("trade_id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid trade ID")
		return 0, false
	}
	return tradeID, true
}

func handleEscrowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gate.ErrPaused):
		response.ServiceUnavailable(c, err.Error())
	case errors.Is(err, gate.ErrUnauthorized):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, ErrInvalidArgument):
		response.BadRequest(c, err.Error())
	case errors.Is(err, ErrInvalidState):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrTransferFailed):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.Handle(c, nil, err)
	}
}
