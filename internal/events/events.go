package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Notification types
const (
	TypeTradeInitiated = "TRADE_INITIATED"
	TypeTradeCompleted = "TRADE_COMPLETED"
)

// Notification is the envelope pushed to external observers.
type Notification struct {
	Type         string    `json:"type"`
	TradeID      uint64    `json:"trade_id"`
	Initiator    string    `json:"initiator,omitempty"`
	Counterparty string    `json:"counterparty,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Hub fans trade notifications out to websocket subscribers and the
// structured log. Delivery is best effort: a subscriber that cannot
// keep up is dropped so the engine never blocks on an observer.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan []byte]struct{}),
	}
}

// TradeInitiated announces a newly created trade.
func (h *Hub) TradeInitiated(tradeID uint64, initiator, counterparty string, at time.Time) {
	log.Info().
		Uint64("trade_id", tradeID).
		Str("initiator", initiator).
		Str("counterparty", counterparty).
		Time("timestamp", at).
		Msg("trade initiated")

	h.publish(Notification{
		Type:         TypeTradeInitiated,
		TradeID:      tradeID,
		Initiator:    initiator,
		Counterparty: counterparty,
		Timestamp:    at,
	})
}

// TradeCompleted announces a settled trade.
func (h *Hub) TradeCompleted(tradeID uint64, at time.Time) {
	log.Info().
		Uint64("trade_id", tradeID).
		Time("timestamp", at).
		Msg("trade completed")

	h.publish(Notification{
		Type:      TypeTradeCompleted,
		TradeID:   tradeID,
		Timestamp: at,
	})
}

// Subscribe registers an observer channel. The returned cancel function
// must be called when the observer goes away.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) publish(n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Str("type", n.Type).Msg("failed to marshal notification")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
			// Subscriber buffer full; drop it rather than block the engine.
			delete(h.subs, ch)
			close(ch)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observers authenticate via JWT before the upgrade; origin checks
	// are left to the deployment's proxy layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler upgrades the connection and relays notifications until
// the client disconnects.
func (h *Hub) StreamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		ch, cancel := h.Subscribe()
		defer cancel()

		// Drain reads so close frames are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		for payload := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
