package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesNotifications(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	at := time.Now().UTC()
	hub.TradeInitiated(7, "acct-alice", "acct-bob", at)

	var n Notification
	require.NoError(t, json.Unmarshal(<-ch, &n))
	assert.Equal(t, TypeTradeInitiated, n.Type)
	assert.EqualValues(t, 7, n.TradeID)
	assert.Equal(t, "acct-alice", n.Initiator)
	assert.Equal(t, "acct-bob", n.Counterparty)

	hub.TradeCompleted(7, at)

	require.NoError(t, json.Unmarshal(<-ch, &n))
	assert.Equal(t, TypeTradeCompleted, n.Type)
	assert.EqualValues(t, 7, n.TradeID)
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()

	cancel()
	// Cancel is safe to call twice.
	cancel()

	hub.TradeCompleted(1, time.Now())

	_, open := <-ch
	assert.False(t, open)
}

func TestSlowSubscriberDropped(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer without draining it.
	for i := 0; i < 20; i++ {
		hub.TradeCompleted(uint64(i), time.Now())
	}

	// The channel was closed after the drop; draining it terminates.
	received := 0
	for range ch {
		received++
	}
	assert.Equal(t, 16, received)
}
