package chat

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/logx"
)

// Broadcaster delivers events to every live connection subscribed to a chat.
// Delivery is best-effort per connection: the event is marshaled once and
// enqueued without blocking, so one slow or dead connection never delays its
// siblings or the operation that triggered the broadcast.
type Broadcaster struct {
	registry *Registry

	// evict is called (on its own goroutine) for a connection whose send
	// queue is full or closed. The hub points it at its disconnect routine;
	// the connection is treated as implicitly disconnected, never retried.
	evict func(*Conn)

	logger zerolog.Logger
}

// NewBroadcaster builds a Broadcaster over the given registry. Until an
// evict callback is installed, failed connections are only deregistered.
func NewBroadcaster(registry *Registry) *Broadcaster {
	b := &Broadcaster{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "Broadcaster").Logger(),
	}
	b.evict = func(c *Conn) { registry.Deregister(c) }
	return b
}

// Broadcast delivers the event once to every connection subscribed to the
// chat at call time, including the acting user's own connections.
func (b *Broadcaster) Broadcast(chatID int64, event Event) {
	b.BroadcastExcept(chatID, event, 0)
}

// BroadcastExcept delivers the event to every subscribed connection except
// those owned by exceptUserID (0 excludes nobody).
func (b *Broadcaster) BroadcastExcept(chatID int64, event Event, exceptUserID int64) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", string(event.Type)).Int64("chat_id", chatID).
			Msg("Error marshaling event for broadcast.")
		return
	}

	for _, c := range b.registry.ConnectionsFor(chatID) {
		if exceptUserID != 0 && c.userID == exceptUserID {
			continue
		}
		b.deliver(c, data)
	}
}

// SendToUser delivers the event to every live connection of one user.
func (b *Broadcaster) SendToUser(userID int64, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", string(event.Type)).Int64("user_id", userID).
			Msg("Error marshaling event for user delivery.")
		return
	}

	for _, c := range b.registry.ConnectionsOf(userID) {
		b.deliver(c, data)
	}
}

// deliver enqueues the marshaled event on one connection. A full or closed
// queue schedules the connection for eviction instead of blocking.
func (b *Broadcaster) deliver(c *Conn, data []byte) {
	if c.enqueue(data) {
		return
	}

	b.logger.Warn().Int64("user_id", c.userID).
		Msg("Connection send queue full or closed, scheduling eviction.")

	go b.evict(c)
}
