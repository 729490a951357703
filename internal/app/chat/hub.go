package chat

import (
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/app/membership"
	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// Hub wires the live-messaging core together: registry, broadcaster,
// pipeline and typing tracker share one lifecycle owned here.
type Hub struct {
	Registry    *Registry
	Broadcaster *Broadcaster
	Pipeline    *Pipeline
	Typing      *TypingTracker

	logger zerolog.Logger
}

// NewHub assembles the core around the given collaborators and starts the
// typing sweep. A connection evicted by the broadcaster goes through the
// same teardown as a client that hung up.
func NewHub(oracle membership.Oracle, meta store.MetadataStore, content store.ContentStore, maxConns int) *Hub {
	registry := NewRegistry(oracle, maxConns)
	broadcaster := NewBroadcaster(registry)
	typing := NewTypingTracker(broadcaster)
	pipeline := NewPipeline(oracle, meta, content, broadcaster, typing)

	h := &Hub{
		Registry:    registry,
		Broadcaster: broadcaster,
		Pipeline:    pipeline,
		Typing:      typing,
		logger:      logx.Logger().With().Str("component", "Hub").Logger(),
	}

	broadcaster.evict = h.disconnect
	typing.Run()

	return h
}

// HandleConnection runs one upgraded websocket until it closes. The caller's
// goroutine becomes the read pump; the write pump gets its own.
func (h *Hub) HandleConnection(ws *websocket.Conn, userID int64, username string) *errs.CustomError {
	c := newConn(ws, userID, username)

	if customErr := h.Registry.Register(c); customErr != nil {
		h.logger.Warn().Int64("user_id", userID).Msg("Connection rejected at capacity.")
		return customErr
	}

	h.logger.Info().
		Int64("user_id", userID).
		Str("username", username).
		Int("connections", h.Registry.ConnectionCount()).
		Msg("Client connected.")

	go c.writePump()
	c.readPump(h)

	return nil
}

// disconnect tears one connection down: deregistration, typing cleanup and
// user_left events for every chat where this was the user's last connection.
// Safe to call more than once for the same connection.
func (h *Hub) disconnect(c *Conn) {
	departed := h.Registry.Deregister(c)
	if departed == nil {
		return
	}

	for _, chatID := range departed {
		h.Typing.StopTyping(chatID, c.userID)
		h.Broadcaster.BroadcastExcept(chatID,
			NewEvent(EventUserLeft, chatID, UserEventPayload{UserID: c.userID, Username: c.username}),
			c.userID)
	}

	h.logger.Info().
		Int64("user_id", c.userID).
		Int("connections", h.Registry.ConnectionCount()).
		Msg("Client disconnected.")
}

// Shutdown stops the typing sweep and drops every live connection.
func (h *Hub) Shutdown() {
	h.Typing.Close()
	h.Registry.Shutdown()
	h.logger.Info().Msg("Hub shut down.")
}
