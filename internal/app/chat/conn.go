package chat

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

const (
	// timeout for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time the server waits for a Pong from the client.
	pongWait = 60 * time.Second

	// frequency of server Ping messages.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size of an inbound frame: the content bound plus
	// envelope headroom.
	maxFrameBytes = 64 * 1024

	// capacity of the per-connection outbound queue.
	sendQueueSize = 256
)

// Conn is one live duplex channel to exactly one authenticated user. The
// registry owns it from register to deregister; its inbound frames are
// processed one at a time in arrival order by the read pump.
type Conn struct {
	userID   int64
	username string

	ws *websocket.Conn

	// send queues marshaled outbound frames for the write pump.
	send chan []byte

	createdAt time.Time

	// lastActive holds the unix-milli timestamp of the most recent inbound
	// frame. The read pump writes it while the stats endpoint reads it.
	lastActive atomic.Int64

	// subMu guards subs, the connection's view of its chat subscriptions.
	subMu sync.Mutex
	subs  map[int64]struct{}

	// sendMu serializes enqueue against closeSend so nothing ever writes
	// to a closed queue.
	sendMu sync.Mutex
	closed bool

	logger zerolog.Logger
}

// newConn builds a connection around an upgraded websocket.
func newConn(ws *websocket.Conn, userID int64, username string) *Conn {
	now := time.Now()

	c := &Conn{
		userID:    userID,
		username:  username,
		ws:        ws,
		send:      make(chan []byte, sendQueueSize),
		createdAt: now,
		subs:      make(map[int64]struct{}),
		logger: logx.Logger().With().
			Str("component", "Conn").
			Int64("user_id", userID).
			Logger(),
	}
	c.lastActive.Store(now.UnixMilli())

	return c
}

// UserID returns the owning user's id.
func (c *Conn) UserID() int64 { return c.userID }

// Username returns the owning user's login name.
func (c *Conn) Username() string { return c.username }

// ConnectedAt returns when the connection was established.
func (c *Conn) ConnectedAt() time.Time { return c.createdAt }

// LastActiveAt returns when the connection last received a frame.
func (c *Conn) LastActiveAt() time.Time {
	return time.UnixMilli(c.lastActive.Load())
}

// enqueue places a marshaled frame on the outbound queue without blocking.
// False means the queue is full or the connection is closing; the caller
// treats that as an implicit disconnect.
func (c *Conn) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once, which ends the write
// pump and with it the websocket.
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Conn) addSubscription(chatID int64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs[chatID] = struct{}{}
}

func (c *Conn) removeSubscription(chatID int64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	delete(c.subs, chatID)
}

func (c *Conn) isSubscribed(chatID int64) bool {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	_, ok := c.subs[chatID]
	return ok
}

// subscriptions returns a snapshot of the subscribed chat ids.
func (c *Conn) subscriptions() []int64 {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	chats := make([]int64, 0, len(c.subs))
	for chatID := range c.subs {
		chats = append(chats, chatID)
	}
	return chats
}

// sendEvent marshals one event straight onto this connection's queue.
func (c *Conn) sendEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(event.Type)).
			Msg("Error marshaling event for connection.")
		return
	}

	if !c.enqueue(data) {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Connection send queue full, dropping event.")
	}
}

// sendError pushes an error frame to this connection only. Errors never
// travel to other connections.
func (c *Conn) sendError(chatID int64, customErr *errs.CustomError) {
	c.sendEvent(NewEvent(EventError, chatID, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	}))
}

// readPump reads inbound frames until the connection dies, processing each
// in arrival order. It runs on the handler's goroutine; its exit triggers
// full cleanup through the hub.
func (c *Conn) readPump(h *Hub) {
	defer h.disconnect(c)

	c.ws.SetReadLimit(maxFrameBytes)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.lastActive.Store(time.Now().UnixMilli())
		c.processFrame(h, frameBytes)
	}
}

// processFrame dispatches one raw inbound frame.
func (c *Conn) processFrame(h *Hub, frameBytes []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(frameBytes, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON frame")
		c.sendError(0, errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	ctx := context.Background()

	switch frame.Type {
	case FrameMessage:
		if _, customErr := h.Pipeline.Send(ctx, frame.ChatID, c.userID, frame.Content); customErr != nil {
			c.sendError(frame.ChatID, customErr)
		}

	case FrameTyping:
		if !c.isSubscribed(frame.ChatID) {
			c.sendError(frame.ChatID, errs.NewError(errs.ErrNotAMember))
			return
		}
		if frame.IsTyping {
			h.Typing.StartTyping(frame.ChatID, c.userID, c.username)
		} else {
			h.Typing.StopTyping(frame.ChatID, c.userID)
		}

	case FrameJoin:
		firstForUser, customErr := h.Registry.Subscribe(ctx, c, frame.ChatID)
		if customErr != nil {
			c.sendError(frame.ChatID, customErr)
			return
		}
		if firstForUser {
			h.Broadcaster.BroadcastExcept(frame.ChatID,
				NewEvent(EventUserJoined, frame.ChatID, UserEventPayload{UserID: c.userID, Username: c.username}),
				c.userID)
		}

	case FrameLeave:
		lastForUser := h.Registry.Unsubscribe(c, frame.ChatID)
		h.Typing.StopTyping(frame.ChatID, c.userID)
		if lastForUser {
			h.Broadcaster.BroadcastExcept(frame.ChatID,
				NewEvent(EventUserLeft, frame.ChatID, UserEventPayload{UserID: c.userID, Username: c.username}),
				c.userID)
		}

	case FramePing:
		c.sendEvent(NewEvent(EventPong, 0, nil))

	default:
		c.logger.Warn().Str("frame_type", frame.Type).Msg("Client sent unsupported frame type")
		c.sendError(frame.ChatID, errs.NewError(errs.ErrInvalidParams))
	}
}

// writePump drains the send queue onto the websocket and keeps the
// heartbeat alive. One per connection; exits when the queue closes or a
// write fails.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in writePump")
		}
	}()

	for {
		select {
		case data, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				// Queue closed by deregistration; say goodbye properly.
				if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Info().Err(err).Msg("Error writing frame")
				return
			}

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Info().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}
