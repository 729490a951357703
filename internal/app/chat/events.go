/*
Package chat contains the core of the live messaging service: the presence
registry of connected clients, the room broadcaster, the message pipeline
that persists and fans out chat messages, and the typing tracker.
*/
package chat

import (
	"time"

	"chatrelay/internal/app/store"
)

// EventType labels an outbound event frame.
type EventType string

// Outbound event types pushed over the live channel.
const (
	EventNewMessage     EventType = "new_message"
	EventMessageEdited  EventType = "message_edited"
	EventMessageDeleted EventType = "message_deleted"
	EventTypingStarted  EventType = "typing_started"
	EventTypingStopped  EventType = "typing_stopped"
	EventUserJoined     EventType = "user_joined"
	EventUserLeft       EventType = "user_left"
	EventPong           EventType = "pong"
	EventError          EventType = "error"
)

// Inbound frame types accepted from clients.
const (
	FrameMessage = "message"
	FrameTyping  = "typing"
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FramePing    = "ping"
)

// Event is the outbound frame envelope.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    int64     `json:"chatId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewEvent builds an outbound event stamped with the current time.
func NewEvent(eventType EventType, chatID int64, payload any) Event {
	return Event{
		Type:      eventType,
		ChatID:    chatID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// InboundFrame is the envelope clients send over the live channel.
type InboundFrame struct {
	Type    string `json:"type"`
	ChatID  int64  `json:"chatId,omitempty"`
	Content string `json:"content,omitempty"`

	// IsTyping distinguishes start from stop on FrameTyping.
	IsTyping bool `json:"isTyping,omitempty"`
}

// Message is a full chat message: the metadata half joined with its content.
// For tombstones Content is empty.
type Message struct {
	store.MessageRecord
	Content string `json:"content"`
}

// UserEventPayload accompanies user_joined and user_left events.
type UserEventPayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// TypingPayload accompanies typing_started and typing_stopped events.
type TypingPayload struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// ErrorPayload accompanies error events pushed to a single connection.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
