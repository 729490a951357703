/*
Package membership is the source of truth for who belongs to a chat and who
administers it. The chat core consults it through the Oracle interface and
never caches its answers; the administrative operations live here too so the
tables have a single owner.
*/
package membership

import (
	"context"
	"time"
)

const (
	// MaxGroupMembers caps the participant count of a group chat.
	MaxGroupMembers = 100

	// ChatTypeDirect is a 1:1 chat between exactly two users.
	ChatTypeDirect = "direct"

	// ChatTypeGroup is a named chat with up to MaxGroupMembers users.
	ChatTypeGroup = "group"
)

// Oracle answers membership questions for the chat core. Implementations
// must be safe for concurrent use; every call may block on I/O and honors
// context cancellation.
type Oracle interface {
	// IsMember reports whether the user currently participates in the chat.
	IsMember(ctx context.Context, userID, chatID int64) (bool, error)

	// IsAdmin reports whether the user currently administers the chat.
	IsAdmin(ctx context.Context, userID, chatID int64) (bool, error)

	// MembersOf returns the current participant user ids of the chat.
	MembersOf(ctx context.Context, chatID int64) ([]int64, error)

	// ChatActive reports whether the chat exists and is active.
	ChatActive(ctx context.Context, chatID int64) (bool, error)
}

// Chat is the structured view of a chat row.
type Chat struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name,omitempty"`
	ChatType  string    `json:"chatType"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
