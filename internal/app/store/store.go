/*
Package store implements the two-part message repository: structured message
metadata in PostgreSQL and raw message content in an S3-compatible object
store, co-referenced by one message id.

Each half-write is atomic on its own; the pair is not. Callers (the message
pipeline) are responsible for the content-before-metadata write order that
keeps every visible metadata record backed by retrievable content.
*/
package store

import (
	"context"
	"errors"
	"time"
)

// ErrContentNotFound is returned when no content object exists for a message id.
var ErrContentNotFound = errors.New("message content not found")

// ErrMetadataNotFound is returned when no metadata record exists for a message id.
var ErrMetadataNotFound = errors.New("message metadata not found")

// MessageRecord is the metadata half of a chat message.
type MessageRecord struct {
	// Seq is the server-assigned sequence, the stable per-chat ordering and
	// pagination cursor. Assigned by the metadata store on insert.
	Seq int64 `json:"seq"`

	// MessageID is the shared identifier of both message halves.
	MessageID string `json:"messageId"`

	ChatID   int64     `json:"chatId"`
	SenderID int64     `json:"senderId"`
	SentAt   time.Time `json:"sentAt"`
	Edited   bool      `json:"edited"`
	Deleted  bool      `json:"deleted"`
}

// MetadataStore is the contract of the structured, strongly consistent half.
type MetadataStore interface {
	// Insert writes a new metadata record and returns it with Seq assigned.
	Insert(ctx context.Context, rec MessageRecord) (MessageRecord, error)

	// GetByID fetches one record by message id, deleted or not.
	GetByID(ctx context.Context, messageID string) (MessageRecord, error)

	// Range returns up to limit records of a chat, newest first, strictly
	// before the given sequence. beforeSeq <= 0 starts from the newest.
	// Deleted records are included so pagination positions stay stable.
	Range(ctx context.Context, chatID int64, beforeSeq int64, limit int32) ([]MessageRecord, error)

	// MarkEdited flips the edited flag of a record.
	MarkEdited(ctx context.Context, messageID string) error

	// MarkDeleted flips the deleted flag of a record.
	MarkDeleted(ctx context.Context, messageID string) error
}

// ContentStore is the contract of the write-heavy unstructured half.
type ContentStore interface {
	// Put writes (or overwrites) the content object for a message id.
	// Overwrite-safe: retries and edits are idempotent per id.
	Put(ctx context.Context, messageID string, text string) error

	// Get reads the content object, or ErrContentNotFound.
	Get(ctx context.Context, messageID string) (string, error)

	// Delete removes the content object. Removing a missing object is a no-op.
	Delete(ctx context.Context, messageID string) error
}
