package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/app/db"
)

// PgMetadataStore implements MetadataStore on a pgx connection pool.
type PgMetadataStore struct {
	pool *pgxpool.Pool
}

// NewPgMetadataStore wraps the given pool.
func NewPgMetadataStore(pool *pgxpool.Pool) *PgMetadataStore {
	return &PgMetadataStore{pool: pool}
}

// Insert writes a new metadata record. The returned record carries the
// sequence assigned by the database.
func (s *PgMetadataStore) Insert(ctx context.Context, rec MessageRecord) (MessageRecord, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO message_metadata (message_id, chat_id, sender_id, sent_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING seq`,
		rec.MessageID, rec.ChatID, rec.SenderID, rec.SentAt,
	).Scan(&rec.Seq)

	if err != nil {
		return MessageRecord{}, fmt.Errorf("insert message metadata: %w", err)
	}

	// Bump the chat's activity timestamp so chat lists sort by recency.
	// Failure here does not fail the send; the record is already committed.
	_, _ = s.pool.Exec(ctx,
		`UPDATE chats SET updated_at = $1 WHERE id = $2`, rec.SentAt, rec.ChatID)

	return rec, nil
}

// GetByID fetches one record by message id.
func (s *PgMetadataStore) GetByID(ctx context.Context, messageID string) (MessageRecord, error) {
	var rec MessageRecord

	err := s.pool.QueryRow(ctx,
		`SELECT seq, message_id, chat_id, sender_id, sent_at, is_edited, is_deleted
		 FROM message_metadata
		 WHERE message_id = $1`,
		messageID,
	).Scan(&rec.Seq, &rec.MessageID, &rec.ChatID, &rec.SenderID, &rec.SentAt, &rec.Edited, &rec.Deleted)

	if err != nil {
		if db.IsNoRows(err) {
			return MessageRecord{}, ErrMetadataNotFound
		}
		return MessageRecord{}, fmt.Errorf("get message metadata: %w", err)
	}

	return rec, nil
}

// Range returns up to limit records of a chat, newest first, strictly before
// beforeSeq. Deleted records are included as tombstones.
func (s *PgMetadataStore) Range(ctx context.Context, chatID int64, beforeSeq int64, limit int32) ([]MessageRecord, error) {
	const query = `SELECT seq, message_id, chat_id, sender_id, sent_at, is_edited, is_deleted
		 FROM message_metadata
		 WHERE chat_id = $1 AND ($2 <= 0 OR seq < $2)
		 ORDER BY seq DESC
		 LIMIT $3`

	rows, err := s.pool.Query(ctx, query, chatID, beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("range message metadata: %w", err)
	}
	defer rows.Close()

	records := make([]MessageRecord, 0, limit)
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(&rec.Seq, &rec.MessageID, &rec.ChatID, &rec.SenderID, &rec.SentAt, &rec.Edited, &rec.Deleted); err != nil {
			return nil, fmt.Errorf("scan message metadata: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("range message metadata: %w", err)
	}

	return records, nil
}

// MarkEdited flips the edited flag of a record.
func (s *PgMetadataStore) MarkEdited(ctx context.Context, messageID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE message_metadata SET is_edited = TRUE WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("mark message edited: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMetadataNotFound
	}
	return nil
}

// MarkDeleted flips the deleted flag of a record.
func (s *PgMetadataStore) MarkDeleted(ctx context.Context, messageID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE message_metadata SET is_deleted = TRUE WHERE message_id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("mark message deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMetadataNotFound
	}
	return nil
}
