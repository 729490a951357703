package membership

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatrelay/internal/app/db"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// PgStore implements Oracle on PostgreSQL and owns the chat administration
// operations (create, add/remove participants, list).
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps the given pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// IsMember reports whether the user currently participates in the chat.
func (s *PgStore) IsMember(ctx context.Context, userID, chatID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2
		 )`, chatID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("membership check: %w", err)
	}
	return exists, nil
}

// IsAdmin reports whether the user currently administers the chat.
func (s *PgStore) IsAdmin(ctx context.Context, userID, chatID int64) (bool, error) {
	var isAdmin bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM chat_participants
		   WHERE chat_id = $1 AND user_id = $2 AND is_admin
		 )`, chatID, userID).Scan(&isAdmin)
	if err != nil {
		return false, fmt.Errorf("admin check: %w", err)
	}
	return isAdmin, nil
}

// MembersOf returns the current participant user ids of the chat.
func (s *PgStore) MembersOf(ctx context.Context, chatID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM chat_participants WHERE chat_id = $1`, chatID)
	if err != nil {
		return nil, fmt.Errorf("members query: %w", err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("members scan: %w", err)
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

// ChatActive reports whether the chat exists and is active.
func (s *PgStore) ChatActive(ctx context.Context, chatID int64) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx,
		`SELECT is_active FROM chats WHERE id = $1`, chatID).Scan(&active)
	if err != nil {
		if db.IsNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("chat active check: %w", err)
	}
	return active, nil
}

// CreateChat creates a chat with the creator as admin. Direct chats take
// exactly one other participant; group chats up to MaxGroupMembers total.
// The chat row and all participant rows commit in one transaction.
func (s *PgStore) CreateChat(ctx context.Context, creatorID int64, chatType, name string, participantIDs []int64) (*Chat, *errs.CustomError) {
	switch chatType {
	case ChatTypeDirect:
		if len(participantIDs) != 1 || participantIDs[0] == creatorID {
			return nil, errs.NewError(errs.ErrParticipantsInvalid)
		}
	case ChatTypeGroup:
		if len(participantIDs) == 0 {
			return nil, errs.NewError(errs.ErrParticipantsInvalid)
		}
		if len(participantIDs)+1 > MaxGroupMembers {
			return nil, errs.NewError(errs.ErrGroupFull, MaxGroupMembers)
		}
	default:
		return nil, errs.NewError(errs.ErrChatTypeInvalid)
	}

	allIDs := append([]int64{creatorID}, participantIDs...)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		logx.Error(err, "create chat: begin tx failed")
		return nil, errs.NewError(errs.ErrUnknown)
	}
	defer tx.Rollback(ctx)

	var known int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE id = ANY($1) AND is_active`, allIDs).Scan(&known); err != nil {
		logx.Error(err, "create chat: participant validation failed")
		return nil, errs.NewError(errs.ErrUnknown)
	}
	if known != len(allIDs) {
		return nil, errs.NewError(errs.ErrUserNotFound)
	}

	chat := &Chat{ChatType: chatType, Name: name, IsActive: true}
	err = tx.QueryRow(ctx,
		`INSERT INTO chats (name, chat_type)
		 VALUES (NULLIF($1, ''), $2)
		 RETURNING id, created_at, updated_at`,
		name, chatType,
	).Scan(&chat.ID, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		logx.Error(err, "create chat: insert failed")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	for _, userID := range allIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id, is_admin)
			 VALUES ($1, $2, $3)
			 ON CONFLICT DO NOTHING`,
			chat.ID, userID, userID == creatorID)
		if err != nil {
			logx.Error(err, "create chat: participant insert failed", "user_id", userID)
			return nil, errs.NewError(errs.ErrUnknown)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		logx.Error(err, "create chat: commit failed")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	return chat, nil
}

// GetChat fetches one chat row by id, active or not. Missing chats surface
// as pgx.ErrNoRows for the caller to map.
func (s *PgStore) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(name, ''), chat_type, is_active, created_at, updated_at
		 FROM chats WHERE id = $1`, chatID,
	).Scan(&c.ID, &c.Name, &c.ChatType, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &c, nil
}

// DeactivateChat soft-deletes a chat. Only admins may deactivate; the rows
// survive for history reads, but sends and membership changes are rejected
// from here on. Deactivating an already-inactive chat reports not-found.
func (s *PgStore) DeactivateChat(ctx context.Context, chatID, adminID int64) *errs.CustomError {
	isAdmin, err := s.IsAdmin(ctx, adminID, chatID)
	if err != nil {
		logx.Error(err, "deactivate chat: admin check failed", "chat_id", chatID)
		return errs.NewError(errs.ErrUnknown)
	}
	if !isAdmin {
		return errs.NewError(errs.ErrNotAnAdmin)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE chats SET is_active = FALSE, updated_at = now()
		 WHERE id = $1 AND is_active`, chatID)
	if err != nil {
		logx.Error(err, "deactivate chat: update failed", "chat_id", chatID)
		return errs.NewError(errs.ErrUnknown)
	}
	if tag.RowsAffected() == 0 {
		return errs.NewError(errs.ErrChatNotFound)
	}

	logx.Info("Chat deactivated", "chat_id", chatID, "admin_id", adminID)
	return nil
}

// AddParticipants adds users to a group chat. Only admins may add; the
// group cap still applies.
func (s *PgStore) AddParticipants(ctx context.Context, chatID, adminID int64, userIDs []int64) *errs.CustomError {
	if len(userIDs) == 0 {
		return errs.NewError(errs.ErrParticipantsInvalid)
	}

	isAdmin, err := s.IsAdmin(ctx, adminID, chatID)
	if err != nil {
		logx.Error(err, "add participants: admin check failed", "chat_id", chatID)
		return errs.NewError(errs.ErrUnknown)
	}
	if !isAdmin {
		return errs.NewError(errs.ErrNotAnAdmin)
	}

	var chatType string
	if err := s.pool.QueryRow(ctx,
		`SELECT chat_type FROM chats WHERE id = $1 AND is_active`, chatID).Scan(&chatType); err != nil {
		if db.IsNoRows(err) {
			return errs.NewError(errs.ErrChatNotFound)
		}
		logx.Error(err, "add participants: chat lookup failed", "chat_id", chatID)
		return errs.NewError(errs.ErrUnknown)
	}
	if chatType != ChatTypeGroup {
		return errs.NewError(errs.ErrChatTypeInvalid)
	}

	var current int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chat_participants WHERE chat_id = $1`, chatID).Scan(&current); err != nil {
		logx.Error(err, "add participants: count failed", "chat_id", chatID)
		return errs.NewError(errs.ErrUnknown)
	}
	if current+len(userIDs) > MaxGroupMembers {
		return errs.NewError(errs.ErrGroupFull, MaxGroupMembers)
	}

	for _, userID := range userIDs {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO chat_participants (chat_id, user_id)
			 SELECT $1, id FROM users WHERE id = $2 AND is_active
			 ON CONFLICT DO NOTHING`,
			chatID, userID)
		if err != nil {
			logx.Error(err, "add participants: insert failed", "chat_id", chatID, "user_id", userID)
			return errs.NewError(errs.ErrUnknown)
		}
	}

	return nil
}

// RemoveParticipant removes a user from a chat. Admins may remove anyone;
// every user may remove themselves.
func (s *PgStore) RemoveParticipant(ctx context.Context, chatID, requesterID, userID int64) *errs.CustomError {
	if requesterID != userID {
		isAdmin, err := s.IsAdmin(ctx, requesterID, chatID)
		if err != nil {
			logx.Error(err, "remove participant: admin check failed", "chat_id", chatID)
			return errs.NewError(errs.ErrUnknown)
		}
		if !isAdmin {
			return errs.NewError(errs.ErrNotAnAdmin)
		}
	}

	_, err := s.pool.Exec(ctx,
		`DELETE FROM chat_participants WHERE chat_id = $1 AND user_id = $2`,
		chatID, userID)
	if err != nil {
		logx.Error(err, "remove participant: delete failed", "chat_id", chatID, "user_id", userID)
		return errs.NewError(errs.ErrUnknown)
	}

	return nil
}

// ListUserChats returns the active chats the user participates in, most
// recently updated first.
func (s *PgStore) ListUserChats(ctx context.Context, userID int64, limit, offset int32) ([]Chat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, COALESCE(c.name, ''), c.chat_type, c.is_active, c.created_at, c.updated_at
		 FROM chats c
		 JOIN chat_participants p ON p.chat_id = c.id
		 WHERE p.user_id = $1 AND c.is_active
		 ORDER BY c.updated_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.ChatType, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list chats scan: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}
