package chat

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/membership"
	"chatrelay/internal/app/store"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

const (
	// MaxMessageRunes bounds message content length, counted in runes.
	MaxMessageRunes = 10000

	// storeTimeout bounds each store half-write and each oracle query made
	// by the pipeline. A timed-out content write is a persist failure; a
	// timed-out oracle query is a validation rejection.
	storeTimeout = 5 * time.Second

	// DefaultHistoryLimit and MaxHistoryLimit bound history page sizes.
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Pipeline validates, persists, and sequences chat messages, then hands the
// committed result to the broadcaster. It is the only writer of either
// message half.
//
// Every message follows the strict order content-write → metadata-write →
// broadcast. A metadata record is therefore never visible without its
// content; a content object without metadata (write failed between the two)
// is an accepted orphan, reported to the sender as a failure and left for
// out-of-band reconciliation.
type Pipeline struct {
	oracle      membership.Oracle
	meta        store.MetadataStore
	content     store.ContentStore
	broadcaster *Broadcaster
	typing      *TypingTracker

	opTimeout time.Duration
	now       func() time.Time
	newID     func() string

	logger zerolog.Logger
}

// NewPipeline wires the pipeline over its collaborators.
func NewPipeline(oracle membership.Oracle, meta store.MetadataStore, content store.ContentStore, broadcaster *Broadcaster, typing *TypingTracker) *Pipeline {
	return &Pipeline{
		oracle:      oracle,
		meta:        meta,
		content:     content,
		broadcaster: broadcaster,
		typing:      typing,
		opTimeout:   storeTimeout,
		now:         time.Now,
		newID:       randx.MessageID,
		logger:      logx.Logger().With().Str("component", "Pipeline").Logger(),
	}
}

// validateContent applies the length bounds shared by send and edit.
func validateContent(content string) *errs.CustomError {
	if content == "" {
		return errs.NewError(errs.ErrMessageEmpty)
	}
	if utf8.RuneCountInString(content) > MaxMessageRunes {
		return errs.NewError(errs.ErrMessageTooLong)
	}
	return nil
}

// requireMember re-checks chat membership with the oracle. Oracle errors and
// timeouts mean membership cannot be confirmed and reject the operation.
func (p *Pipeline) requireMember(ctx context.Context, userID, chatID int64) *errs.CustomError {
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	isMember, err := p.oracle.IsMember(opCtx, userID, chatID)
	if err != nil {
		p.logger.Warn().Err(err).Int64("user_id", userID).Int64("chat_id", chatID).
			Msg("Membership check failed, rejecting operation.")
		return errs.NewError(errs.ErrNotAMember)
	}
	if !isMember {
		return errs.NewError(errs.ErrNotAMember)
	}
	return nil
}

// Send runs the full pipeline for one outgoing message. On success the
// committed message has been broadcast to every subscriber of the chat,
// including the sender's own connections.
func (p *Pipeline) Send(ctx context.Context, chatID, senderID int64, content string) (Message, *errs.CustomError) {
	// Validated: nothing is written when any of these fire.
	if customErr := validateContent(content); customErr != nil {
		return Message{}, customErr
	}

	if customErr := p.requireMember(ctx, senderID, chatID); customErr != nil {
		return Message{}, customErr
	}

	activeCtx, cancelActive := context.WithTimeout(ctx, p.opTimeout)
	active, err := p.oracle.ChatActive(activeCtx, chatID)
	cancelActive()
	if err != nil {
		p.logger.Warn().Err(err).Int64("chat_id", chatID).
			Msg("Chat state check failed, rejecting send.")
		return Message{}, errs.NewError(errs.ErrChatInactive)
	}
	if !active {
		return Message{}, errs.NewError(errs.ErrChatInactive)
	}

	// ContentPersisted: the id is fresh per attempt, so a retry after any
	// failure writes a new object rather than racing the old one.
	messageID := p.newID()

	contentCtx, cancelContent := context.WithTimeout(ctx, p.opTimeout)
	err = p.content.Put(contentCtx, messageID, content)
	cancelContent()
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", messageID).Int64("chat_id", chatID).
			Msg("Content write failed, nothing persisted.")
		return Message{}, errs.NewError(errs.ErrPersistFailure)
	}

	// MetadataPersisted: commit point. A failure here leaves the content
	// object orphaned, which is bounded and reconcilable out of band.
	rec := store.MessageRecord{
		MessageID: messageID,
		ChatID:    chatID,
		SenderID:  senderID,
		SentAt:    p.now().UTC(),
	}

	metaCtx, cancelMeta := context.WithTimeout(ctx, p.opTimeout)
	rec, err = p.meta.Insert(metaCtx, rec)
	cancelMeta()
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", messageID).Int64("chat_id", chatID).
			Msg("Metadata write failed after content write, content object orphaned.")
		return Message{}, errs.NewError(errs.ErrPersistFailure)
	}

	// Sending a message ends the sender's typing indicator.
	if p.typing != nil {
		p.typing.StopTyping(chatID, senderID)
	}

	// Delivered: self-echo included, the sender sees its own message come
	// back with the authoritative id and sequence.
	msg := Message{MessageRecord: rec, Content: content}
	p.broadcaster.Broadcast(chatID, NewEvent(EventNewMessage, chatID, msg))

	return msg, nil
}

// Edit replaces a message's content. Only the original sender may edit.
// The content object is overwritten before the edited flag flips, so
// readers never see the flag without the new content.
func (p *Pipeline) Edit(ctx context.Context, messageID string, editorID int64, newContent string) (Message, *errs.CustomError) {
	if customErr := validateContent(newContent); customErr != nil {
		return Message{}, customErr
	}

	rec, customErr := p.loadRecord(ctx, messageID)
	if customErr != nil {
		return Message{}, customErr
	}
	if rec.Deleted {
		return Message{}, errs.NewError(errs.ErrMessageNotFound)
	}
	if rec.SenderID != editorID {
		return Message{}, errs.NewError(errs.ErrNotMessageSender)
	}

	contentCtx, cancelContent := context.WithTimeout(ctx, p.opTimeout)
	err := p.content.Put(contentCtx, messageID, newContent)
	cancelContent()
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", messageID).Msg("Edit content write failed.")
		return Message{}, errs.NewError(errs.ErrPersistFailure)
	}

	metaCtx, cancelMeta := context.WithTimeout(ctx, p.opTimeout)
	err = p.meta.MarkEdited(metaCtx, messageID)
	cancelMeta()
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", messageID).
			Msg("Edited flag update failed after content write.")
		return Message{}, errs.NewError(errs.ErrPersistFailure)
	}

	rec.Edited = true
	msg := Message{MessageRecord: rec, Content: newContent}
	p.broadcaster.Broadcast(rec.ChatID, NewEvent(EventMessageEdited, rec.ChatID, msg))

	return msg, nil
}

// Delete tombstones a message. The sender may delete their own messages;
// chat admins may delete anyone's. The content object goes first, then the
// deleted flag, so a record flagged deleted never serves stale content.
// Deleting an already-deleted message is a no-op.
func (p *Pipeline) Delete(ctx context.Context, messageID string, requesterID int64) *errs.CustomError {
	rec, customErr := p.loadRecord(ctx, messageID)
	if customErr != nil {
		return customErr
	}
	if rec.Deleted {
		return nil
	}

	if rec.SenderID != requesterID {
		adminCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
		isAdmin, err := p.oracle.IsAdmin(adminCtx, requesterID, rec.ChatID)
		cancel()
		if err != nil {
			p.logger.Warn().Err(err).Int64("user_id", requesterID).Int64("chat_id", rec.ChatID).
				Msg("Admin check failed, rejecting delete.")
			return errs.NewError(errs.ErrNotAnAdmin)
		}
		if !isAdmin {
			return errs.NewError(errs.ErrNotAnAdmin)
		}
	}

	contentCtx, cancelContent := context.WithTimeout(ctx, p.opTimeout)
	err := p.content.Delete(contentCtx, messageID)
	cancelContent()
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", messageID).Msg("Content tombstone failed.")
		return errs.NewError(errs.ErrPersistFailure)
	}

	metaCtx, cancelMeta := context.WithTimeout(ctx, p.opTimeout)
	err = p.meta.MarkDeleted(metaCtx, messageID)
	cancelMeta()
	if err != nil {
		p.logger.Error().Err(err).Str("message_id", messageID).
			Msg("Deleted flag update failed after content tombstone.")
		return errs.NewError(errs.ErrPersistFailure)
	}

	rec.Deleted = true
	p.broadcaster.Broadcast(rec.ChatID, NewEvent(EventMessageDeleted, rec.ChatID, Message{MessageRecord: rec}))

	return nil
}

// History returns a page of a chat's messages, newest first, strictly before
// the given sequence (beforeSeq <= 0 starts at the newest). Deleted messages
// come back as tombstones with content withheld, so pagination positions
// stay stable.
func (p *Pipeline) History(ctx context.Context, chatID, requesterID int64, beforeSeq int64, limit int32) ([]Message, *errs.CustomError) {
	if customErr := p.requireMember(ctx, requesterID, chatID); customErr != nil {
		return nil, customErr
	}

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rangeCtx, cancelRange := context.WithTimeout(ctx, p.opTimeout)
	records, err := p.meta.Range(rangeCtx, chatID, beforeSeq, limit)
	cancelRange()
	if err != nil {
		p.logger.Error().Err(err).Int64("chat_id", chatID).Msg("History metadata query failed.")
		return nil, errs.NewError(errs.ErrUnknown)
	}

	messages := make([]Message, 0, len(records))
	for _, rec := range records {
		msg := Message{MessageRecord: rec}

		if !rec.Deleted {
			contentCtx, cancelContent := context.WithTimeout(ctx, p.opTimeout)
			text, err := p.content.Get(contentCtx, rec.MessageID)
			cancelContent()
			if err != nil {
				if errors.Is(err, store.ErrContentNotFound) {
					// Write order guarantees content for every committed
					// record; missing content means external interference.
					p.logger.Error().Str("message_id", rec.MessageID).Int64("chat_id", chatID).
						Msg("Metadata record without content object.")
				} else {
					p.logger.Error().Err(err).Str("message_id", rec.MessageID).
						Msg("History content fetch failed.")
					return nil, errs.NewError(errs.ErrUnknown)
				}
			} else {
				msg.Content = text
			}
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

// loadRecord fetches one metadata record, mapping missing records to the
// client-facing not-found error.
func (p *Pipeline) loadRecord(ctx context.Context, messageID string) (store.MessageRecord, *errs.CustomError) {
	opCtx, cancel := context.WithTimeout(ctx, p.opTimeout)
	defer cancel()

	rec, err := p.meta.GetByID(opCtx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrMetadataNotFound) {
			return store.MessageRecord{}, errs.NewError(errs.ErrMessageNotFound)
		}
		p.logger.Error().Err(err).Str("message_id", messageID).Msg("Metadata lookup failed.")
		return store.MessageRecord{}, errs.NewError(errs.ErrUnknown)
	}

	return rec, nil
}
