package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/logx"
)

const (
	// TypingIdleTimeout is how long a typing indicator survives without a
	// refresh before the sweep expires it.
	TypingIdleTimeout = 5 * time.Second

	// typingSweepInterval is the period of the expiry sweep, the only
	// time-driven trigger in the chat core.
	typingSweepInterval = time.Second
)

type typingKey struct {
	chatID int64
	userID int64
}

type typingEntry struct {
	deadline time.Time
	username string
}

// TypingTracker keeps the transient per-(chat, user) typing state. Entries
// live only in memory and are bounded by the background sweep.
type TypingTracker struct {
	broadcaster *Broadcaster

	mu      sync.Mutex
	entries map[typingKey]typingEntry

	idle time.Duration
	now  func() time.Time

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger zerolog.Logger
}

// NewTypingTracker builds a tracker broadcasting through b. Run starts the
// sweep loop.
func NewTypingTracker(b *Broadcaster) *TypingTracker {
	return &TypingTracker{
		broadcaster: b,
		entries:     make(map[typingKey]typingEntry),
		idle:        TypingIdleTimeout,
		now:         time.Now,
		stop:        make(chan struct{}),
		logger:      logx.Logger().With().Str("component", "TypingTracker").Logger(),
	}
}

// Run starts the background sweep goroutine.
func (t *TypingTracker) Run() {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ticker := time.NewTicker(typingSweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.sweep()
			case <-t.stop:
				return
			}
		}
	}()
}

// Close stops the sweep loop and waits for it to exit.
func (t *TypingTracker) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
	t.wg.Wait()
}

// StartTyping creates or refreshes the typing entry. typing_started goes out
// only on the absent→present transition, so rapid refreshes within the idle
// window cost one broadcast, not many. The sending user is excluded.
func (t *TypingTracker) StartTyping(chatID, userID int64, username string) {
	key := typingKey{chatID: chatID, userID: userID}

	t.mu.Lock()
	_, present := t.entries[key]
	t.entries[key] = typingEntry{deadline: t.now().Add(t.idle), username: username}
	t.mu.Unlock()

	if !present {
		t.broadcaster.BroadcastExcept(chatID,
			NewEvent(EventTypingStarted, chatID, TypingPayload{UserID: userID, Username: username}),
			userID)
	}
}

// StopTyping removes the typing entry and broadcasts typing_stopped only if
// an entry existed. Called on explicit stop, on send, and on disconnect.
func (t *TypingTracker) StopTyping(chatID, userID int64) {
	key := typingKey{chatID: chatID, userID: userID}

	t.mu.Lock()
	entry, present := t.entries[key]
	if present {
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if present {
		t.broadcaster.BroadcastExcept(chatID,
			NewEvent(EventTypingStopped, chatID, TypingPayload{UserID: userID, Username: entry.username}),
			userID)
	}
}

// sweep expires entries past their deadline and broadcasts typing_stopped
// for each one. Broadcasts happen after the lock is released.
func (t *TypingTracker) sweep() {
	now := t.now()

	type expired struct {
		key   typingKey
		entry typingEntry
	}

	t.mu.Lock()
	var stale []expired
	for key, entry := range t.entries {
		if now.After(entry.deadline) {
			stale = append(stale, expired{key: key, entry: entry})
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()

	for _, e := range stale {
		t.broadcaster.BroadcastExcept(e.key.chatID,
			NewEvent(EventTypingStopped, e.key.chatID, TypingPayload{UserID: e.key.userID, Username: e.entry.username}),
			e.key.userID)
	}

	if len(stale) > 0 {
		t.logger.Debug().Int("expired", len(stale)).Msg("Typing sweep expired stale entries.")
	}
}
