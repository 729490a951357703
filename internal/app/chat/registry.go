package chat

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/membership"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

const (
	// chatShardCount fixes the number of chat subscription shards. Fan-out
	// for one chat only touches its shard, so subscription changes on other
	// chats never wait behind it.
	chatShardCount = 32

	// oracleTimeout bounds every membership oracle query made on behalf of
	// a subscribe call.
	oracleTimeout = 3 * time.Second
)

// chatShard holds the chat→connections mapping for a slice of chat ids.
type chatShard struct {
	mu    sync.RWMutex
	chats map[int64]map[*Conn]struct{}
}

// Registry is the in-memory index of live connections: which user owns each
// connection, which chats each connection subscribes to, and which
// connections subscribe to each chat. It is the only structure mutated by
// connect, disconnect, subscribe, and broadcast flows concurrently.
type Registry struct {
	oracle   membership.Oracle
	maxConns int

	// mu guards conns and users. Chat subscriptions live in the shards.
	mu    sync.RWMutex
	conns map[*Conn]struct{}
	users map[int64]map[*Conn]struct{}

	shards [chatShardCount]chatShard

	logger zerolog.Logger
}

// NewRegistry constructs a Registry enforcing the given connection limit.
func NewRegistry(oracle membership.Oracle, maxConns int) *Registry {
	r := &Registry{
		oracle:   oracle,
		maxConns: maxConns,
		conns:    make(map[*Conn]struct{}),
		users:    make(map[int64]map[*Conn]struct{}),
		logger:   logx.Logger().With().Str("component", "Registry").Logger(),
	}

	for i := range r.shards {
		r.shards[i].chats = make(map[int64]map[*Conn]struct{})
	}

	return r
}

// shardFor picks the subscription shard for a chat id.
func (r *Registry) shardFor(chatID int64) *chatShard {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(chatID))
	h.Write(buf[:])
	return &r.shards[h.Sum64()%chatShardCount]
}

// Register binds a new connection to its user. The only failure mode is the
// registry-wide connection limit.
func (r *Registry) Register(c *Conn) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) >= r.maxConns {
		r.logger.Warn().Int("max_connections", r.maxConns).Int64("user_id", c.userID).
			Msg("Connection rejected: registry at capacity.")
		return errs.NewError(errs.ErrCapacityExceeded)
	}

	r.conns[c] = struct{}{}

	userConns, ok := r.users[c.userID]
	if !ok {
		userConns = make(map[*Conn]struct{})
		r.users[c.userID] = userConns
	}
	userConns[c] = struct{}{}

	r.logger.Info().Int64("user_id", c.userID).Int("total_connections", len(r.conns)).
		Msg("Connection registered.")

	return nil
}

// Subscribe adds the connection to a chat's live channel after confirming
// membership with the oracle. The check happens synchronously at call time
// and is not repeated afterwards: a user removed from the chat keeps an
// existing subscription until their next subscribe or send is rejected.
// An oracle failure or timeout counts as "membership not confirmed" and is
// reported as not-a-member.
//
// The returned bool is true when this is the user's first live connection
// in the chat.
func (r *Registry) Subscribe(ctx context.Context, c *Conn, chatID int64) (bool, *errs.CustomError) {
	oracleCtx, cancel := context.WithTimeout(ctx, oracleTimeout)
	defer cancel()

	isMember, err := r.oracle.IsMember(oracleCtx, c.userID, chatID)
	if err != nil {
		r.logger.Warn().Err(err).Int64("user_id", c.userID).Int64("chat_id", chatID).
			Msg("Membership check failed, subscription rejected.")
		return false, errs.NewError(errs.ErrNotAMember)
	}
	if !isMember {
		return false, errs.NewError(errs.ErrNotAMember)
	}

	shard := r.shardFor(chatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	subs, ok := shard.chats[chatID]
	if !ok {
		subs = make(map[*Conn]struct{})
		shard.chats[chatID] = subs
	}

	firstForUser := true
	for existing := range subs {
		if existing.userID == c.userID {
			firstForUser = false
			break
		}
	}

	subs[c] = struct{}{}
	c.addSubscription(chatID)

	// A deregistration may race this subscribe: the membership check and the
	// shard insert happen outside the registry lock, so by now the connection
	// may already be gone from conns. Deregister only sweeps the chats in the
	// connection's subscription snapshot, which would miss this insert, so
	// undo it here instead of leaking a dead entry in the shard.
	r.mu.RLock()
	_, registered := r.conns[c]
	r.mu.RUnlock()
	if !registered {
		delete(subs, c)
		if len(subs) == 0 {
			delete(shard.chats, chatID)
		}
		c.removeSubscription(chatID)
		return false, errs.NewError(errs.ErrNotAMember)
	}

	return firstForUser, nil
}

// Unsubscribe removes the connection from a chat's live channel. Calling it
// for a chat the connection never joined is a no-op. The returned bool is
// true when the user has no remaining connection in the chat.
func (r *Registry) Unsubscribe(c *Conn, chatID int64) bool {
	c.removeSubscription(chatID)

	shard := r.shardFor(chatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	subs, ok := shard.chats[chatID]
	if !ok {
		return false
	}

	if _, present := subs[c]; !present {
		return false
	}

	delete(subs, c)
	if len(subs) == 0 {
		delete(shard.chats, chatID)
	}

	for remaining := range subs {
		if remaining.userID == c.userID {
			return false
		}
	}

	return true
}

// Deregister removes the connection from every map it appears in and closes
// its send queue. Idempotent: deregistering an unknown connection returns
// nil. The returned slice lists the chats in which this was the user's last
// live connection.
func (r *Registry) Deregister(c *Conn) []int64 {
	r.mu.Lock()

	if _, known := r.conns[c]; !known {
		r.mu.Unlock()
		return nil
	}

	delete(r.conns, c)

	if userConns, ok := r.users[c.userID]; ok {
		delete(userConns, c)
		if len(userConns) == 0 {
			delete(r.users, c.userID)
		}
	}

	remaining := len(r.conns)
	r.mu.Unlock()

	departed := make([]int64, 0)
	for _, chatID := range c.subscriptions() {
		if r.Unsubscribe(c, chatID) {
			departed = append(departed, chatID)
		}
	}

	c.closeSend()

	r.logger.Info().Int64("user_id", c.userID).Int("total_connections", remaining).
		Msg("Connection deregistered.")

	return departed
}

// ConnectionsFor returns a snapshot of the connections subscribed to a chat.
// Connections may disconnect between snapshot and delivery; deliveries to
// them are no-ops, not errors.
func (r *Registry) ConnectionsFor(chatID int64) []*Conn {
	shard := r.shardFor(chatID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	subs := shard.chats[chatID]
	snapshot := make([]*Conn, 0, len(subs))
	for c := range subs {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// ConnectionsOf returns a snapshot of a user's live connections.
func (r *Registry) ConnectionsOf(userID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userConns := r.users[userID]
	snapshot := make([]*Conn, 0, len(userConns))
	for c := range userConns {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// OnlineUsersIn returns the de-duplicated user ids with at least one live
// connection subscribed to the chat.
func (r *Registry) OnlineUsersIn(chatID int64) []int64 {
	seen := make(map[int64]struct{})
	users := make([]int64, 0)

	for _, c := range r.ConnectionsFor(chatID) {
		if _, dup := seen[c.userID]; dup {
			continue
		}
		seen[c.userID] = struct{}{}
		users = append(users, c.userID)
	}

	return users
}

// IsUserOnline reports whether the user owns at least one live connection.
func (r *Registry) IsUserOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// OnlineUserCount returns the number of distinct online users.
func (r *Registry) OnlineUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Shutdown deregisters every connection. Used on graceful server stop.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		r.Deregister(c)
	}

	r.logger.Info().Int("closed_connections", len(conns)).Msg("Registry shutdown complete.")
}
