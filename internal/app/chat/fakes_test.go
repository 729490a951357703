package chat

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/app/store"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

// fakeOracle is an in-memory membership oracle with injectable failures.
type fakeOracle struct {
	mu       sync.Mutex
	members  map[int64]map[int64]bool // chatID -> userID
	admins   map[int64]map[int64]bool
	inactive map[int64]bool
	missing  map[int64]bool
	err      error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		members:  make(map[int64]map[int64]bool),
		admins:   make(map[int64]map[int64]bool),
		inactive: make(map[int64]bool),
		missing:  make(map[int64]bool),
	}
}

func (o *fakeOracle) addMember(chatID, userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.members[chatID] == nil {
		o.members[chatID] = make(map[int64]bool)
	}
	o.members[chatID][userID] = true
}

func (o *fakeOracle) removeMember(chatID, userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.members[chatID], userID)
}

func (o *fakeOracle) setAdmin(chatID, userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.admins[chatID] == nil {
		o.admins[chatID] = make(map[int64]bool)
	}
	o.admins[chatID][userID] = true
}

func (o *fakeOracle) deactivate(chatID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inactive[chatID] = true
}

func (o *fakeOracle) failWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

func (o *fakeOracle) IsMember(_ context.Context, userID, chatID int64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return false, o.err
	}
	return o.members[chatID][userID], nil
}

func (o *fakeOracle) IsAdmin(_ context.Context, userID, chatID int64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return false, o.err
	}
	return o.admins[chatID][userID], nil
}

func (o *fakeOracle) MembersOf(_ context.Context, chatID int64) ([]int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	ids := make([]int64, 0, len(o.members[chatID]))
	for id := range o.members[chatID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (o *fakeOracle) ChatActive(_ context.Context, chatID int64) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return false, o.err
	}
	if o.missing[chatID] || o.inactive[chatID] {
		return false, nil
	}
	return true, nil
}

// fakeMetadataStore keeps records in memory with a monotonically assigned
// sequence. Optional ops log records half-write ordering across the fakes.
type fakeMetadataStore struct {
	mu        sync.Mutex
	records   []store.MessageRecord
	nextSeq   int64
	insertErr error
	lastLimit int32
	ops       *opLog
}

func newFakeMetadataStore(ops *opLog) *fakeMetadataStore {
	return &fakeMetadataStore{nextSeq: 1, ops: ops}
}

func (s *fakeMetadataStore) Insert(_ context.Context, rec store.MessageRecord) (store.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops.record("meta.insert")
	if s.insertErr != nil {
		return store.MessageRecord{}, s.insertErr
	}
	rec.Seq = s.nextSeq
	s.nextSeq++
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *fakeMetadataStore) GetByID(_ context.Context, messageID string) (store.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.MessageID == messageID {
			return rec, nil
		}
	}
	return store.MessageRecord{}, store.ErrMetadataNotFound
}

func (s *fakeMetadataStore) Range(_ context.Context, chatID int64, beforeSeq int64, limit int32) ([]store.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLimit = limit

	matched := make([]store.MessageRecord, 0)
	for _, rec := range s.records {
		if rec.ChatID != chatID {
			continue
		}
		if beforeSeq > 0 && rec.Seq >= beforeSeq {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Seq > matched[j].Seq })
	if int32(len(matched)) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *fakeMetadataStore) MarkEdited(_ context.Context, messageID string) error {
	return s.setFlag(messageID, func(rec *store.MessageRecord) { rec.Edited = true })
}

func (s *fakeMetadataStore) MarkDeleted(_ context.Context, messageID string) error {
	return s.setFlag(messageID, func(rec *store.MessageRecord) { rec.Deleted = true })
}

func (s *fakeMetadataStore) setFlag(messageID string, apply func(*store.MessageRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].MessageID == messageID {
			apply(&s.records[i])
			return nil
		}
	}
	return store.ErrMetadataNotFound
}

func (s *fakeMetadataStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeContentStore keeps content objects in a map with injectable failures.
type fakeContentStore struct {
	mu      sync.Mutex
	objects map[string]string
	putErr  error
	ops     *opLog
}

func newFakeContentStore(ops *opLog) *fakeContentStore {
	return &fakeContentStore{objects: make(map[string]string), ops: ops}
}

func (s *fakeContentStore) Put(_ context.Context, messageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops.record("content.put")
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[messageID] = text
	return nil
}

func (s *fakeContentStore) Get(_ context.Context, messageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.objects[messageID]
	if !ok {
		return "", store.ErrContentNotFound
	}
	return text, nil
}

func (s *fakeContentStore) Delete(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops.record("content.delete")
	delete(s.objects, messageID)
	return nil
}

func (s *fakeContentStore) drop(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, messageID)
}

func (s *fakeContentStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// opLog records the order of half-writes across the two store fakes.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) record(op string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

// newTestConn builds a connection without a live websocket; events land on
// its send queue as marshaled frames.
func newTestConn(userID int64, username string) *Conn {
	return newConn(nil, userID, username)
}

// recvEvent pops the next event from a connection's send queue.
func recvEvent(t *testing.T, c *Conn) Event {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send queue closed while waiting for event")
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// requireNoEvent asserts the connection's queue is empty.
func requireNoEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event on queue: %s", data)
	default:
	}
}

// decodePayload re-marshals an event payload into a typed struct.
func decodePayload(t *testing.T, ev Event, dst any) {
	t.Helper()
	raw, err := json.Marshal(ev.Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}
