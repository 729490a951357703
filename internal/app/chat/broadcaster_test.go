package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// subscribedConn registers and subscribes a fresh connection for tests that
// exercise delivery.
func subscribedConn(t *testing.T, reg *Registry, oracle *fakeOracle, chatID, userID int64, username string) *Conn {
	t.Helper()
	r := require.New(t)

	oracle.addMember(chatID, userID)
	c := newTestConn(userID, username)
	r.Nil(reg.Register(c))
	_, customErr := reg.Subscribe(context.Background(), c, chatID)
	r.Nil(customErr)
	return c
}

func TestBroadcastReachesEverySubscriber(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	reg := NewRegistry(oracle, 16)
	b := NewBroadcaster(reg)

	alice := subscribedConn(t, reg, oracle, 10, 1, "alice")
	bob := subscribedConn(t, reg, oracle, 10, 2, "bob")
	stranger := subscribedConn(t, reg, oracle, 20, 3, "carol")

	b.Broadcast(10, NewEvent(EventUserJoined, 10, UserEventPayload{UserID: 1, Username: "alice"}))

	for _, c := range []*Conn{alice, bob} {
		ev := recvEvent(t, c)
		r.Equal(EventUserJoined, ev.Type)
		r.Equal(int64(10), ev.ChatID)
	}
	requireNoEvent(t, stranger)
}

func TestBroadcastExceptSkipsAllConnectionsOfUser(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	reg := NewRegistry(oracle, 16)
	b := NewBroadcaster(reg)

	alicePhone := subscribedConn(t, reg, oracle, 10, 1, "alice")
	aliceLaptop := subscribedConn(t, reg, oracle, 10, 1, "alice")
	bob := subscribedConn(t, reg, oracle, 10, 2, "bob")

	b.BroadcastExcept(10, NewEvent(EventTypingStarted, 10, TypingPayload{UserID: 1, Username: "alice"}), 1)

	ev := recvEvent(t, bob)
	r.Equal(EventTypingStarted, ev.Type)
	requireNoEvent(t, alicePhone)
	requireNoEvent(t, aliceLaptop)
}

func TestBroadcastEvictsConnectionWithFullQueue(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	reg := NewRegistry(oracle, 16)
	b := NewBroadcaster(reg)

	evicted := make(chan *Conn, 1)
	var once sync.Once
	b.evict = func(c *Conn) {
		reg.Deregister(c)
		once.Do(func() { evicted <- c })
	}

	healthy := subscribedConn(t, reg, oracle, 10, 1, "alice")
	stuck := subscribedConn(t, reg, oracle, 10, 2, "bob")

	// Saturate the stuck connection's queue so the next delivery fails.
	for stuck.enqueue([]byte("backlog")) {
	}

	b.Broadcast(10, NewEvent(EventPong, 10, nil))

	ev := recvEvent(t, healthy)
	r.Equal(EventPong, ev.Type, "healthy connection delivery must not wait on the stuck one")

	select {
	case c := <-evicted:
		r.Same(stuck, c)
	case <-time.After(2 * time.Second):
		t.Fatal("stuck connection was never evicted")
	}
}

func TestSendToUserHitsEveryConnection(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	reg := NewRegistry(oracle, 16)
	b := NewBroadcaster(reg)

	phone := newTestConn(7, "grace")
	laptop := newTestConn(7, "grace")
	r.Nil(reg.Register(phone))
	r.Nil(reg.Register(laptop))

	b.SendToUser(7, NewEvent(EventPong, 0, nil))

	r.Equal(EventPong, recvEvent(t, phone).Type)
	r.Equal(EventPong, recvEvent(t, laptop).Type)
}
