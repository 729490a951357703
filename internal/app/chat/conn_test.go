package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnqueueAfterCloseIsRejected(t *testing.T) {
	r := require.New(t)

	c := newTestConn(1, "alice")
	r.True(c.enqueue([]byte("a")))

	c.closeSend()
	r.False(c.enqueue([]byte("b")))

	// Closing twice must not panic.
	c.closeSend()
}

func TestEnqueueRejectsWhenQueueFull(t *testing.T) {
	r := require.New(t)

	c := newTestConn(1, "alice")
	for i := 0; i < sendQueueSize; i++ {
		r.True(c.enqueue([]byte("x")))
	}
	r.False(c.enqueue([]byte("overflow")))

	// Draining one slot makes room again.
	<-c.send
	r.True(c.enqueue([]byte("fits")))
}

func TestSubscriptionBookkeeping(t *testing.T) {
	r := require.New(t)

	c := newTestConn(1, "alice")
	r.Empty(c.subscriptions())
	r.False(c.isSubscribed(10))

	c.addSubscription(10)
	c.addSubscription(20)
	r.ElementsMatch([]int64{10, 20}, c.subscriptions())
	r.True(c.isSubscribed(10))

	c.removeSubscription(10)
	r.ElementsMatch([]int64{20}, c.subscriptions())
	r.False(c.isSubscribed(10))
}

func TestActivityTimestamps(t *testing.T) {
	r := require.New(t)

	before := time.Now()
	c := newTestConn(1, "alice")
	after := time.Now()

	r.False(c.ConnectedAt().Before(before.Truncate(time.Millisecond)))
	r.False(c.ConnectedAt().After(after))

	// A fresh connection counts as active at connect time.
	r.Equal(c.ConnectedAt().UnixMilli(), c.LastActiveAt().UnixMilli())

	later := time.Now().Add(time.Minute)
	c.lastActive.Store(later.UnixMilli())
	r.Equal(later.UnixMilli(), c.LastActiveAt().UnixMilli())
}
