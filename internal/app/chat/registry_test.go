package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chatrelay/internal/pkg/errs"
)

func TestRegistryCapacityLimit(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	reg := NewRegistry(oracle, 2)

	r.Nil(reg.Register(newTestConn(1, "alice")))
	r.Nil(reg.Register(newTestConn(2, "bob")))

	customErr := reg.Register(newTestConn(3, "carol"))
	r.NotNil(customErr)
	r.Equal(errs.ErrCapacityExceeded, customErr.Code)
	r.Equal(2, reg.ConnectionCount())
}

func TestSubscribeRequiresMembership(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	oracle.addMember(10, 1)
	reg := NewRegistry(oracle, 16)

	member := newTestConn(1, "alice")
	outsider := newTestConn(2, "bob")
	r.Nil(reg.Register(member))
	r.Nil(reg.Register(outsider))

	first, customErr := reg.Subscribe(context.Background(), member, 10)
	r.Nil(customErr)
	r.True(first)

	_, customErr = reg.Subscribe(context.Background(), outsider, 10)
	r.NotNil(customErr)
	r.Equal(errs.ErrNotAMember, customErr.Code)
	r.Len(reg.ConnectionsFor(10), 1, "outsider must not appear among subscribers")
}

func TestSubscribeOracleFailureRejects(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	oracle.addMember(10, 1)
	oracle.failWith(fmt.Errorf("oracle down"))
	reg := NewRegistry(oracle, 16)

	c := newTestConn(1, "alice")
	r.Nil(reg.Register(c))

	_, customErr := reg.Subscribe(context.Background(), c, 10)
	r.NotNil(customErr)
	r.Equal(errs.ErrNotAMember, customErr.Code)
}

func TestSubscribeTracksFirstConnectionPerUser(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	oracle.addMember(10, 1)
	reg := NewRegistry(oracle, 16)

	phone := newTestConn(1, "alice")
	laptop := newTestConn(1, "alice")
	r.Nil(reg.Register(phone))
	r.Nil(reg.Register(laptop))

	first, customErr := reg.Subscribe(context.Background(), phone, 10)
	r.Nil(customErr)
	r.True(first)

	first, customErr = reg.Subscribe(context.Background(), laptop, 10)
	r.Nil(customErr)
	r.False(first, "second connection of the same user is not a join")

	r.False(reg.Unsubscribe(phone, 10), "user still present through the laptop")
	r.True(reg.Unsubscribe(laptop, 10), "last connection out is the user's departure")
}

func TestUnsubscribeUnknownChatIsNoOp(t *testing.T) {
	r := require.New(t)

	reg := NewRegistry(newFakeOracle(), 16)
	c := newTestConn(1, "alice")
	r.Nil(reg.Register(c))

	r.False(reg.Unsubscribe(c, 99))
}

func TestDeregisterReportsDepartedChats(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	oracle.addMember(10, 1)
	oracle.addMember(20, 1)
	reg := NewRegistry(oracle, 16)

	c := newTestConn(1, "alice")
	r.Nil(reg.Register(c))
	_, customErr := reg.Subscribe(context.Background(), c, 10)
	r.Nil(customErr)
	_, customErr = reg.Subscribe(context.Background(), c, 20)
	r.Nil(customErr)

	departed := reg.Deregister(c)
	r.ElementsMatch([]int64{10, 20}, departed)
	r.Equal(0, reg.ConnectionCount())
	r.Empty(reg.ConnectionsFor(10))

	r.False(c.enqueue([]byte("x")), "send queue must be closed after deregistration")
	r.Nil(reg.Deregister(c), "second deregistration reports nothing")
}

func TestSubscribeAfterDeregisterLeavesNoTrace(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	oracle.addMember(10, 1)
	reg := NewRegistry(oracle, 16)

	c := newTestConn(1, "alice")
	r.Nil(reg.Register(c))
	r.Empty(reg.Deregister(c))

	// A join that loses the race against teardown must not re-insert the
	// dead connection into the chat's live channel.
	_, customErr := reg.Subscribe(context.Background(), c, 10)
	r.NotNil(customErr)
	r.Equal(errs.ErrNotAMember, customErr.Code)

	r.Empty(reg.ConnectionsFor(10))
	r.Empty(c.subscriptions())
	r.Nil(reg.Deregister(c))
}

func TestOnlineUsersDeduplicatesConnections(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	oracle.addMember(10, 1)
	oracle.addMember(10, 2)
	reg := NewRegistry(oracle, 16)

	alicePhone := newTestConn(1, "alice")
	aliceLaptop := newTestConn(1, "alice")
	bob := newTestConn(2, "bob")
	for _, c := range []*Conn{alicePhone, aliceLaptop, bob} {
		r.Nil(reg.Register(c))
		_, customErr := reg.Subscribe(context.Background(), c, 10)
		r.Nil(customErr)
	}

	r.ElementsMatch([]int64{1, 2}, reg.OnlineUsersIn(10))
	r.Equal(2, reg.OnlineUserCount())
	r.True(reg.IsUserOnline(1))
	r.False(reg.IsUserOnline(3))
	r.Len(reg.ConnectionsOf(1), 2)
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	reg := NewRegistry(oracle, 1024)

	const users = 16
	const chats = 8
	for u := int64(1); u <= users; u++ {
		for c := int64(1); c <= chats; c++ {
			oracle.addMember(c, u)
		}
	}

	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := newTestConn(userID, fmt.Sprintf("user-%d", userID))
			if customErr := reg.Register(c); customErr != nil {
				t.Errorf("register failed: %v", customErr)
				return
			}
			for chatID := int64(1); chatID <= chats; chatID++ {
				if _, customErr := reg.Subscribe(context.Background(), c, chatID); customErr != nil {
					t.Errorf("subscribe failed: %v", customErr)
				}
			}
			for chatID := int64(1); chatID <= chats/2; chatID++ {
				reg.Unsubscribe(c, chatID)
			}
			reg.Deregister(c)
		}(u)
	}
	wg.Wait()

	r.Equal(0, reg.ConnectionCount())
	for chatID := int64(1); chatID <= chats; chatID++ {
		r.Empty(reg.ConnectionsFor(chatID))
	}
}

func TestRegistryShutdownClosesEverything(t *testing.T) {
	r := require.New(t)

	oracle := newFakeOracle()
	oracle.addMember(10, 1)
	reg := NewRegistry(oracle, 16)

	c1 := newTestConn(1, "alice")
	c2 := newTestConn(2, "bob")
	r.Nil(reg.Register(c1))
	r.Nil(reg.Register(c2))
	_, customErr := reg.Subscribe(context.Background(), c1, 10)
	r.Nil(customErr)

	reg.Shutdown()

	r.Equal(0, reg.ConnectionCount())
	r.False(c1.enqueue([]byte("x")))
	r.False(c2.enqueue([]byte("x")))
}
