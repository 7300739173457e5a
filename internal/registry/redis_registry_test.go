package registry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/ttv-relay/internal/config"
	"github.com/weiawesome/ttv-relay/internal/hub"
)

func newTestRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedisRegistry(config.RegistryConfig{
		Address:           mr.Addr(),
		Prefix:            "relay:registry",
		HeartbeatInterval: 10 * time.Millisecond,
		KeyTTL:            30 * time.Second,
	}, "relay-1")
	require.NoError(t, err)
	return r, mr
}

func TestRegisterAdvertisesInstance(t *testing.T) {
	r, mr := newTestRegistry(t)
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "r1"))
	got, err := mr.Get("relay:registry:room:r1")
	require.NoError(t, err)
	assert.Equal(t, "relay-1", got)
	assert.Equal(t, 30*time.Second, mr.TTL("relay:registry:room:r1"))

	// A known room is not written again.
	mr.Del("relay:registry:room:r1")
	require.NoError(t, r.Register(ctx, "r1"))
	assert.False(t, mr.Exists("relay:registry:room:r1"))
	assert.False(t, mr.Exists("relay:registry:room:other"))
}

func TestHeartbeatRefreshesTTL(t *testing.T) {
	r, mr := newTestRegistry(t)
	defer r.Close()
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "r1"))
	require.NoError(t, r.StartHeartbeat(ctx))

	mr.FastForward(20 * time.Second)
	require.Eventually(t, func() bool {
		return mr.TTL("relay:registry:room:r1") == 30*time.Second
	}, time.Second, 5*time.Millisecond)

	r.StopHeartbeat()
	r.StopHeartbeat()
}

func TestCloseWithdrawsRooms(t *testing.T) {
	r, mr := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, "r1"))
	require.NoError(t, r.Register(ctx, "r2"))
	require.NoError(t, r.StartHeartbeat(ctx))

	require.NoError(t, r.Close())
	assert.False(t, mr.Exists("relay:registry:room:r1"))
	assert.False(t, mr.Exists("relay:registry:room:r2"))
}

func TestListenerRegistersRoomOnConnect(t *testing.T) {
	r, mr := newTestRegistry(t)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(r, time.Second)
	go l.Run(ctx)
	defer func() {
		cancel()
		<-l.Done()
	}()

	s := hub.Session{ClientID: "c1", ContributorID: "chanA", RoomID: "r7"}
	l.OnConnected(context.Background(), s)
	l.OnDisconnected(context.Background(), s)

	require.Eventually(t, func() bool {
		got, err := mr.Get("relay:registry:room:r7")
		return err == nil && got == "relay-1"
	}, time.Second, 5*time.Millisecond)
}

// stallingRegistry blocks every Register until its context ends.
type stallingRegistry struct {
	Noop
	calls       chan string
	hadDeadline atomic.Bool
}

func (s *stallingRegistry) Register(ctx context.Context, roomID string) error {
	_, ok := ctx.Deadline()
	s.hadDeadline.Store(ok)
	<-ctx.Done()
	s.calls <- roomID
	return ctx.Err()
}

func TestListenerDoesNotBlockOnSlowRegistry(t *testing.T) {
	reg := &stallingRegistry{calls: make(chan string, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(reg, 20*time.Millisecond)
	go l.Run(ctx)
	defer func() {
		cancel()
		<-l.Done()
	}()

	start := time.Now()
	for _, roomID := range []string{"r1", "r2"} {
		l.OnConnected(context.Background(), hub.Session{ClientID: "c-" + roomID, RoomID: roomID})
	}
	assert.Less(t, time.Since(start), 20*time.Millisecond)

	for _, want := range []string{"r1", "r2"} {
		select {
		case got := <-reg.calls:
			assert.Equal(t, want, got)
		case <-time.After(time.Second):
			t.Fatalf("registration of %s did not time out", want)
		}
	}
	assert.True(t, reg.hadDeadline.Load())
}

func TestListenerDropsWhenQueueFull(t *testing.T) {
	l := NewListener(Noop{}, 0)
	assert.Equal(t, DefaultRegisterTimeout, l.timeout)

	for i := 0; i < listenerQueueSize+10; i++ {
		l.OnConnected(context.Background(), hub.Session{ClientID: "c", RoomID: "r1"})
	}
	assert.Len(t, l.queue, listenerQueueSize)
}

func TestNewRedisRegistryUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisRegistry(config.RegistryConfig{Address: addr, Prefix: "p"}, "relay-1")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var r Registry = Noop{}
	ctx := context.Background()
	assert.NoError(t, r.Register(ctx, "r1"))
	assert.NoError(t, r.StartHeartbeat(ctx))
	r.StopHeartbeat()
	assert.NoError(t, r.Close())
}
