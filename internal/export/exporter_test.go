package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/ttv-relay/internal/poll"
	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/pkg/pubsub"
)

type published struct {
	channel string
	event   *pubsub.Event
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	closed bool
}

func (p *mockPublisher) Publish(_ context.Context, channel string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{channel: channel, event: event})
	return nil
}

func (p *mockPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *mockPublisher) get() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func startExporter(t *testing.T, pub pubsub.Publisher, cfg Config) *Exporter {
	t.Helper()
	e := New(pub, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})
	return e
}

func TestExportEvents(t *testing.T) {
	pub := &mockPublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	e := startExporter(t, pub, Config{Clock: clock})
	ctx := context.Background()

	e.PollCreated(ctx, "r1", "chanA", protocol.Poll{ID: "p1", Title: "Coin", Duration: 15})
	e.PollFinished(ctx, poll.Result{PollID: "p1", RoomID: "r1", Title: "Coin", Votes: protocol.Votes{"heads": 3, "tails": 6}})
	e.RewardRedeemed(ctx, "r1", &protocol.RewardRedeemed{ID: "x1", Reward: "a", UserID: "u1", Channel: "chanA", UserName: "viewer"})
	e.RewardsSynced(ctx, "r1", 4)

	require.Eventually(t, func() bool { return len(pub.get()) == 4 }, time.Second, 5*time.Millisecond)
	events := pub.get()

	assert.Equal(t, "relay:room:r1:polls", events[0].channel)
	assert.Equal(t, pubsub.EventPollCreated, events[0].event.Type)
	assert.Equal(t, clock.Now(), events[0].event.Timestamp)

	var finished pubsub.PollFinishedPayload
	require.NoError(t, events[1].event.UnmarshalPayload(&finished))
	assert.Equal(t, map[string]int{"heads": 3, "tails": 6}, finished.Votes)

	assert.Equal(t, "relay:room:r1:rewards", events[2].channel)
	var redeemed pubsub.RewardRedeemedPayload
	require.NoError(t, events[2].event.UnmarshalPayload(&redeemed))
	assert.Equal(t, "viewer", redeemed.UserName)

	var synced pubsub.RewardsSyncedPayload
	require.NoError(t, events[3].event.UnmarshalPayload(&synced))
	assert.Equal(t, 4, synced.Count)
}

func TestQueueFullDrops(t *testing.T) {
	pub := &mockPublisher{}
	reg := prometheus.NewRegistry()
	// Not running: nothing drains the queue.
	e := New(pub, Config{QueueSize: 1, PromRegistry: reg})

	e.RewardsSynced(context.Background(), "r1", 1)
	e.RewardsSynced(context.Background(), "r1", 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.events.WithLabelValues("dropped")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))

	// The queued event is drained on shutdown and the publisher closed.
	assert.Len(t, pub.get(), 1)
	assert.True(t, pub.closed)
}

func TestPublishFailureIsCounted(t *testing.T) {
	pub := &mockPublisher{err: errors.New("bus down")}
	e := startExporter(t, pub, Config{PromRegistry: prometheus.NewRegistry()})

	e.RewardsSynced(context.Background(), "r1", 1)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(e.metrics.events.WithLabelValues("failed")) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestExportThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := pubsub.DefaultConfig()
	cfg.Driver = pubsub.DriverRedis
	cfg.Redis.Address = mr.Addr()
	pub, err := pubsub.NewPublisher(cfg)
	require.NoError(t, err)

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(context.Background(), pubsub.RoomPollsChannel("r1"))
	defer ps.Close()
	_, err = ps.Receive(context.Background())
	require.NoError(t, err)

	e := startExporter(t, pub, Config{})
	e.PollFinished(context.Background(), poll.Result{PollID: "p1", RoomID: "r1", Votes: protocol.Votes{"heads": 1}})

	select {
	case msg := <-ps.Channel():
		assert.Contains(t, msg.Payload, `"type":"poll_finished"`)
		assert.Contains(t, msg.Payload, `"poll_id":"p1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}
