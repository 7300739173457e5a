package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelToTopicAndKey(t *testing.T) {
	tests := []struct {
		channel   string
		wantTopic string
		wantKey   string
		wantErr   bool
	}{
		{channel: RoomPollsChannel("room1"), wantTopic: "relay-polls", wantKey: "room1"},
		{channel: RoomRewardsChannel("abc"), wantTopic: "relay-rewards", wantKey: "abc"},
		{channel: "relay:room:x:to_media", wantTopic: "relay-to-media", wantKey: "x"},
		{channel: "relay:room::polls", wantErr: true},
		{channel: "relay:rooms:x:polls", wantErr: true},
		{channel: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			topic, key, err := channelToTopicAndKey(tt.channel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTopic, topic)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	evt, err := NewEvent(EventPollFinished, "room1", PollFinishedPayload{
		PollID: "p1",
		Votes:  map[string]int{"heads": 3},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "room1", evt.RoomID)
	assert.Equal(t, now, evt.Timestamp)

	var payload PollFinishedPayload
	require.NoError(t, evt.UnmarshalPayload(&payload))
	assert.Equal(t, "p1", payload.PollID)
	assert.Equal(t, 3, payload.Votes["heads"])
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(Config{Driver: DriverNone})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), "x", &Event{}))

	p, err = NewPublisher(Config{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, p)

	_, err = NewPublisher(Config{Driver: "carrier-pigeon"})
	require.Error(t, err)
}

func TestRedisPublisher(t *testing.T) {
	m := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	cfg.Driver = DriverRedis
	cfg.Redis.Address = m.Addr()
	p, err := NewPublisher(cfg)
	require.NoError(t, err)
	defer p.Close()

	sub := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, RoomPollsChannel("room1"))
	defer ps.Close()
	_, err = ps.Receive(ctx)
	require.NoError(t, err)

	evt, err := NewEvent(EventPollFinished, "room1", PollFinishedPayload{PollID: "p1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, RoomPollsChannel("room1"), evt))

	select {
	case msg := <-ps.Channel():
		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, EventPollFinished, got.Type)
		assert.Equal(t, "room1", got.RoomID)
	case <-ctx.Done():
		t.Fatal("timeout waiting for published event")
	}
}

func TestRedisPublisherUnreachable(t *testing.T) {
	m := miniredis.RunT(t)
	addr := m.Addr()
	m.Close()

	_, err := NewRedisPublisher(RedisConfig{Address: addr})
	require.Error(t, err)
}
