package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/internal/protocol"
)

type sentFrame struct {
	clientID string
	frame    []byte
}

type mockSender struct {
	mu   sync.Mutex
	sent []sentFrame
	fail map[string]bool
}

func (s *mockSender) Send(clientID string, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[clientID] {
		return errors.New("send failed")
	}
	s.sent = append(s.sent, sentFrame{clientID: clientID, frame: frame})
	return nil
}

// to returns the decoded messages delivered to clientID.
func (s *mockSender) to(t *testing.T, clientID string) []protocol.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Message
	for _, f := range s.sent {
		if f.clientID != clientID {
			continue
		}
		msg, err := protocol.Decode(f.frame)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func (s *mockSender) reset() {
	s.mu.Lock()
	s.sent = nil
	s.mu.Unlock()
}

func session(clientID, contributorID, roomID string) hub.Session {
	return hub.Session{ClientID: clientID, ContributorID: contributorID, RoomID: roomID}
}

func lastMembers(t *testing.T, msgs []protocol.Message) []string {
	t.Helper()
	for i := len(msgs) - 1; i >= 0; i-- {
		if m, ok := msgs[i].(*protocol.ServerRoomMembersSync); ok {
			return m.Members
		}
	}
	t.Fatal("no members sync delivered")
	return nil
}

func TestConnectedBroadcastsSortedMembers(t *testing.T) {
	sender := &mockSender{}
	d := NewDirectory(sender, nil)
	ctx := context.Background()

	d.OnConnected(ctx, session("c1", "chanB", "r1"))
	d.OnConnected(ctx, session("c2", "chanA", "r1"))

	assert.Equal(t, []string{"chanB"}, lastMembers(t, sender.to(t, "c1")[:1]))
	assert.Equal(t, []string{"chanA", "chanB"}, lastMembers(t, sender.to(t, "c1")))
	assert.Equal(t, []string{"chanA", "chanB"}, lastMembers(t, sender.to(t, "c2")))

	r := d.Get("r1")
	require.NotNil(t, r)
	assert.Equal(t, []string{"c1", "c2"}, r.Clients())
}

func TestJoinIsIdempotent(t *testing.T) {
	d := NewDirectory(&mockSender{}, nil)
	s := session("c1", "chanA", "r1")

	d.Join(s)
	d.Join(s)

	r := d.Get("r1")
	assert.Equal(t, []string{"chanA"}, r.Members())
	assert.Equal(t, []string{"c1"}, r.Clients())
	assert.Equal(t, 1, d.Len())
}

func TestDisconnectedKeepsDeliveryTarget(t *testing.T) {
	sender := &mockSender{}
	d := NewDirectory(sender, nil)
	ctx := context.Background()
	a := session("c1", "chanA", "r1")
	b := session("c2", "chanB", "r1")
	d.OnConnected(ctx, a)
	d.OnConnected(ctx, b)
	sender.reset()

	d.OnDisconnected(ctx, b)

	r := d.Get("r1")
	assert.Equal(t, []string{"chanA"}, r.Members())
	assert.True(t, r.HasClient("c2"))
	// The offline client still receives the sync into its mailbox.
	assert.Equal(t, []string{"chanA"}, lastMembers(t, sender.to(t, "c2")))
	assert.Equal(t, []string{"chanA"}, lastMembers(t, sender.to(t, "c1")))

	d.OnDisconnected(ctx, b)
	assert.Equal(t, []string{"chanA"}, r.Members())
}

func TestRemoveClient(t *testing.T) {
	sender := &mockSender{}
	d := NewDirectory(sender, nil)
	d.Join(session("c1", "chanA", "r1"))
	d.Join(session("c2", "chanB", "r1"))

	d.RemoveClient("c2")
	d.RemoveClient("unknown")

	require.NoError(t, d.Broadcast(context.Background(), "r1", protocol.NewServerRewardSync(nil)))
	assert.Len(t, sender.to(t, "c1"), 1)
	assert.Empty(t, sender.to(t, "c2"))
}

func TestJoinMovesClientBetweenRooms(t *testing.T) {
	sender := &mockSender{}
	d := NewDirectory(sender, nil)
	ctx := context.Background()
	d.OnConnected(ctx, session("c1", "chanA", "r1"))
	d.OnConnected(ctx, session("c2", "chanB", "r1"))
	sender.reset()

	d.OnConnected(ctx, session("c1", "chanA", "r2"))

	r1 := d.Get("r1")
	r2 := d.Get("r2")
	assert.Equal(t, []string{"chanB"}, r1.Members())
	assert.Equal(t, []string{"c2"}, r1.Clients())
	assert.Equal(t, []string{"chanA"}, r2.Members())
	assert.Equal(t, []string{"chanB"}, lastMembers(t, sender.to(t, "c2")))
	assert.Equal(t, []string{"chanA"}, lastMembers(t, sender.to(t, "c1")))
}

func TestBroadcastUnknownRoomIsNoop(t *testing.T) {
	sender := &mockSender{}
	d := NewDirectory(sender, nil)

	require.NoError(t, d.Broadcast(context.Background(), "nope", protocol.NewServerRewardSync(nil)))
	assert.Nil(t, d.Get("nope"))
	assert.Empty(t, sender.sent)
}

func TestBroadcastContinuesPastFailedTarget(t *testing.T) {
	sender := &mockSender{fail: map[string]bool{"c1": true}}
	d := NewDirectory(sender, nil)
	d.Join(session("c1", "chanA", "r1"))
	d.Join(session("c2", "chanB", "r1"))

	require.NoError(t, d.Broadcast(context.Background(), "r1", protocol.NewServerPollUpdate("p1", protocol.Votes{"heads": 1})))
	assert.Len(t, sender.to(t, "c2"), 1)
}

func TestSendEncodesOnce(t *testing.T) {
	sender := &mockSender{}
	d := NewDirectory(sender, nil)

	require.NoError(t, d.Send(context.Background(), "c9", protocol.NewServerValidationError(protocol.TypeClientCreateReward, "bad")))
	require.Len(t, sender.sent, 1)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(sender.sent[0].frame, &raw))
	assert.Equal(t, "SERVER_VALIDATION_ERROR", raw["type"])
	assert.Equal(t, "CLIENT_CREATE_REWARD", raw["request"])
}

func TestRoomIDs(t *testing.T) {
	d := NewDirectory(&mockSender{}, nil)
	d.Join(session("c1", "a", "zeta"))
	d.Join(session("c2", "b", "alpha"))
	assert.Equal(t, []string{"alpha", "zeta"}, d.RoomIDs())
}
