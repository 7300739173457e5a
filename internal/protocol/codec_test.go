package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessages(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, msg Message)
	}{
		{
			name:  "create poll",
			input: `{"type":"CLIENT_CREATE_POLL","channel":"chanA","poll":{"id":"p1","title":"Coin","points":10,"duration":15,"choices":[{"id":"heads","title":"Heads"},{"id":"tails","title":"Tails"}]}}`,
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(*ClientCreatePoll)
				require.True(t, ok)
				assert.Equal(t, "chanA", m.Channel)
				assert.Equal(t, "p1", m.Poll.ID)
				assert.Equal(t, 15, m.Poll.Duration)
				require.NotNil(t, m.Poll.Points)
				assert.Equal(t, 10, *m.Poll.Points)
				assert.Len(t, m.Poll.Choices, 2)
			},
		},
		{
			name:  "poll progress",
			input: `{"type":"CLIENT_POLL_PROGRESS","id":"p1","channel":"chanA","votes":{"heads":3,"tails":1}}`,
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(*ClientPollProgress)
				require.True(t, ok)
				assert.Equal(t, Votes{"heads": 3, "tails": 1}, m.Votes)
			},
		},
		{
			name:  "poll finished",
			input: `{"type":"CLIENT_POLL_FINISHED","id":"p1","channel":"chanB","votes":{"tails":5}}`,
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(*ClientPollFinished)
				require.True(t, ok)
				assert.Equal(t, "chanB", m.Channel)
				assert.Equal(t, 5, m.Votes["tails"])
			},
		},
		{
			name:  "create reward",
			input: `{"type":"CLIENT_CREATE_REWARD","channel":"chanA","reward":{"id":"r1","title":"Hydrate","cost":100,"cooldown":60,"color":"#00FF00"}}`,
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(*ClientCreateReward)
				require.True(t, ok)
				assert.Equal(t, "r1", m.Reward.ID)
				assert.Equal(t, 100, m.Reward.Cost)
				require.NotNil(t, m.Reward.Cooldown)
				assert.Equal(t, 60, *m.Reward.Cooldown)
				assert.Nil(t, m.Reward.LimitPerUser)
			},
		},
		{
			name:  "delete reward",
			input: `{"type":"CLIENT_DELETE_REWARD","reward":"r1","channel":"chanA"}`,
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(*ClientDeleteReward)
				require.True(t, ok)
				assert.Equal(t, "r1", m.Reward)
			},
		},
		{
			name:  "update rewards",
			input: `{"type":"CLIENT_UPDATE_REWARDS","channel":"chanA","rewards":[{"id":"a","title":"X","cost":100}]}`,
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(*ClientUpdateRewards)
				require.True(t, ok)
				require.Len(t, m.Rewards, 1)
				assert.Equal(t, "a", m.Rewards[0].ID)
			},
		},
		{
			name:  "reward redeemed",
			input: `{"type":"REWARD_REDEEMED","id":"x1","reward":"r1","userId":"u1","channel":"chanA","userName":"viewer","input":"hi"}`,
			check: func(t *testing.T, msg Message) {
				m, ok := msg.(*RewardRedeemed)
				require.True(t, ok)
				assert.Equal(t, "viewer", m.UserName)
				assert.Equal(t, "hi", m.Input)
			},
		},
		{
			name:  "unknown fields are ignored",
			input: `{"type":"CLIENT_DELETE_REWARD","reward":"r1","channel":"chanA","extra":true}`,
			check: func(t *testing.T, msg Message) {
				assert.IsType(t, &ClientDeleteReward{}, msg)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

func TestDecodeUnrecognized(t *testing.T) {
	for _, input := range []string{`{"type":"SOMETHING_ELSE"}`, `{}`, `{"votes":{}}`} {
		msg, err := Decode([]byte(input))
		require.NoError(t, err, input)
		u, ok := msg.(*Unrecognized)
		require.True(t, ok, input)
		assert.Equal(t, u.Type, msg.MessageType())
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, input := range []string{
		`not json`,
		`[1,2,3]`,
		`{"type":"CLIENT_POLL_PROGRESS","votes":{"heads":"three"}}`,
		`{"type":"CLIENT_CREATE_POLL","poll":"p1"}`,
	} {
		_, err := Decode([]byte(input))
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrMalformed), input)
	}
}

func TestEncodeSetsDiscriminator(t *testing.T) {
	tests := []struct {
		msg  Message
		want MessageType
	}{
		{NewServerPollCreate(Poll{ID: "p1", Duration: 15}), TypeServerPollCreate},
		{NewServerPollUpdate("p1", Votes{"heads": 3}), TypeServerPollUpdate},
		{NewServerPollFinished("p1", Votes{"heads": 3}), TypeServerPollFinished},
		{NewServerRewardSync(nil), TypeServerRewardSync},
		{NewServerRoomMembersSync(nil), TypeServerRoomMembersSync},
		{NewServerValidationError(TypeClientUpdateRewards, "too many"), TypeServerValidationError},
		{&RewardRedeemed{ID: "x"}, TypeRewardRedeemed},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)

			var base BaseMessage
			require.NoError(t, json.Unmarshal(data, &base))
			assert.Equal(t, tt.want, base.Type)

			back, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, back.MessageType())
		})
	}
}

func TestEncodeEmptyCollections(t *testing.T) {
	data, err := Encode(NewServerRewardSync(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SERVER_REWARD_SYNC","rewards":[]}`, string(data))

	data, err = Encode(NewServerRoomMembersSync(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"SERVER_ROOM_MEMBERS_SYNC","members":[]}`, string(data))
}

func TestEncodeUnrecognized(t *testing.T) {
	_, err := Encode(&Unrecognized{Type: "X"})
	require.Error(t, err)
}

func TestRewardValid(t *testing.T) {
	assert.True(t, Reward{ID: "a", Title: "X"}.Valid())
	assert.False(t, Reward{ID: " ", Title: "X"}.Valid())
	assert.False(t, Reward{ID: "a", Title: ""}.Valid())
}
