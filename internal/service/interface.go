package service

import (
	"context"

	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/internal/poll"
	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/internal/room"
)

type RelayService interface {
	HandleCreatePoll(ctx context.Context, s hub.Session, msg *protocol.ClientCreatePoll) error
	HandlePollProgress(ctx context.Context, s hub.Session, msg *protocol.ClientPollProgress) error
	HandlePollFinished(ctx context.Context, s hub.Session, msg *protocol.ClientPollFinished) error
	HandleCreateReward(ctx context.Context, s hub.Session, msg *protocol.ClientCreateReward) error
	HandleDeleteReward(ctx context.Context, s hub.Session, msg *protocol.ClientDeleteReward) error
	HandleUpdateRewards(ctx context.Context, s hub.Session, msg *protocol.ClientUpdateRewards) error
	HandleRewardRedeemed(ctx context.Context, s hub.Session, msg *protocol.RewardRedeemed) error
	OnPollFinalized(ctx context.Context, result poll.Result)

	Stats() Stats
	Room(roomID string) (room.Snapshot, bool)
	Poll(pollID string) (poll.Snapshot, bool)

	Start(ctx context.Context) error
	Stop() error
}

// Stats is a point-in-time summary of relay state.
type Stats struct {
	Rooms          int `json:"rooms"`
	Connections    int `json:"connections"`
	Mailboxes      int `json:"mailboxes"`
	ActivePolls    int `json:"active_polls"`
	FinalizedPolls int `json:"finalized_polls"`
}

// Exporter receives relay outcomes for the external event bus.
type Exporter interface {
	PollCreated(ctx context.Context, roomID, contributorID string, p protocol.Poll)
	PollFinished(ctx context.Context, result poll.Result)
	RewardRedeemed(ctx context.Context, roomID string, msg *protocol.RewardRedeemed)
	RewardsSynced(ctx context.Context, roomID string, count int)
}
