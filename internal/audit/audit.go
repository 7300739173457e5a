package audit

import (
	"context"

	"github.com/weiawesome/ttv-relay/pkg/log"
)

// Audit actions for the relay.
const (
	ActionConnect        = "relay.connect"
	ActionDisconnect     = "relay.disconnect"
	ActionPollCreate     = "poll.create"
	ActionPollFinalize   = "poll.finalize"
	ActionRewardCreate   = "reward.create"
	ActionRewardDelete   = "reward.delete"
	ActionRewardsReplace = "reward.replace"
	ActionRewardRedeem   = "reward.redeem"
	ActionRejected       = "request.rejected"
)

const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Entry describes one audited relay action. Empty fields are left out of
// the log line. RoomID is only needed when ctx carries no session.
type Entry struct {
	Action   string
	RoomID   string
	PollID   string
	RewardID string
	Detail   string
}

// Log emits e through the context logger.
func Log(ctx context.Context, e Entry, msg string) {
	l := log.Ctx(ctx)
	ev := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, e.Action)
	if e.RoomID != "" {
		ev = ev.Str(log.FieldRoomID, e.RoomID)
	}
	if e.PollID != "" {
		ev = ev.Str(log.FieldPollID, e.PollID)
	}
	if e.RewardID != "" {
		ev = ev.Str(log.FieldRewardID, e.RewardID)
	}
	if e.Detail != "" {
		ev = ev.Str(FieldDetail, e.Detail)
	}
	ev.Msg(msg)
}

func Poll(ctx context.Context, action, pollID, detail, msg string) {
	Log(ctx, Entry{Action: action, PollID: pollID, Detail: detail}, msg)
}

func Reward(ctx context.Context, action, rewardID, detail, msg string) {
	Log(ctx, Entry{Action: action, RewardID: rewardID, Detail: detail}, msg)
}
