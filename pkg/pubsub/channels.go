package pubsub

import "fmt"

// Channel naming for relay exports. Every channel is scoped to one room so
// consumers can subscribe per room (Redis) or key by room (Kafka).
const (
	ChannelRoomPolls   = "relay:room:%s:polls"
	ChannelRoomRewards = "relay:room:%s:rewards"
)

// Event types written to the poll channel.
const (
	EventPollCreated  = "poll_created"
	EventPollFinished = "poll_finished"
)

// Event types written to the reward channel.
const (
	EventRewardRedeemed = "reward_redeemed"
	EventRewardsSynced  = "rewards_synced"
)

// RoomPollsChannel returns the poll export channel for a room.
func RoomPollsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomPolls, roomID)
}

// RoomRewardsChannel returns the reward export channel for a room.
func RoomRewardsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomRewards, roomID)
}

// PollFinishedPayload carries the final aggregate of a poll.
type PollFinishedPayload struct {
	PollID string         `json:"poll_id"`
	Title  string         `json:"title"`
	Votes  map[string]int `json:"votes"`
}

// PollCreatedPayload announces a poll and who opened it.
type PollCreatedPayload struct {
	PollID      string `json:"poll_id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	DurationSec int    `json:"duration_sec"`
}

// RewardRedeemedPayload mirrors a redemption relayed to the room.
type RewardRedeemedPayload struct {
	RedemptionID string `json:"redemption_id"`
	RewardID     string `json:"reward_id"`
	Channel      string `json:"channel"`
	UserID       string `json:"user_id"`
	UserName     string `json:"user_name"`
	Input        string `json:"input,omitempty"`
}

// RewardsSyncedPayload records the catalog size after a mutation.
type RewardsSyncedPayload struct {
	Count int `json:"count"`
}
