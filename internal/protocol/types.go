// Package protocol defines the relay wire envelope: a JSON object whose
// "type" field selects one of a closed set of payload shapes.
package protocol

import "strings"

// MessageType is the envelope discriminator.
type MessageType string

// Client -> Server messages.
const (
	TypeClientCreatePoll    MessageType = "CLIENT_CREATE_POLL"
	TypeClientPollProgress  MessageType = "CLIENT_POLL_PROGRESS"
	TypeClientPollFinished  MessageType = "CLIENT_POLL_FINISHED"
	TypeClientCreateReward  MessageType = "CLIENT_CREATE_REWARD"
	TypeClientDeleteReward  MessageType = "CLIENT_DELETE_REWARD"
	TypeClientUpdateRewards MessageType = "CLIENT_UPDATE_REWARDS"
)

// Server -> Client messages.
const (
	TypeServerPollCreate      MessageType = "SERVER_POLL_CREATE"
	TypeServerPollUpdate      MessageType = "SERVER_POLL_UPDATE"
	TypeServerPollFinished    MessageType = "SERVER_POLL_FINISHED"
	TypeServerRewardSync      MessageType = "SERVER_REWARD_SYNC"
	TypeServerRoomMembersSync MessageType = "SERVER_ROOM_MEMBERS_SYNC"
	TypeServerValidationError MessageType = "SERVER_VALIDATION_ERROR"
)

// TypeRewardRedeemed travels both ways: a client reports it and the relay
// re-broadcasts it unchanged to the room.
const TypeRewardRedeemed MessageType = "REWARD_REDEEMED"

// Choice is one option of a poll.
type Choice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Poll is the poll definition as created on the streaming platform.
type Poll struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Points   *int     `json:"points,omitempty"`
	Duration int      `json:"duration"`
	Choices  []Choice `json:"choices"`
}

// Reward is a channel-point reward. Catalog membership is by ID.
type Reward struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Cost           int    `json:"cost"`
	Prompt         string `json:"prompt,omitempty"`
	Color          string `json:"color,omitempty"`
	LimitPerStream *int   `json:"limitPerStream,omitempty"`
	LimitPerUser   *int   `json:"limitPerUser,omitempty"`
	Cooldown       *int   `json:"cooldown,omitempty"`
}

// Valid reports whether the reward carries a non-blank id and title.
func (r Reward) Valid() bool {
	return strings.TrimSpace(r.ID) != "" && strings.TrimSpace(r.Title) != ""
}

// Votes maps a choice id to its vote count.
type Votes map[string]int

// Clone returns a copy that does not share storage with v.
func (v Votes) Clone() Votes {
	out := make(Votes, len(v))
	for k, n := range v {
		out[k] = n
	}
	return out
}
