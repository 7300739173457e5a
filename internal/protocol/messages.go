package protocol

// Message is implemented by every payload shape of the envelope.
// The set is closed: only types in this package implement it.
type Message interface {
	MessageType() MessageType
	isMessage()
}

// BaseMessage is decoded first to read the discriminator.
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// Client -> Server

type ClientCreatePoll struct {
	Type    MessageType `json:"type"`
	Poll    Poll        `json:"poll"`
	Channel string      `json:"channel"`
}

type ClientPollProgress struct {
	Type    MessageType `json:"type"`
	ID      string      `json:"id"`
	Channel string      `json:"channel"`
	Votes   Votes       `json:"votes"`
}

type ClientPollFinished struct {
	Type    MessageType `json:"type"`
	ID      string      `json:"id"`
	Channel string      `json:"channel"`
	Votes   Votes       `json:"votes"`
}

type ClientCreateReward struct {
	Type    MessageType `json:"type"`
	Channel string      `json:"channel"`
	Reward  Reward      `json:"reward"`
}

// ClientDeleteReward carries the id of the reward to delete in Reward.
type ClientDeleteReward struct {
	Type    MessageType `json:"type"`
	Reward  string      `json:"reward"`
	Channel string      `json:"channel"`
}

type ClientUpdateRewards struct {
	Type    MessageType `json:"type"`
	Channel string      `json:"channel"`
	Rewards []Reward    `json:"rewards"`
}

// RewardRedeemed reports a redemption; Reward is the reward id.
type RewardRedeemed struct {
	Type     MessageType `json:"type"`
	ID       string      `json:"id"`
	Reward   string      `json:"reward"`
	UserID   string      `json:"userId"`
	Channel  string      `json:"channel"`
	UserName string      `json:"userName"`
	Input    string      `json:"input,omitempty"`
}

// Server -> Client

type ServerPollCreate struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`
	Poll Poll        `json:"poll"`
}

type ServerPollUpdate struct {
	Type  MessageType `json:"type"`
	ID    string      `json:"id"`
	Votes Votes       `json:"votes"`
}

type ServerPollFinished struct {
	Type  MessageType `json:"type"`
	ID    string      `json:"id"`
	Votes Votes       `json:"votes"`
}

type ServerRewardSync struct {
	Type    MessageType `json:"type"`
	Rewards []Reward    `json:"rewards"`
}

type ServerRoomMembersSync struct {
	Type    MessageType `json:"type"`
	Members []string    `json:"members"`
}

// ServerValidationError tells a client why its request was rejected.
type ServerValidationError struct {
	Type    MessageType `json:"type"`
	Request MessageType `json:"request"`
	Message string      `json:"message"`
}

// Unrecognized is what Decode yields for a well-formed envelope whose type
// is not part of the protocol. Callers log and drop it.
type Unrecognized struct {
	Type MessageType
}

func NewServerPollCreate(poll Poll) *ServerPollCreate {
	return &ServerPollCreate{Type: TypeServerPollCreate, ID: poll.ID, Poll: poll}
}

func NewServerPollUpdate(id string, votes Votes) *ServerPollUpdate {
	return &ServerPollUpdate{Type: TypeServerPollUpdate, ID: id, Votes: votes}
}

func NewServerPollFinished(id string, votes Votes) *ServerPollFinished {
	return &ServerPollFinished{Type: TypeServerPollFinished, ID: id, Votes: votes}
}

func NewServerRewardSync(rewards []Reward) *ServerRewardSync {
	if rewards == nil {
		rewards = []Reward{}
	}
	return &ServerRewardSync{Type: TypeServerRewardSync, Rewards: rewards}
}

func NewServerRoomMembersSync(members []string) *ServerRoomMembersSync {
	if members == nil {
		members = []string{}
	}
	return &ServerRoomMembersSync{Type: TypeServerRoomMembersSync, Members: members}
}

func NewServerValidationError(request MessageType, message string) *ServerValidationError {
	return &ServerValidationError{Type: TypeServerValidationError, Request: request, Message: message}
}

func (*ClientCreatePoll) MessageType() MessageType      { return TypeClientCreatePoll }
func (*ClientPollProgress) MessageType() MessageType    { return TypeClientPollProgress }
func (*ClientPollFinished) MessageType() MessageType    { return TypeClientPollFinished }
func (*ClientCreateReward) MessageType() MessageType    { return TypeClientCreateReward }
func (*ClientDeleteReward) MessageType() MessageType    { return TypeClientDeleteReward }
func (*ClientUpdateRewards) MessageType() MessageType   { return TypeClientUpdateRewards }
func (*RewardRedeemed) MessageType() MessageType        { return TypeRewardRedeemed }
func (*ServerPollCreate) MessageType() MessageType      { return TypeServerPollCreate }
func (*ServerPollUpdate) MessageType() MessageType      { return TypeServerPollUpdate }
func (*ServerPollFinished) MessageType() MessageType    { return TypeServerPollFinished }
func (*ServerRewardSync) MessageType() MessageType      { return TypeServerRewardSync }
func (*ServerRoomMembersSync) MessageType() MessageType { return TypeServerRoomMembersSync }
func (*ServerValidationError) MessageType() MessageType { return TypeServerValidationError }
func (u *Unrecognized) MessageType() MessageType        { return u.Type }

func (*ClientCreatePoll) isMessage()      {}
func (*ClientPollProgress) isMessage()    {}
func (*ClientPollFinished) isMessage()    {}
func (*ClientCreateReward) isMessage()    {}
func (*ClientDeleteReward) isMessage()    {}
func (*ClientUpdateRewards) isMessage()   {}
func (*RewardRedeemed) isMessage()        {}
func (*ServerPollCreate) isMessage()      {}
func (*ServerPollUpdate) isMessage()      {}
func (*ServerPollFinished) isMessage()    {}
func (*ServerRewardSync) isMessage()      {}
func (*ServerRoomMembersSync) isMessage() {}
func (*ServerValidationError) isMessage() {}
func (*Unrecognized) isMessage()          {}
