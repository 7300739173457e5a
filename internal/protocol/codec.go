package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for input that is not a JSON envelope.
var ErrMalformed = errors.New("malformed envelope")

// decoders is the explicit decode table. A type missing from it decodes
// to *Unrecognized.
var decoders = map[MessageType]func() Message{
	TypeClientCreatePoll:      func() Message { return &ClientCreatePoll{} },
	TypeClientPollProgress:    func() Message { return &ClientPollProgress{} },
	TypeClientPollFinished:    func() Message { return &ClientPollFinished{} },
	TypeClientCreateReward:    func() Message { return &ClientCreateReward{} },
	TypeClientDeleteReward:    func() Message { return &ClientDeleteReward{} },
	TypeClientUpdateRewards:   func() Message { return &ClientUpdateRewards{} },
	TypeRewardRedeemed:        func() Message { return &RewardRedeemed{} },
	TypeServerPollCreate:      func() Message { return &ServerPollCreate{} },
	TypeServerPollUpdate:      func() Message { return &ServerPollUpdate{} },
	TypeServerPollFinished:    func() Message { return &ServerPollFinished{} },
	TypeServerRewardSync:      func() Message { return &ServerRewardSync{} },
	TypeServerRoomMembersSync: func() Message { return &ServerRoomMembersSync{} },
	TypeServerValidationError: func() Message { return &ServerValidationError{} },
}

// Decode parses one envelope. Unknown discriminators are not an error:
// they come back as *Unrecognized so the caller decides what to do.
func Decode(data []byte) (Message, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	newMsg, ok := decoders[base.Type]
	if !ok {
		return &Unrecognized{Type: base.Type}, nil
	}

	msg := newMsg()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, base.Type, err)
	}
	return msg, nil
}

// Encode serializes a message. The discriminator is always taken from the
// message's own type, whatever its Type field holds.
func Encode(msg Message) ([]byte, error) {
	if u, ok := msg.(*Unrecognized); ok {
		return nil, fmt.Errorf("cannot encode unrecognized message type %q", u.Type)
	}
	setType(msg)
	return json.Marshal(msg)
}

func setType(msg Message) {
	field := typeField(msg)
	if field != nil && *field != msg.MessageType() {
		*field = msg.MessageType()
	}
}

func typeField(msg Message) *MessageType {
	switch m := msg.(type) {
	case *ClientCreatePoll:
		return &m.Type
	case *ClientPollProgress:
		return &m.Type
	case *ClientPollFinished:
		return &m.Type
	case *ClientCreateReward:
		return &m.Type
	case *ClientDeleteReward:
		return &m.Type
	case *ClientUpdateRewards:
		return &m.Type
	case *RewardRedeemed:
		return &m.Type
	case *ServerPollCreate:
		return &m.Type
	case *ServerPollUpdate:
		return &m.Type
	case *ServerPollFinished:
		return &m.Type
	case *ServerRewardSync:
		return &m.Type
	case *ServerRoomMembersSync:
		return &m.Type
	case *ServerValidationError:
		return &m.Type
	}
	return nil
}
