package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event is the unit written to the export bus.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates an event stamped with now.
func NewEvent(eventType, roomID string, payload any, now time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: now,
	}, nil
}

// UnmarshalPayload unmarshals the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Publisher publishes events to a channel of the export bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
	Close() error
}

// Noop discards every event. It is the publisher used when export is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, string, *Event) error { return nil }
func (Noop) Close() error                                   { return nil }
