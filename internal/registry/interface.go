package registry

import (
	"context"
)

// Registry advertises which relay instance hosts a room.
type Registry interface {
	Register(ctx context.Context, roomID string) error
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}

// Noop is used when the registry is disabled.
type Noop struct{}

func (Noop) Register(context.Context, string) error { return nil }
func (Noop) StartHeartbeat(context.Context) error   { return nil }
func (Noop) StopHeartbeat()                         {}
func (Noop) Close() error                           { return nil }
