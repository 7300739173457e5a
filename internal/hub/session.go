package hub

import "context"

// Session identifies one accepted connection.
type Session struct {
	ClientID      string
	ContributorID string
	RoomID        string
}

// Listener is notified of connection lifecycle events. Listeners run on the
// hub loop in registration order and must not block.
type Listener interface {
	OnConnected(ctx context.Context, s Session)
	OnDisconnected(ctx context.Context, s Session)
}
