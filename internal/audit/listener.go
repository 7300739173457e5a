package audit

import (
	"context"

	"github.com/weiawesome/ttv-relay/internal/hub"
)

// ConnectionListener records an audit entry for every accepted and
// closed relay connection. The session fields come from ctx.
type ConnectionListener struct{}

func (ConnectionListener) OnConnected(ctx context.Context, _ hub.Session) {
	Log(ctx, Entry{Action: ActionConnect}, "client connected")
}

func (ConnectionListener) OnDisconnected(ctx context.Context, _ hub.Session) {
	Log(ctx, Entry{Action: ActionDisconnect}, "client disconnected")
}
