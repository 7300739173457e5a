package registry

import (
	"context"
	"time"

	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

const (
	DefaultRegisterTimeout = 500 * time.Millisecond
	listenerQueueSize      = 256
)

type registration struct {
	ctx    context.Context
	roomID string
}

// Listener registers a room when a client connects to it. Registrations
// run on the listener's own worker, so a slow Redis never holds up the
// hub.
type Listener struct {
	registry Registry
	timeout  time.Duration
	queue    chan registration
	done     chan struct{}
}

func NewListener(r Registry, timeout time.Duration) *Listener {
	if timeout <= 0 {
		timeout = DefaultRegisterTimeout
	}
	return &Listener{
		registry: r,
		timeout:  timeout,
		queue:    make(chan registration, listenerQueueSize),
		done:     make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-l.queue:
			l.register(job)
		}
	}
}

// Done is closed once Run has returned.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) OnConnected(ctx context.Context, s hub.Session) {
	select {
	case l.queue <- registration{ctx: ctx, roomID: s.RoomID}:
	default:
		logger := log.Ctx(ctx)
		logger.Warn().Msg("registry queue full, room registration skipped")
	}
}

func (*Listener) OnDisconnected(context.Context, hub.Session) {}

func (l *Listener) register(job registration) {
	ctx, cancel := context.WithTimeout(job.ctx, l.timeout)
	defer cancel()

	if err := l.registry.Register(ctx, job.roomID); err != nil {
		logger := log.Ctx(job.ctx)
		logger.Warn().Err(err).Msg("failed to register room")
	}
}
