// Package mailbox buffers outbound frames per client so a client that
// drops and reconnects receives what was sent to it in between.
//
// Every client has at most one mailbox. A mailbox is created by the first
// Send and lives for a fixed TTL measured from its creation; reconnecting or
// receiving more frames does not extend it.
package mailbox

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiawesome/ttv-relay/pkg/log"
)

// DefaultTTL is how long a mailbox lives after creation.
const DefaultTTL = 30 * time.Minute

// ErrStopped is returned by Send after Stop.
var ErrStopped = errors.New("mailbox stopped")

// Conn is the outbound side of a live connection. Send must not block;
// an error means the frame was not accepted.
type Conn interface {
	Send(frame []byte) error
}

// EvictFunc is called when the mailbox of a disconnected client expires.
// It runs with the mailbox registry locked and must not call back into the
// Mailbox.
type EvictFunc func(clientID string)

type Config struct {
	TTL          time.Duration
	Clock        clockwork.Clock
	OnEvict      EvictFunc
	PromRegistry prometheus.Registerer
}

type Mailbox struct {
	ttl     time.Duration
	clock   clockwork.Clock
	onEvict EvictFunc
	metrics *mailboxMetrics

	mu      sync.Mutex
	boxes   map[string]*box
	conns   map[string]Conn
	stopped bool
}

type box struct {
	mu      sync.Mutex
	queue   [][]byte
	created time.Time
	timer   clockwork.Timer
	evicted bool
}

func New(cfg Config) *Mailbox {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	m := &Mailbox{
		ttl:     cfg.TTL,
		clock:   cfg.Clock,
		onEvict: cfg.OnEvict,
		boxes:   make(map[string]*box),
		conns:   make(map[string]Conn),
	}
	if cfg.PromRegistry != nil {
		m.metrics = newMailboxMetrics(cfg.PromRegistry)
	}
	return m
}

// SetEvictFunc replaces the eviction callback. It is meant for wiring at
// startup, before the first Send.
func (m *Mailbox) SetEvictFunc(fn EvictFunc) {
	m.mu.Lock()
	m.onEvict = fn
	m.mu.Unlock()
}

// Send queues frame for clientID and delivers it right away when a
// connection is attached. The frame is never dropped here: a failed write
// leaves it queued for the next Send, Attach or Flush.
func (m *Mailbox) Send(clientID string, frame []byte) error {
	for {
		b, err := m.acquire(clientID)
		if err != nil {
			return err
		}

		b.mu.Lock()
		if b.evicted {
			// Expired between lookup and lock; start a fresh mailbox.
			b.mu.Unlock()
			continue
		}
		b.queue = append(b.queue, frame)
		if m.metrics != nil {
			m.metrics.enqueued.Inc()
			m.metrics.pending.Inc()
		}
		m.flush(clientID, b)
		b.mu.Unlock()
		return nil
	}
}

// Attach binds conn to clientID, replacing any earlier connection, and
// drains pending frames into it.
func (m *Mailbox) Attach(clientID string, conn Conn) {
	m.mu.Lock()
	m.conns[clientID] = conn
	m.mu.Unlock()

	m.Flush(clientID)
}

// Flush retries delivery of the frames still queued for clientID. A
// connection calls it once it has room again after a write was refused.
func (m *Mailbox) Flush(clientID string) {
	m.mu.Lock()
	b := m.boxes[clientID]
	m.mu.Unlock()

	if b == nil {
		return
	}
	b.mu.Lock()
	if !b.evicted {
		m.flush(clientID, b)
	}
	b.mu.Unlock()
}

// Detach unbinds conn from clientID. It is a no-op when a newer connection
// has been attached since.
func (m *Mailbox) Detach(clientID string, conn Conn) {
	m.mu.Lock()
	if cur, ok := m.conns[clientID]; ok && cur == conn {
		delete(m.conns, clientID)
	}
	m.mu.Unlock()
}

// Connected reports whether a connection is attached for clientID.
func (m *Mailbox) Connected(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conns[clientID]
	return ok
}

// Pending returns the number of frames waiting for clientID.
func (m *Mailbox) Pending(clientID string) int {
	m.mu.Lock()
	b := m.boxes[clientID]
	m.mu.Unlock()
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// ExpiresAt returns when the mailbox of clientID will be evicted.
func (m *Mailbox) ExpiresAt(clientID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.boxes[clientID]
	if !ok {
		return time.Time{}, false
	}
	return b.created.Add(m.ttl), true
}

// Len returns the number of live mailboxes.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boxes)
}

// Stop cancels every TTL timer and discards all queued frames. Send fails
// with ErrStopped afterwards.
func (m *Mailbox) Stop() {
	m.mu.Lock()
	m.stopped = true
	boxes := m.boxes
	m.boxes = make(map[string]*box)
	m.conns = make(map[string]Conn)
	m.mu.Unlock()

	for _, b := range boxes {
		b.mu.Lock()
		if !b.evicted {
			b.evicted = true
			b.timer.Stop()
			if m.metrics != nil {
				m.metrics.pending.Sub(float64(len(b.queue)))
				m.metrics.mailboxes.Dec()
			}
			b.queue = nil
		}
		b.mu.Unlock()
	}
}

func (m *Mailbox) acquire(clientID string) (*box, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrStopped
	}
	if b, ok := m.boxes[clientID]; ok {
		return b, nil
	}

	b := &box{created: m.clock.Now()}
	b.timer = m.clock.AfterFunc(m.ttl, func() { m.evict(clientID, b) })
	m.boxes[clientID] = b
	if m.metrics != nil {
		m.metrics.mailboxes.Inc()
	}
	return b, nil
}

// flush drains b in order into the attached connection and stops at the
// first failed write. b.mu must be held.
func (m *Mailbox) flush(clientID string, b *box) {
	m.mu.Lock()
	conn := m.conns[clientID]
	m.mu.Unlock()
	if conn == nil {
		return
	}

	sent := 0
	for _, frame := range b.queue {
		if err := conn.Send(frame); err != nil {
			l := log.L()
			l.Debug().Err(err).
				Str(log.FieldClientID, clientID).
				Int("pending", len(b.queue)-sent).
				Msg("mailbox write failed, keeping remainder queued")
			if m.metrics != nil {
				m.metrics.writeFailures.Inc()
			}
			break
		}
		sent++
	}
	if sent == 0 {
		return
	}

	if sent == len(b.queue) {
		b.queue = nil
	} else {
		rest := make([][]byte, len(b.queue)-sent)
		copy(rest, b.queue[sent:])
		b.queue = rest
	}
	if m.metrics != nil {
		m.metrics.delivered.Add(float64(sent))
		m.metrics.pending.Sub(float64(sent))
	}
}

func (m *Mailbox) evict(clientID string, b *box) {
	b.mu.Lock()
	if b.evicted {
		b.mu.Unlock()
		return
	}
	b.evicted = true
	dropped := len(b.queue)
	b.queue = nil
	b.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if cur, ok := m.boxes[clientID]; ok && cur == b {
		delete(m.boxes, clientID)
	}
	_, connected := m.conns[clientID]

	if m.metrics != nil {
		m.metrics.mailboxes.Dec()
		m.metrics.evictions.Inc()
		m.metrics.pending.Sub(float64(dropped))
		m.metrics.dropped.Add(float64(dropped))
	}

	l := log.L()
	l.Debug().
		Str(log.FieldClientID, clientID).
		Int("dropped", dropped).
		Bool("connected", connected).
		Msg("mailbox expired")

	if !connected && m.onEvict != nil {
		m.onEvict(clientID)
	}
}
