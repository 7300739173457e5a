// Package poll aggregates vote snapshots reported by several contributors
// for the same poll and finalizes each poll once its deadline passes.
package poll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

const (
	// DefaultGrace is added to a poll's duration to form its deadline.
	DefaultGrace = 2 * time.Second
	// DefaultRetention is how long a finalized poll is remembered.
	DefaultRetention = 10 * time.Minute
)

var (
	ErrInvalidPoll   = errors.New("invalid poll")
	ErrDuplicatePoll = errors.New("duplicate poll id")
	ErrUnknownPoll   = errors.New("unknown poll")
	ErrPollFinalized = errors.New("poll already finalized")
	ErrInvalidVotes  = errors.New("invalid votes")
	ErrRoomMismatch  = errors.New("poll belongs to another room")
	ErrStopped       = errors.New("aggregator stopped")
)

// Broadcaster fans a message out to a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, msg protocol.Message) error
}

// FinalizedFunc receives every poll result exactly once.
type FinalizedFunc func(ctx context.Context, result Result)

type Config struct {
	Grace time.Duration
	// Retention of finalized polls; zero keeps them forever.
	Retention    time.Duration
	Clock        clockwork.Clock
	OnFinalized  FinalizedFunc
	PromRegistry prometheus.Registerer
}

type Aggregator struct {
	rooms       Broadcaster
	clock       clockwork.Clock
	grace       time.Duration
	retention   time.Duration
	onFinalized FinalizedFunc
	metrics     *pollMetrics

	mu      sync.Mutex
	polls   map[string]*poll
	stopped bool
}

func NewAggregator(rooms Broadcaster, cfg Config) *Aggregator {
	if cfg.Grace < 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.Retention < 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	a := &Aggregator{
		rooms:       rooms,
		clock:       cfg.Clock,
		grace:       cfg.Grace,
		retention:   cfg.Retention,
		onFinalized: cfg.OnFinalized,
		polls:       make(map[string]*poll),
	}
	if cfg.PromRegistry != nil {
		a.metrics = newPollMetrics(cfg.PromRegistry)
	}
	return a
}

// SetFinalizedFunc replaces the result hook. Call before the first Create.
func (a *Aggregator) SetFinalizedFunc(fn FinalizedFunc) {
	a.mu.Lock()
	a.onFinalized = fn
	a.mu.Unlock()
}

// Create registers a poll for roomID, announces it to the room and arms
// its deadline at duration+grace. A known id is rejected, never merged.
func (a *Aggregator) Create(ctx context.Context, roomID string, def protocol.Poll) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPoll)
	}
	if def.Duration < 0 {
		return fmt.Errorf("%w: negative duration %d", ErrInvalidPoll, def.Duration)
	}

	wait := time.Duration(def.Duration)*time.Second + a.grace
	p := newPoll(def, roomID, a.clock.Now().Add(wait))

	// Held until the create broadcast is out so no update can overtake it.
	p.mu.Lock()
	defer p.mu.Unlock()

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return ErrStopped
	}
	if _, ok := a.polls[def.ID]; ok {
		a.mu.Unlock()
		a.reject("duplicate")
		return fmt.Errorf("%w: %s", ErrDuplicatePoll, def.ID)
	}
	a.polls[def.ID] = p
	p.timer = a.clock.AfterFunc(wait, func() { a.finalize(def.ID, p) })
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.created.Inc()
		a.metrics.active.Inc()
	}

	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldPollID, def.ID).
		Int("duration", def.Duration).
		Time("deadline", p.deadline).
		Msg("poll created")

	return a.rooms.Broadcast(ctx, roomID, protocol.NewServerPollCreate(def))
}

// Progress replaces the contributor's snapshot and broadcasts the new
// aggregate to the poll's room.
func (a *Aggregator) Progress(ctx context.Context, roomID, contributorID, pollID string, votes protocol.Votes) error {
	return a.update(ctx, roomID, contributorID, pollID, votes, true)
}

// Finish records the contributor's final snapshot. It does not broadcast
// and does not end the poll; only the deadline does.
func (a *Aggregator) Finish(ctx context.Context, roomID, contributorID, pollID string, votes protocol.Votes) error {
	return a.update(ctx, roomID, contributorID, pollID, votes, false)
}

func (a *Aggregator) update(ctx context.Context, roomID, contributorID, pollID string, votes protocol.Votes, broadcast bool) error {
	for choice, n := range votes {
		if n < 0 {
			a.reject("invalid_votes")
			return fmt.Errorf("%w: %q has %d", ErrInvalidVotes, choice, n)
		}
	}

	p := a.lookup(pollID)
	if p == nil {
		a.reject("unknown")
		return fmt.Errorf("%w: %s", ErrUnknownPoll, pollID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateFinalized {
		a.reject("finalized")
		return fmt.Errorf("%w: %s", ErrPollFinalized, pollID)
	}
	if p.roomID != roomID {
		a.reject("room_mismatch")
		return fmt.Errorf("%w: %s", ErrRoomMismatch, pollID)
	}

	p.record(contributorID, votes)
	if a.metrics != nil {
		a.metrics.updates.Inc()
	}
	if !broadcast {
		return nil
	}
	return a.rooms.Broadcast(ctx, p.roomID, protocol.NewServerPollUpdate(pollID, p.total.Clone()))
}

// Get returns a snapshot of a known poll.
func (a *Aggregator) Get(pollID string) (Snapshot, bool) {
	p := a.lookup(pollID)
	if p == nil {
		return Snapshot{}, false
	}
	return p.snapshot(), true
}

// Stats counts known polls by state.
func (a *Aggregator) Stats() (active, finalized int) {
	a.mu.Lock()
	polls := make([]*poll, 0, len(a.polls))
	for _, p := range a.polls {
		polls = append(polls, p)
	}
	a.mu.Unlock()

	for _, p := range polls {
		p.mu.Lock()
		if p.state == StateActive {
			active++
		} else {
			finalized++
		}
		p.mu.Unlock()
	}
	return active, finalized
}

// Stop cancels every pending deadline and retention timer. Active polls
// are dropped without a result.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	a.stopped = true
	polls := a.polls
	a.polls = make(map[string]*poll)
	a.mu.Unlock()

	for _, p := range polls {
		p.mu.Lock()
		if p.timer != nil {
			p.timer.Stop()
		}
		if p.state == StateActive && a.metrics != nil {
			a.metrics.active.Dec()
		}
		p.state = StateFinalized
		p.mu.Unlock()
	}
}

func (a *Aggregator) lookup(pollID string) *poll {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.polls[pollID]
}

func (a *Aggregator) finalize(pollID string, p *poll) {
	l := log.L()
	logger := l.With().Str(log.FieldPollID, pollID).Str(log.FieldRoomID, p.roomID).Logger()
	ctx := log.WithLogger(context.Background(), logger)

	p.mu.Lock()
	if p.state != StateActive {
		p.mu.Unlock()
		return
	}
	p.state = StateFinalized
	result := Result{
		PollID:     pollID,
		RoomID:     p.roomID,
		Title:      p.def.Title,
		Votes:      p.total.Clone(),
		FinishedAt: a.clock.Now(),
	}
	if err := a.rooms.Broadcast(ctx, p.roomID, protocol.NewServerPollFinished(pollID, result.Votes)); err != nil {
		logger.Error().Err(err).Msg("poll finished broadcast failed")
	}
	if a.retention > 0 {
		p.timer = a.clock.AfterFunc(a.retention, func() { a.forget(pollID, p) })
	}
	p.mu.Unlock()

	if a.metrics != nil {
		a.metrics.active.Dec()
		a.metrics.finalized.Inc()
	}
	logger.Info().Interface("votes", result.Votes).Msg("poll finalized")

	a.mu.Lock()
	onFinalized := a.onFinalized
	a.mu.Unlock()
	if onFinalized != nil {
		onFinalized(ctx, result)
	}
}

func (a *Aggregator) forget(pollID string, p *poll) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if cur, ok := a.polls[pollID]; ok && cur == p {
		delete(a.polls, pollID)
	}
}

func (a *Aggregator) reject(reason string) {
	if a.metrics != nil {
		a.metrics.rejected.WithLabelValues(reason).Inc()
	}
}
