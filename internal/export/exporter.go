// Package export forwards relay outcomes (poll results, redemptions and
// catalog changes) to an external bus. It is write-only: nothing read from
// the bus flows back into the relay.
package export

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiawesome/ttv-relay/internal/poll"
	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/pkg/log"
	"github.com/weiawesome/ttv-relay/pkg/pubsub"
)

const (
	DefaultQueueSize      = 1024
	DefaultPublishTimeout = 5 * time.Second
)

type job struct {
	channel string
	event   *pubsub.Event
}

// Exporter queues events and publishes them from a single worker so a slow
// bus never stalls message handling. Events are dropped when the queue is
// full.
type Exporter struct {
	publisher pubsub.Publisher
	clock     clockwork.Clock
	timeout   time.Duration
	queue     chan job
	done      chan struct{}
	metrics   *exportMetrics
}

type Config struct {
	QueueSize      int
	PublishTimeout time.Duration
	Clock          clockwork.Clock
	PromRegistry   prometheus.Registerer
}

func New(publisher pubsub.Publisher, cfg Config) *Exporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	e := &Exporter{
		publisher: publisher,
		clock:     cfg.Clock,
		timeout:   cfg.PublishTimeout,
		queue:     make(chan job, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	if cfg.PromRegistry != nil {
		e.metrics = newExportMetrics(cfg.PromRegistry)
	}
	return e
}

// Run publishes queued events until ctx is done, then drains what is left
// and closes the publisher.
func (e *Exporter) Run(ctx context.Context) error {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return e.publisher.Close()
		case j := <-e.queue:
			e.publish(j)
		}
	}
}

// Done is closed once Run has returned.
func (e *Exporter) Done() <-chan struct{} {
	return e.done
}

func (e *Exporter) PollCreated(ctx context.Context, roomID, contributorID string, p protocol.Poll) {
	e.enqueue(ctx, pubsub.RoomPollsChannel(roomID), pubsub.EventPollCreated, roomID, pubsub.PollCreatedPayload{
		PollID:      p.ID,
		Title:       p.Title,
		Channel:     contributorID,
		DurationSec: p.Duration,
	})
}

// PollFinished matches poll.FinalizedFunc.
func (e *Exporter) PollFinished(ctx context.Context, res poll.Result) {
	e.enqueue(ctx, pubsub.RoomPollsChannel(res.RoomID), pubsub.EventPollFinished, res.RoomID, pubsub.PollFinishedPayload{
		PollID: res.PollID,
		Title:  res.Title,
		Votes:  res.Votes,
	})
}

func (e *Exporter) RewardRedeemed(ctx context.Context, roomID string, msg *protocol.RewardRedeemed) {
	e.enqueue(ctx, pubsub.RoomRewardsChannel(roomID), pubsub.EventRewardRedeemed, roomID, pubsub.RewardRedeemedPayload{
		RedemptionID: msg.ID,
		RewardID:     msg.Reward,
		Channel:      msg.Channel,
		UserID:       msg.UserID,
		UserName:     msg.UserName,
		Input:        msg.Input,
	})
}

func (e *Exporter) RewardsSynced(ctx context.Context, roomID string, count int) {
	e.enqueue(ctx, pubsub.RoomRewardsChannel(roomID), pubsub.EventRewardsSynced, roomID, pubsub.RewardsSyncedPayload{
		Count: count,
	})
}

func (e *Exporter) enqueue(ctx context.Context, channel, eventType, roomID string, payload any) {
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, roomID, payload, e.clock.Now().UTC())
	if err != nil {
		l.Error().Err(err).Str("event", eventType).Msg("failed to build export event")
		return
	}

	select {
	case e.queue <- job{channel: channel, event: event}:
	default:
		l.Warn().Str("event", eventType).Str("channel", channel).Msg("export queue full, event dropped")
		e.count("dropped")
	}
}

func (e *Exporter) publish(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.publisher.Publish(ctx, j.channel, j.event); err != nil {
		l := log.L()
		l.Error().Err(err).
			Str("event", j.event.Type).
			Str("channel", j.channel).
			Msg("failed to export event")
		e.count("failed")
		return
	}
	e.count("published")
}

func (e *Exporter) drain() {
	for {
		select {
		case j := <-e.queue:
			e.publish(j)
		default:
			return
		}
	}
}

func (e *Exporter) count(result string) {
	if e.metrics != nil {
		e.metrics.events.WithLabelValues(result).Inc()
	}
}
