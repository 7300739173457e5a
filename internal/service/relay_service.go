package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/ttv-relay/internal/audit"
	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/internal/mailbox"
	"github.com/weiawesome/ttv-relay/internal/poll"
	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/internal/registry"
	"github.com/weiawesome/ttv-relay/internal/reward"
	"github.com/weiawesome/ttv-relay/internal/room"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

type relayService struct {
	hub      *hub.Hub
	mailbox  *mailbox.Mailbox
	rooms    *room.Directory
	polls    *poll.Aggregator
	rewards  *reward.Catalog
	exporter Exporter
	registry registry.Registry
}

func NewRelayService(
	h *hub.Hub,
	mb *mailbox.Mailbox,
	rooms *room.Directory,
	polls *poll.Aggregator,
	rewards *reward.Catalog,
	exporter Exporter,
	reg registry.Registry,
) RelayService {
	return &relayService{
		hub:      h,
		mailbox:  mb,
		rooms:    rooms,
		polls:    polls,
		rewards:  rewards,
		exporter: exporter,
		registry: reg,
	}
}

func (s *relayService) HandleCreatePoll(ctx context.Context, sess hub.Session, msg *protocol.ClientCreatePoll) error {
	if err := s.polls.Create(ctx, sess.RoomID, msg.Poll); err != nil {
		return fmt.Errorf("create poll %q: %w", msg.Poll.ID, err)
	}
	audit.Poll(ctx, audit.ActionPollCreate, msg.Poll.ID, msg.Poll.Title, "poll created")
	s.exporter.PollCreated(ctx, sess.RoomID, sess.ContributorID, msg.Poll)
	return nil
}

func (s *relayService) HandlePollProgress(ctx context.Context, sess hub.Session, msg *protocol.ClientPollProgress) error {
	if err := s.polls.Progress(ctx, sess.RoomID, sess.ContributorID, msg.ID, msg.Votes); err != nil {
		return fmt.Errorf("poll progress %q: %w", msg.ID, err)
	}
	return nil
}

func (s *relayService) HandlePollFinished(ctx context.Context, sess hub.Session, msg *protocol.ClientPollFinished) error {
	if err := s.polls.Finish(ctx, sess.RoomID, sess.ContributorID, msg.ID, msg.Votes); err != nil {
		return fmt.Errorf("poll finished %q: %w", msg.ID, err)
	}
	l := log.Ctx(ctx)
	l.Info().Str(log.FieldPollID, msg.ID).Msg("poll finished on contributor")
	return nil
}

func (s *relayService) OnPollFinalized(ctx context.Context, result poll.Result) {
	audit.Log(ctx, audit.Entry{Action: audit.ActionPollFinalize, RoomID: result.RoomID, PollID: result.PollID}, "poll finalized")
	s.exporter.PollFinished(ctx, result)
}

func (s *relayService) HandleCreateReward(ctx context.Context, sess hub.Session, msg *protocol.ClientCreateReward) error {
	if err := s.rewards.Create(ctx, sess.RoomID, msg.Reward); err != nil {
		return s.rejectReward(ctx, sess, msg.MessageType(), err)
	}
	audit.Reward(ctx, audit.ActionRewardCreate, msg.Reward.ID, msg.Reward.Title, "reward created")
	s.synced(ctx, sess.RoomID)
	return nil
}

func (s *relayService) HandleDeleteReward(ctx context.Context, sess hub.Session, msg *protocol.ClientDeleteReward) error {
	if err := s.rewards.Delete(ctx, sess.RoomID, msg.Reward); err != nil {
		return fmt.Errorf("delete reward %q: %w", msg.Reward, err)
	}
	audit.Reward(ctx, audit.ActionRewardDelete, msg.Reward, "", "reward deleted")
	s.synced(ctx, sess.RoomID)
	return nil
}

func (s *relayService) HandleUpdateRewards(ctx context.Context, sess hub.Session, msg *protocol.ClientUpdateRewards) error {
	if err := s.rewards.Replace(ctx, sess.RoomID, msg.Rewards); err != nil {
		return s.rejectReward(ctx, sess, msg.MessageType(), err)
	}
	audit.Log(ctx, audit.Entry{Action: audit.ActionRewardsReplace, Detail: fmt.Sprintf("count=%d", len(msg.Rewards))}, "reward catalog replaced")
	s.synced(ctx, sess.RoomID)
	return nil
}

func (s *relayService) HandleRewardRedeemed(ctx context.Context, sess hub.Session, msg *protocol.RewardRedeemed) error {
	if err := s.rewards.Redeem(ctx, sess.RoomID, msg); err != nil {
		return fmt.Errorf("redeem %q: %w", msg.Reward, err)
	}
	audit.Reward(ctx, audit.ActionRewardRedeem, msg.Reward, msg.UserName, "reward redeemed")
	s.exporter.RewardRedeemed(ctx, sess.RoomID, msg)
	return nil
}

// rejectReward tells the sender why a reward request was refused. The
// returned error is the original cause.
func (s *relayService) rejectReward(ctx context.Context, sess hub.Session, request protocol.MessageType, cause error) error {
	if errors.Is(cause, reward.ErrInvalidReward) || errors.Is(cause, reward.ErrCatalogTooLarge) {
		audit.Log(ctx, audit.Entry{Action: audit.ActionRejected, Detail: string(request)}, cause.Error())
		reply := protocol.NewServerValidationError(request, cause.Error())
		if err := s.rooms.Send(ctx, sess.ClientID, reply); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("failed to send validation error")
		}
	}
	return fmt.Errorf("%s: %w", request, cause)
}

func (s *relayService) synced(ctx context.Context, roomID string) {
	if r := s.rooms.Get(roomID); r != nil {
		s.exporter.RewardsSynced(ctx, roomID, len(r.Rewards()))
	}
}

func (s *relayService) Stats() Stats {
	active, finalized := s.polls.Stats()
	return Stats{
		Rooms:          s.rooms.Len(),
		Connections:    s.hub.Len(),
		Mailboxes:      s.mailbox.Len(),
		ActivePolls:    active,
		FinalizedPolls: finalized,
	}
}

func (s *relayService) Room(roomID string) (room.Snapshot, bool) {
	r := s.rooms.Get(roomID)
	if r == nil {
		return room.Snapshot{}, false
	}
	return r.Snapshot(), true
}

func (s *relayService) Poll(pollID string) (poll.Snapshot, bool) {
	return s.polls.Get(pollID)
}

func (s *relayService) Start(ctx context.Context) error {
	if err := s.registry.StartHeartbeat(ctx); err != nil {
		return fmt.Errorf("failed to start registry heartbeat: %w", err)
	}
	l := log.L()
	l.Info().Msg("relay service started")
	return nil
}

func (s *relayService) Stop() error {
	s.polls.Stop()
	s.mailbox.Stop()
	if err := s.registry.Close(); err != nil {
		l := log.L()
		l.Error().Err(err).Msg("failed to close registry")
	}
	return nil
}
