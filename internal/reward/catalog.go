// Package reward keeps every room's channel-point reward catalog in sync
// across the room's clients.
package reward

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/internal/room"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

// DefaultMaxCatalogSize bounds a replace-all request.
const DefaultMaxCatalogSize = 30

var (
	ErrInvalidReward   = errors.New("reward id and title are required")
	ErrCatalogTooLarge = errors.New("too many rewards")
)

// Rooms is the part of the room directory the catalog needs.
type Rooms interface {
	Get(roomID string) *room.Room
	Broadcast(ctx context.Context, roomID string, msg protocol.Message) error
	Send(ctx context.Context, clientID string, msg protocol.Message) error
}

type Catalog struct {
	rooms   Rooms
	maxSize int
	metrics *catalogMetrics
}

func NewCatalog(rooms Rooms, maxSize int, reg prometheus.Registerer) *Catalog {
	if maxSize <= 0 {
		maxSize = DefaultMaxCatalogSize
	}
	c := &Catalog{rooms: rooms, maxSize: maxSize}
	if reg != nil {
		c.metrics = newCatalogMetrics(reg)
	}
	return c
}

func (c *Catalog) MaxSize() int { return c.maxSize }

// Create adds or replaces one reward and pushes the full catalog to the room.
func (c *Catalog) Create(ctx context.Context, roomID string, rw protocol.Reward) error {
	if !rw.Valid() {
		c.reject("invalid")
		return ErrInvalidReward
	}
	r := c.rooms.Get(roomID)
	if r == nil {
		return nil
	}
	var err error
	r.WithCatalog(func() {
		r.Upsert(rw)
		c.count("create")
		err = c.sync(ctx, r)
	})
	return err
}

// Replace swaps the whole catalog. The request is rejected as a whole when
// it is too large or any entry is invalid.
func (c *Catalog) Replace(ctx context.Context, roomID string, rewards []protocol.Reward) error {
	if len(rewards) > c.maxSize {
		c.reject("too_large")
		return fmt.Errorf("%w: %d exceeds the limit of %d", ErrCatalogTooLarge, len(rewards), c.maxSize)
	}
	for i, rw := range rewards {
		if !rw.Valid() {
			c.reject("invalid")
			return fmt.Errorf("%w: entry %d", ErrInvalidReward, i)
		}
	}
	r := c.rooms.Get(roomID)
	if r == nil {
		return nil
	}
	var err error
	r.WithCatalog(func() {
		r.ReplaceCatalog(rewards)
		c.count("replace")
		err = c.sync(ctx, r)
	})
	return err
}

// Delete removes a reward by id. The catalog is pushed even when the id was
// unknown so every client converges on the relay's view.
func (c *Catalog) Delete(ctx context.Context, roomID, rewardID string) error {
	r := c.rooms.Get(roomID)
	if r == nil {
		return nil
	}
	var err error
	r.WithCatalog(func() {
		if !r.Remove(rewardID) {
			l := log.Ctx(ctx)
			l.Debug().Str(log.FieldRewardID, rewardID).Msg("delete of unknown reward")
		}
		c.count("delete")
		err = c.sync(ctx, r)
	})
	return err
}

// Redeem relays a redemption to the room unchanged.
func (c *Catalog) Redeem(ctx context.Context, roomID string, msg *protocol.RewardRedeemed) error {
	c.count("redeem")
	return c.rooms.Broadcast(ctx, roomID, msg)
}

// OnConnected sends the room's current catalog to the new client only.
func (c *Catalog) OnConnected(ctx context.Context, s hub.Session) {
	r := c.rooms.Get(s.RoomID)
	if r == nil {
		return
	}
	r.WithCatalog(func() {
		if err := c.rooms.Send(ctx, s.ClientID, protocol.NewServerRewardSync(r.Rewards())); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("reward catalog sync failed")
		}
	})
}

func (c *Catalog) OnDisconnected(context.Context, hub.Session) {}

// sync must run under r.WithCatalog.
func (c *Catalog) sync(ctx context.Context, r *room.Room) error {
	return c.rooms.Broadcast(ctx, r.ID, protocol.NewServerRewardSync(r.Rewards()))
}

func (c *Catalog) count(op string) {
	if c.metrics != nil {
		c.metrics.operations.WithLabelValues(op).Inc()
	}
}

func (c *Catalog) reject(reason string) {
	if c.metrics != nil {
		c.metrics.rejected.WithLabelValues(reason).Inc()
	}
}
