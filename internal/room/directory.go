// Package room keeps the room directory: which contributors are present in
// a room, which clients receive its broadcasts, and its reward catalog.
package room

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weiawesome/ttv-relay/internal/hub"
	"github.com/weiawesome/ttv-relay/internal/protocol"
	"github.com/weiawesome/ttv-relay/pkg/log"
)

// Sender delivers an encoded frame to one client, buffering it when the
// client is offline.
type Sender interface {
	Send(clientID string, frame []byte) error
}

// Directory maps room ids to rooms. Rooms are created on first join and
// are never removed.
type Directory struct {
	sender  Sender
	metrics *directoryMetrics

	mu       sync.RWMutex
	rooms    map[string]*Room
	sessions map[string]hub.Session // clientID -> last connected session
}

func NewDirectory(sender Sender, reg prometheus.Registerer) *Directory {
	d := &Directory{
		sender:   sender,
		rooms:    make(map[string]*Room),
		sessions: make(map[string]hub.Session),
	}
	if reg != nil {
		d.metrics = newDirectoryMetrics(reg)
	}
	return d
}

// Get returns the room or nil when no one ever joined it.
func (d *Directory) Get(roomID string) *Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rooms[roomID]
}

// RoomIDs returns the ids of all known rooms, sorted.
func (d *Directory) RoomIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.rooms))
	for id := range d.rooms {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Join adds the session's contributor to its room and makes the client a
// delivery target of that room only. A client that moved rooms leaves
// the previous one; the returned slice lists rooms whose member set
// changed.
func (d *Directory) Join(s hub.Session) []*Room {
	d.mu.Lock()
	r, ok := d.rooms[s.RoomID]
	if !ok {
		r = newRoom(s.RoomID)
		d.rooms[s.RoomID] = r
		if d.metrics != nil {
			d.metrics.rooms.Inc()
		}
	}
	prev, hadPrev := d.sessions[s.ClientID]
	d.sessions[s.ClientID] = s
	others := make([]*Room, 0, len(d.rooms))
	for id, other := range d.rooms {
		if id != s.RoomID {
			others = append(others, other)
		}
	}
	d.mu.Unlock()

	var changed []*Room
	for _, other := range others {
		other.removeClient(s.ClientID)
		if hadPrev && prev.RoomID == other.ID && other.leave(prev.ContributorID) {
			changed = append(changed, other)
		}
	}
	if hadPrev && prev.RoomID == s.RoomID && prev.ContributorID != s.ContributorID {
		r.leave(prev.ContributorID)
	}
	if r.join(s.ContributorID, s.ClientID) {
		changed = append(changed, r)
	}
	return changed
}

// Leave removes the session's contributor from its room. The client stays
// a delivery target until its mailbox expires.
func (d *Directory) Leave(s hub.Session) *Room {
	d.mu.Lock()
	if cur, ok := d.sessions[s.ClientID]; ok && cur == s {
		delete(d.sessions, s.ClientID)
	}
	r := d.rooms[s.RoomID]
	d.mu.Unlock()

	if r == nil || !r.leave(s.ContributorID) {
		return nil
	}
	return r
}

// RemoveClient drops clientID from every room's delivery targets. It is
// the mailbox eviction hook.
func (d *Directory) RemoveClient(clientID string) {
	d.mu.RLock()
	rooms := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		rooms = append(rooms, r)
	}
	d.mu.RUnlock()

	for _, r := range rooms {
		if r.removeClient(clientID) {
			l := log.L()
			l.Debug().
				Str(log.FieldClientID, clientID).
				Str(log.FieldRoomID, r.ID).
				Msg("removed expired client from room")
		}
	}
}

// Broadcast encodes msg once and sends it to every delivery target of
// roomID. An unknown room is a no-op.
func (d *Directory) Broadcast(ctx context.Context, roomID string, msg protocol.Message) error {
	r := d.Get(roomID)
	if r == nil {
		return nil
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}

	targets := r.Clients()
	for _, clientID := range targets {
		if err := d.sender.Send(clientID, frame); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).
				Str(log.FieldClientID, clientID).
				Str(log.FieldRoomID, roomID).
				Msg("broadcast send failed")
		}
	}
	if d.metrics != nil {
		d.metrics.broadcasts.WithLabelValues(string(msg.MessageType())).Inc()
		d.metrics.frames.Add(float64(len(targets)))
	}
	return nil
}

// Send encodes msg and sends it to a single client.
func (d *Directory) Send(ctx context.Context, clientID string, msg protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	if d.metrics != nil {
		d.metrics.frames.Inc()
	}
	return d.sender.Send(clientID, frame)
}

// OnConnected joins the session's room and pushes the member list to it.
func (d *Directory) OnConnected(ctx context.Context, s hub.Session) {
	changed := d.Join(s)

	l := log.Ctx(ctx)
	l.Info().Msg("joined room")

	// The joining room always gets a sync so the new client learns the members.
	d.syncMembers(ctx, s.RoomID)
	for _, r := range changed {
		if r.ID != s.RoomID {
			d.syncMembers(ctx, r.ID)
		}
	}
}

// OnDisconnected removes the contributor and pushes the member list.
func (d *Directory) OnDisconnected(ctx context.Context, s hub.Session) {
	r := d.Leave(s)

	l := log.Ctx(ctx)
	l.Info().Msg("left room")

	if r != nil {
		d.syncMembers(ctx, r.ID)
	}
}

func (d *Directory) syncMembers(ctx context.Context, roomID string) {
	r := d.Get(roomID)
	if r == nil {
		return
	}
	if err := d.Broadcast(ctx, roomID, protocol.NewServerRoomMembersSync(r.Members())); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("members sync failed")
	}
}
