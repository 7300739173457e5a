package room

import (
	"sort"
	"sync"

	"github.com/weiawesome/ttv-relay/internal/protocol"
)

// Room is one shared session. Members are the contributors currently
// connected; clients are the delivery targets, which include recently
// disconnected clients whose mailbox is still alive.
type Room struct {
	ID string

	// catalogMu orders catalog changes with the syncs that publish them.
	catalogMu sync.Mutex

	mu      sync.RWMutex
	members map[string]struct{}
	clients map[string]struct{}
	rewards []protocol.Reward
	index   map[string]int // reward id -> position in rewards
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]struct{}),
		clients: make(map[string]struct{}),
		index:   make(map[string]int),
	}
}

// Members returns the connected contributor ids, sorted.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.members)
}

// Clients returns the delivery targets, sorted.
func (r *Room) Clients() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.clients)
}

func (r *Room) HasClient(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[clientID]
	return ok
}

// WithCatalog runs fn with the room's catalog sync lock held. A change and
// the sync that publishes it must both happen inside fn, so syncs reach
// clients in the order the catalog changed.
func (r *Room) WithCatalog(fn func()) {
	r.catalogMu.Lock()
	defer r.catalogMu.Unlock()
	fn()
}

// Rewards returns a copy of the catalog in insertion order.
func (r *Room) Rewards() []protocol.Reward {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Reward, len(r.rewards))
	copy(out, r.rewards)
	return out
}

// ReplaceCatalog swaps the whole catalog. Later duplicates of an id win
// but keep the position of the first occurrence.
func (r *Room) ReplaceCatalog(rewards []protocol.Reward) {
	next := make([]protocol.Reward, 0, len(rewards))
	index := make(map[string]int, len(rewards))
	for _, rw := range rewards {
		if i, ok := index[rw.ID]; ok {
			next[i] = rw
			continue
		}
		index[rw.ID] = len(next)
		next = append(next, rw)
	}

	r.mu.Lock()
	r.rewards = next
	r.index = index
	r.mu.Unlock()
}

// Upsert replaces the reward with the same id in place, or appends it.
func (r *Room) Upsert(rw protocol.Reward) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[rw.ID]; ok {
		r.rewards[i] = rw
		return
	}
	r.index[rw.ID] = len(r.rewards)
	r.rewards = append(r.rewards, rw)
}

// Remove deletes a reward by id and reports whether it was present.
func (r *Room) Remove(rewardID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[rewardID]
	if !ok {
		return false
	}
	r.rewards = append(r.rewards[:i], r.rewards[i+1:]...)
	delete(r.index, rewardID)
	for j := i; j < len(r.rewards); j++ {
		r.index[r.rewards[j].ID] = j
	}
	return true
}

// Snapshot is a point-in-time copy of a room.
type Snapshot struct {
	ID          string            `json:"id"`
	Members     []string          `json:"members"`
	ClientCount int               `json:"client_count"`
	Rewards     []protocol.Reward `json:"rewards"`
}

func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rewards := make([]protocol.Reward, len(r.rewards))
	copy(rewards, r.rewards)
	return Snapshot{
		ID:          r.ID,
		Members:     sortedKeys(r.members),
		ClientCount: len(r.clients),
		Rewards:     rewards,
	}
}

func (r *Room) join(contributorID, clientID string) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, had := r.members[contributorID]
	r.members[contributorID] = struct{}{}
	r.clients[clientID] = struct{}{}
	return !had
}

func (r *Room) leave(contributorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[contributorID]; !ok {
		return false
	}
	delete(r.members, contributorID)
	return true
}

func (r *Room) removeClient(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[clientID]; !ok {
		return false
	}
	delete(r.clients, clientID)
	return true
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
