package poll

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/weiawesome/ttv-relay/internal/protocol"
)

type State int

const (
	StateActive State = iota
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of a finalized poll.
type Result struct {
	PollID     string
	RoomID     string
	Title      string
	Votes      protocol.Votes
	FinishedAt time.Time
}

// Snapshot is a point-in-time copy of a poll.
type Snapshot struct {
	ID           string         `json:"id"`
	RoomID       string         `json:"room_id"`
	Title        string         `json:"title"`
	State        State          `json:"state"`
	Votes        protocol.Votes `json:"votes"`
	Contributors []string       `json:"contributors"`
	Deadline     time.Time      `json:"deadline"`
}

type poll struct {
	mu            sync.Mutex
	def           protocol.Poll
	roomID        string
	contributions map[string]protocol.Votes // contributorID -> latest snapshot
	total         protocol.Votes
	deadline      time.Time
	state         State
	timer         clockwork.Timer
}

func newPoll(def protocol.Poll, roomID string, deadline time.Time) *poll {
	return &poll{
		def:           def,
		roomID:        roomID,
		contributions: make(map[string]protocol.Votes),
		total:         protocol.Votes{},
		deadline:      deadline,
		state:         StateActive,
	}
}

// record replaces one contributor's snapshot and recomputes the total.
// p.mu must be held.
func (p *poll) record(contributorID string, votes protocol.Votes) {
	p.contributions[contributorID] = votes.Clone()

	total := make(protocol.Votes)
	for _, snapshot := range p.contributions {
		for choice, n := range snapshot {
			total[choice] += n
		}
	}
	p.total = total
}

func (p *poll) snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	contributors := make([]string, 0, len(p.contributions))
	for id := range p.contributions {
		contributors = append(contributors, id)
	}
	sort.Strings(contributors)

	return Snapshot{
		ID:           p.def.ID,
		RoomID:       p.roomID,
		Title:        p.def.Title,
		State:        p.state,
		Votes:        p.total.Clone(),
		Contributors: contributors,
		Deadline:     p.deadline,
	}
}
