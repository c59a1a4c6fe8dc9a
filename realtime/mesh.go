package realtime

import (
	"sync"

	"github.com/projectcritics/criticoni/models"
)

// PeerDirective tells one member what to do about one other member: open a
// connection as initiator, or wait for that member's offer. The initiator
// tie-break keeps any pair from racing duplicate connection attempts
// without central coordination.
type PeerDirective struct {
	UID       string `json:"uid"`
	Username  string `json:"username"`
	Initiator bool   `json:"initiator"`
}

// Initiator returns which of the pair opens the connection: the
// lexicographically smaller identity.
func Initiator(a, b string) string {
	if a < b {
		return a
	}
	return b
}

// PlanFor derives the full-mesh directives for one member from a roster
// snapshot. Self is excluded; every other member appears exactly once.
func PlanFor(self string, roster []models.PresenceRecord) []PeerDirective {
	plan := make([]PeerDirective, 0, len(roster))
	for _, rec := range roster {
		if rec.UID == self {
			continue
		}
		plan = append(plan, PeerDirective{
			UID:       rec.UID,
			Username:  rec.Username,
			Initiator: Initiator(self, rec.UID) == self,
		})
	}
	return plan
}

type pairKey struct {
	a, b string // a < b
}

func keyFor(x, y string) pairKey {
	if x < y {
		return pairKey{x, y}
	}
	return pairKey{y, x}
}

// Pair is one tracked peer link. Losing either member closes the pair;
// track replacement renegotiates in place and leaves it open.
type Pair struct {
	A, B string
}

// Mesh tracks which peer links should exist per room, keyed off the
// presence roster. Observe diffs a new roster against the tracked set and
// reports the pairs to open and to tear down.
type Mesh struct {
	mu    sync.Mutex
	rooms map[string]map[pairKey]bool
}

func NewMesh() *Mesh {
	return &Mesh{rooms: make(map[string]map[pairKey]bool)}
}

// Observe reconciles the tracked link set for roomID with roster. Opened
// pairs are those newly required; closed pairs involved a departed member.
func (m *Mesh) Observe(roomID string, roster []models.PresenceRecord) (opened, closed []Pair) {
	want := make(map[pairKey]bool)
	for i := 0; i < len(roster); i++ {
		for j := i + 1; j < len(roster); j++ {
			want[keyFor(roster[i].UID, roster[j].UID)] = true
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	have := m.rooms[roomID]
	if have == nil {
		have = make(map[pairKey]bool)
	}

	for k := range want {
		if !have[k] {
			opened = append(opened, Pair{A: k.a, B: k.b})
		}
	}
	for k := range have {
		if !want[k] {
			closed = append(closed, Pair{A: k.a, B: k.b})
		}
	}

	if len(want) == 0 {
		delete(m.rooms, roomID)
	} else {
		m.rooms[roomID] = want
	}
	return opened, closed
}

// Links returns the currently tracked pairs for a room.
func (m *Mesh) Links(roomID string) []Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	pairs := make([]Pair, 0, len(m.rooms[roomID]))
	for k := range m.rooms[roomID] {
		pairs = append(pairs, Pair{A: k.a, B: k.b})
	}
	return pairs
}

// Drop removes all tracked links for a room (room deleted).
func (m *Mesh) Drop(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
}
