package realtime

import (
	"sort"
	"sync"

	"github.com/projectcritics/criticoni/models"
)

// Presence maintains the live set of connected members per room. It is the
// source of truth for "is anyone actually here"; the participants array on
// the room document is only a best-effort display mirror.
//
// Announce returns a release function that must be pre-registered on the
// owning connection's disconnect path, so the record disappears when the
// connection drops without any further client code running.
type Presence struct {
	mu     sync.Mutex
	rooms  map[string]map[string]models.PresenceRecord
	subs   map[string]map[int]func([]models.PresenceRecord)
	nextID int
}

func NewPresence() *Presence {
	return &Presence{
		rooms: make(map[string]map[string]models.PresenceRecord),
		subs:  make(map[string]map[int]func([]models.PresenceRecord)),
	}
}

// Announce writes the liveness record for rec.UID in roomID and returns its
// release function. Release is idempotent and safe to call after the record
// was already removed by another path.
func (p *Presence) Announce(roomID string, rec models.PresenceRecord) (release func()) {
	p.mu.Lock()
	if _, ok := p.rooms[roomID]; !ok {
		p.rooms[roomID] = make(map[string]models.PresenceRecord)
	}
	p.rooms[roomID][rec.UID] = rec
	fns, roster := p.snapshotLocked(roomID)
	p.mu.Unlock()

	notify(fns, roster)

	var once sync.Once
	return func() {
		once.Do(func() { p.Leave(roomID, rec.UID) })
	}
}

// Leave removes the member's record. Voluntary navigation-away uses this
// directly; the automatic release from Announce funnels through it too.
func (p *Presence) Leave(roomID, uid string) {
	p.mu.Lock()
	members, ok := p.rooms[roomID]
	if !ok {
		p.mu.Unlock()
		return
	}
	if _, exists := members[uid]; !exists {
		p.mu.Unlock()
		return
	}
	delete(members, uid)
	if len(members) == 0 {
		delete(p.rooms, roomID)
	}
	fns, roster := p.snapshotLocked(roomID)
	p.mu.Unlock()

	notify(fns, roster)
}

// Subscribe registers fn for roomID roster changes. fn receives the full
// current roster immediately and again after every change, including the
// empty roster that signals the room can be torn down.
func (p *Presence) Subscribe(roomID string, fn func([]models.PresenceRecord)) (cancel func()) {
	p.mu.Lock()
	if _, ok := p.subs[roomID]; !ok {
		p.subs[roomID] = make(map[int]func([]models.PresenceRecord))
	}
	id := p.nextID
	p.nextID++
	p.subs[roomID][id] = fn
	roster := p.rosterLocked(roomID)
	p.mu.Unlock()

	fn(roster)

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if subs, ok := p.subs[roomID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(p.subs, roomID)
			}
		}
	}
}

// Roster returns the current live member set, ordered by join time.
func (p *Presence) Roster(roomID string) []models.PresenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rosterLocked(roomID)
}

func (p *Presence) rosterLocked(roomID string) []models.PresenceRecord {
	members := p.rooms[roomID]
	roster := make([]models.PresenceRecord, 0, len(members))
	for _, rec := range members {
		roster = append(roster, rec)
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].JoinedAt != roster[j].JoinedAt {
			return roster[i].JoinedAt < roster[j].JoinedAt
		}
		return roster[i].UID < roster[j].UID
	})
	return roster
}

func (p *Presence) snapshotLocked(roomID string) ([]func([]models.PresenceRecord), []models.PresenceRecord) {
	subs := p.subs[roomID]
	fns := make([]func([]models.PresenceRecord), 0, len(subs))
	for _, fn := range subs {
		fns = append(fns, fn)
	}
	return fns, p.rosterLocked(roomID)
}

func notify(fns []func([]models.PresenceRecord), roster []models.PresenceRecord) {
	for _, fn := range fns {
		fn(roster)
	}
}
