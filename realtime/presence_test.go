package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projectcritics/criticoni/models"
)

func rec(uid string, joined int64) models.PresenceRecord {
	return models.PresenceRecord{UID: uid, Username: "user-" + uid, JoinedAt: joined}
}

func TestPresence_SubscribeDeliversImmediatelyAndOnChange(t *testing.T) {
	p := NewPresence()

	var rosters [][]models.PresenceRecord
	cancel := p.Subscribe("room1", func(r []models.PresenceRecord) {
		rosters = append(rosters, r)
	})
	defer cancel()

	require.Len(t, rosters, 1, "subscribe must fire once immediately")
	require.Empty(t, rosters[0])

	release := p.Announce("room1", rec("alice", 1))
	require.Len(t, rosters, 2)
	require.Equal(t, "alice", rosters[1][0].UID)

	release()
	require.Len(t, rosters, 3)
	require.Empty(t, rosters[2], "empty roster must be delivered, it drives teardown")
}

func TestPresence_ReleaseIsIdempotent(t *testing.T) {
	p := NewPresence()

	changes := 0
	cancel := p.Subscribe("room1", func([]models.PresenceRecord) { changes++ })
	defer cancel()

	release := p.Announce("room1", rec("alice", 1))
	release()
	release()
	p.Leave("room1", "alice") // explicit leave after automatic removal already fired

	// initial + announce + one removal; later calls must not re-notify
	require.Equal(t, 3, changes)
}

func TestPresence_RosterOrderedByJoinTime(t *testing.T) {
	p := NewPresence()
	p.Announce("room1", rec("zed", 1))
	p.Announce("room1", rec("amy", 2))
	p.Announce("room1", rec("bob", 2))

	roster := p.Roster("room1")
	require.Equal(t, []string{"zed", "amy", "bob"}, []string{roster[0].UID, roster[1].UID, roster[2].UID})
}

func TestPresence_RoomsAreIsolated(t *testing.T) {
	p := NewPresence()
	p.Announce("room1", rec("alice", 1))
	p.Announce("room2", rec("bob", 1))

	require.Len(t, p.Roster("room1"), 1)
	require.Len(t, p.Roster("room2"), 1)
	p.Leave("room1", "alice")
	require.Empty(t, p.Roster("room1"))
	require.Len(t, p.Roster("room2"), 1)
}

func TestPresence_CancelledSubscriberStopsReceiving(t *testing.T) {
	p := NewPresence()

	calls := 0
	cancel := p.Subscribe("room1", func([]models.PresenceRecord) { calls++ })
	cancel()

	p.Announce("room1", rec("alice", 1))
	require.Equal(t, 1, calls, "only the immediate delivery before cancel")
}
