package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projectcritics/criticoni/models"
)

func TestInitiator_LexicographicTieBreak(t *testing.T) {
	require.Equal(t, "alice", Initiator("alice", "bob"))
	require.Equal(t, "alice", Initiator("bob", "alice"))
	require.Equal(t, "a", Initiator("a", "ab"))
}

func TestPlanFor_ExcludesSelfAndMarksInitiator(t *testing.T) {
	roster := []models.PresenceRecord{rec("alice", 1), rec("bob", 2), rec("carol", 3)}

	plan := PlanFor("bob", roster)
	require.Len(t, plan, 2)

	byUID := map[string]PeerDirective{}
	for _, d := range plan {
		byUID[d.UID] = d
	}
	require.False(t, byUID["alice"].Initiator, "alice < bob, so alice initiates towards bob")
	require.True(t, byUID["carol"].Initiator, "bob < carol, so bob initiates towards carol")
}

func TestMesh_ObserveOpensAllPairs(t *testing.T) {
	m := NewMesh()

	opened, closed := m.Observe("room1", []models.PresenceRecord{rec("a", 1), rec("b", 2), rec("c", 3)})
	require.Len(t, opened, 3, "three members form three pairwise links")
	require.Empty(t, closed)
	require.Len(t, m.Links("room1"), 3)
}

func TestMesh_MemberLossClosesOnlyTheirLinks(t *testing.T) {
	m := NewMesh()
	m.Observe("room1", []models.PresenceRecord{rec("a", 1), rec("b", 2), rec("c", 3)})

	opened, closed := m.Observe("room1", []models.PresenceRecord{rec("a", 1), rec("b", 2)})
	require.Empty(t, opened)
	require.Len(t, closed, 2, "both links involving c are torn down")
	for _, p := range closed {
		require.True(t, p.A == "c" || p.B == "c")
	}
	require.Len(t, m.Links("room1"), 1, "the a-b link survives")
}

func TestMesh_JoinOpensOnlyNewLinks(t *testing.T) {
	m := NewMesh()
	m.Observe("room1", []models.PresenceRecord{rec("a", 1), rec("b", 2)})

	opened, closed := m.Observe("room1", []models.PresenceRecord{rec("a", 1), rec("b", 2), rec("c", 3)})
	require.Len(t, opened, 2)
	require.Empty(t, closed)
}

func TestMesh_EmptyRosterDropsRoom(t *testing.T) {
	m := NewMesh()
	m.Observe("room1", []models.PresenceRecord{rec("a", 1), rec("b", 2)})

	_, closed := m.Observe("room1", nil)
	require.Len(t, closed, 1)
	require.Empty(t, m.Links("room1"))
}

func TestMesh_ObserveIsStableUnderRepeats(t *testing.T) {
	m := NewMesh()
	roster := []models.PresenceRecord{rec("a", 1), rec("b", 2)}
	m.Observe("room1", roster)

	opened, closed := m.Observe("room1", roster)
	require.Empty(t, opened, "rebroadcast of the same roster must not reopen links")
	require.Empty(t, closed)
}
