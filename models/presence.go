package models

// PresenceRecord is the ephemeral per-member liveness entry for a room.
// It is owned by the connection that announced it and removed by the
// transport layer when that connection drops, not by application code.
type PresenceRecord struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
	JoinedAt int64  `json:"joinedAt"`
}
