package realtime

import (
	"encoding/json"

	"github.com/projectcritics/criticoni/models"
)

// Server-to-client message types.
const (
	TypeRoomUpdated     = "ROOM_UPDATED"
	TypeRoomDeleted     = "ROOM_DELETED"
	TypePresenceUpdated = "PRESENCE_UPDATED"
	TypeMeshPeers       = "MESH_PEERS"
	TypeSignal          = "SIGNAL"
	TypeError           = "ERROR"
)

// Client-to-server message types.
const (
	TypeVote  = "VOTE"
	TypeLeave = "LEAVE"
	// TypeSignal is shared: clients send signals through the same envelope.
)

// ServerMessage is the single frame format pushed to clients. Only the
// fields relevant to Type are set; clients must null-check nested fields,
// since a room document can be observed in a transient partial shape right
// after creation.
type ServerMessage struct {
	Type   string                  `json:"type"`
	RoomID string                  `json:"room_id,omitempty"`
	Room   *models.Room            `json:"room,omitempty"`
	Roster []models.PresenceRecord `json:"roster,omitempty"`
	Peers  []PeerDirective         `json:"peers,omitempty"`
	Signal *Envelope               `json:"signal,omitempty"`
	Error  string                  `json:"error,omitempty"`
}

// ClientMessage is what room members send over the socket: a vote (host
// only), a signaling envelope addressed to another member, or an explicit
// leave ahead of closing the connection.
type ClientMessage struct {
	Type    string            `json:"type"`
	Image   *models.ImageItem `json:"image,omitempty"`
	To      string            `json:"to,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}
