package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/projectcritics/criticoni/middleware"
	"github.com/projectcritics/criticoni/models"
	"github.com/projectcritics/criticoni/realtime"
	"github.com/projectcritics/criticoni/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin filtering is delegated to the CORS layer in front; the
		// handshake itself carries a signed token.
		return true
	},
}

type WebSocketHandler struct {
	hub         *realtime.Hub
	presence    *realtime.Presence
	relay       *realtime.Relay
	roomService services.RoomService
	userService services.UserService
	jwtSecret   []byte
	logger      *slog.Logger
}

func NewWebSocketHandler(
	hub *realtime.Hub,
	presence *realtime.Presence,
	relay *realtime.Relay,
	roomService services.RoomService,
	userService services.UserService,
	jwtSecret string,
	logger *slog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		presence:    presence,
		relay:       relay,
		roomService: roomService,
		userService: userService,
		jwtSecret:   []byte(jwtSecret),
		logger:      logger,
	}
}

// ServeWs joins the caller into a room over a single long-lived socket.
// The connection carries everything the room needs in both directions:
// state snapshots, roster changes, mesh directives and signaling frames
// flow down; votes, signals and leaves flow up. Presence release and
// signal inbox cleanup are registered on the disconnect hook before the
// pumps start, so an unclean close (crash, tab gone) still cleans up.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		http.Error(w, "Missing roomID", http.StatusBadRequest)
		return
	}

	// Browsers cannot set headers on a WS handshake, so the token rides
	// in the query string.
	uid, err := middleware.ParseUserID(r.URL.Query().Get("token"), h.jwtSecret)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	room, err := h.roomService.Join(r.Context(), roomID, uid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	username := uid
	if user, err := h.userService.GetByID(r.Context(), uid); err == nil {
		username = user.DisplayName()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection",
			slog.String("room_id", roomID), slog.String("uid", uid), slog.Any("error", err))
		return
	}

	client := &realtime.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: roomID,
		UID:  uid,
	}
	client.Inbound = func(data []byte) {
		h.dispatch(client, data)
	}

	// Stale handshakes from a previous session must never be replayed.
	h.relay.ClearInbox(roomID, uid)
	cancelListen := h.relay.Listen(roomID, uid, func(env realtime.Envelope) {
		h.hub.SendToClient(client, realtime.ServerMessage{
			Type: realtime.TypeSignal, RoomID: roomID, Signal: &env,
		})
	})

	client.Hub.Register <- client
	go client.WritePump()

	// Initial snapshot before the presence announcement, so the client
	// has the document when the first roster frame lands.
	h.hub.SendToClient(client, realtime.ServerMessage{
		Type: realtime.TypeRoomUpdated, RoomID: roomID, Room: room,
	})

	release := h.presence.Announce(roomID, models.PresenceRecord{
		UID:      uid,
		Username: username,
		JoinedAt: time.Now().UnixMilli(),
	})
	client.OnDisconnect = func() {
		cancelListen()
		h.relay.ClearInbox(roomID, uid)
		release()
	}

	client.ReadPump()
}

func (h *WebSocketHandler) dispatch(client *realtime.Client, data []byte) {
	var msg realtime.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(client, "malformed message")
		return
	}

	switch msg.Type {
	case realtime.TypeVote:
		if msg.Image == nil {
			h.sendError(client, "vote requires an image")
			return
		}
		if err := h.roomService.SubmitVote(context.Background(), client.Room, client.UID, *msg.Image); err != nil {
			h.sendError(client, err.Error())
		}

	case realtime.TypeSignal:
		if msg.To == "" || len(msg.Payload) == 0 {
			// Malformed signals are consumed and dropped, never bounced.
			return
		}
		h.relay.Send(client.Room, msg.To, realtime.Envelope{
			From:    client.UID,
			Payload: msg.Payload,
		})

	case realtime.TypeLeave:
		if err := h.roomService.RemoveParticipant(context.Background(), client.Room, client.UID); err != nil {
			h.logger.Warn("failed to remove participant on leave",
				slog.String("room_id", client.Room), slog.String("uid", client.UID), slog.Any("error", err))
		}
		client.Conn.Close()

	default:
		h.sendError(client, "unknown message type")
	}
}

func (h *WebSocketHandler) sendError(client *realtime.Client, message string) {
	h.hub.SendToClient(client, realtime.ServerMessage{
		Type: realtime.TypeError, Error: message,
	})
}
