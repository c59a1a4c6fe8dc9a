package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectcritics/criticoni/middleware"
	"github.com/projectcritics/criticoni/services"
)

type RoomHandler struct {
	roomService services.RoomService
}

func NewRoomHandler(roomService services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// Create starts a fresh room for a tournament with the caller as host.
// Every creator gets their own room; there is no dedup by tournament.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		TournamentID string `json:"tournament_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.TournamentID == "" {
		badRequestResponse(w, r, errors.New("tournament_id is required"))
		return
	}

	room, err := h.roomService.Create(r.Context(), input.TournamentID, uid)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *RoomHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "roomID")
	if id == "" {
		badRequestResponse(w, r, errors.New("room id is required"))
		return
	}

	room, err := h.roomService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Leave is the unload fallback: clients fire it from a beacon when the
// page closes, so it accepts an empty body and always answers 204 on
// success. The WS disconnect path handles presence; this only trims the
// participants mirror.
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	uid, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	id := chi.URLParam(r, "roomID")
	if id == "" {
		badRequestResponse(w, r, errors.New("room id is required"))
		return
	}

	if err := h.roomService.RemoveParticipant(r.Context(), id, uid); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
