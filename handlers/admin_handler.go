package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/projectcritics/criticoni/services"
)

// AdminHandler exposes housekeeping operations behind a static token.
// Only the deployment's cron jobs and operators ever call these.
type AdminHandler struct {
	roomService services.RoomService
	adminToken  string
}

func NewAdminHandler(roomService services.RoomService, adminToken string) *AdminHandler {
	return &AdminHandler{roomService: roomService, adminToken: adminToken}
}

func (h *AdminHandler) authorize(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	token := r.Header.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

// SweepRooms deletes every room whose live roster is empty.
func (h *AdminHandler) SweepRooms(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(r) {
		forbiddenResponse(w, r, "admin token required")
		return
	}

	deleted, err := h.roomService.SweepEmptyRooms(r.Context())
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"deleted": deleted}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
