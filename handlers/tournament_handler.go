package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/projectcritics/criticoni/middleware"
	"github.com/projectcritics/criticoni/repositories"
	"github.com/projectcritics/criticoni/services"
)

// maxTournamentUploadBytes bounds the whole multipart form, not a single
// image. 256 images at a few hundred KB each fit comfortably.
const maxTournamentUploadBytes = 128 << 20

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(tournamentService services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

// Create accepts a multipart form: a title field, an optional description
// field, and one images part per bracket entry. Part order decides seed
// order; shuffling happens per room, not here.
func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxTournamentUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequestResponse(w, r, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	input := services.CreateTournamentInput{
		Title:     r.FormValue("title"),
		CreatorID: uid,
	}
	if desc := r.FormValue("description"); desc != "" {
		input.Description = &desc
	}

	files := r.MultipartForm.File["images"]
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("failed to open image %q: %w", header.Filename, err))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			badRequestResponse(w, r, fmt.Errorf("failed to read image %q: %w", header.Filename, err))
			return
		}
		input.Images = append(input.Images, services.ImageUpload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	tournament, err := h.tournamentService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tournamentID")
	if id == "" {
		badRequestResponse(w, r, errors.New("tournament id is required"))
		return
	}

	tournament, err := h.tournamentService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter repositories.ListTournamentsFilter
	if creator := r.URL.Query().Get("creator_id"); creator != "" {
		filter.CreatorID = &creator
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			badRequestResponse(w, r, errors.New("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
