package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/projectcritics/criticoni/models"
	"github.com/projectcritics/criticoni/repositories"
	"github.com/projectcritics/criticoni/storage"
)

// maxConcurrentUploads bounds parallel object-store writes for one
// tournament creation.
const maxConcurrentUploads = 4

// ImageUpload is one file from the multipart creation form, already read
// into memory (form files are size-capped at the handler).
type ImageUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

type CreateTournamentInput struct {
	Title       string
	Description *string
	CreatorID   string
	Images      []ImageUpload
}

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id string) (*models.Tournament, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		uploader:       uploader,
		logger:         logger,
	}
}

// Create validates the image count against the allow-list, uploads every
// image to the object store and persists the definition. Nothing is saved
// when any upload fails: the user resubmits, already-stored objects are
// orphaned and harmless.
func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTitleRequired
	}
	if !models.ValidImageCount(len(input.Images)) {
		return nil, ErrInvalidImageCount
	}

	items := make([]models.ImageItem, len(input.Images))
	prefix := uuid.NewString()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentUploads)
	for i, img := range input.Images {
		i, img := i, img
		g.Go(func() error {
			key := path.Join("tournaments", prefix, fmt.Sprintf("%d%s", i, extensionFor(img.ContentType)))
			result, err := s.uploader.Upload(gCtx, key, img.ContentType, bytes.NewReader(img.Data))
			if err != nil {
				return fmt.Errorf("%w: image %q: %w", ErrUploadFailed, img.Name, err)
			}
			items[i] = models.ImageItem{URL: result.Location, Name: img.Name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrUploadFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	t := &models.Tournament{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		CreatorID:   input.CreatorID,
		Images:      items,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save tournament: %w", err)
	}

	s.logger.Info("tournament created",
		slog.String("tournament_id", t.ID),
		slog.Int("images", len(t.Images)))
	return t, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %s: %w", id, err)
	}
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	if tournaments == nil {
		return []models.Tournament{}, nil
	}
	return tournaments, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
