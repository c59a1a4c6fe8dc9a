package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectcritics/criticoni/models"
	"github.com/projectcritics/criticoni/storage"
)

type fakeUploader struct {
	mu      sync.Mutex
	keys    []string
	failOn  string
	baseURL string
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, _ io.Reader) (*storage.UploadResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.failOn != "" && strings.Contains(key, u.failOn) {
		return nil, errors.New("bucket unavailable")
	}
	u.keys = append(u.keys, key)
	return &storage.UploadResult{Key: key, Location: u.baseURL + "/" + key}, nil
}

func (u *fakeUploader) Delete(_ context.Context, _ string) error { return nil }

func (u *fakeUploader) GetPublicURL(key string) string { return u.baseURL + "/" + key }

func uploads(n int) []ImageUpload {
	out := make([]ImageUpload, n)
	for i := range out {
		out[i] = ImageUpload{
			Name:        "img" + string(rune('a'+i)),
			ContentType: "image/png",
			Data:        []byte{0x89, 0x50},
		}
	}
	return out
}

func newTournamentFixture(uploader storage.FileUploader) (TournamentService, *memoryTournamentRepo) {
	repo := &memoryTournamentRepo{tournaments: make(map[string]*models.Tournament)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTournamentService(repo, uploader, logger), repo
}

func TestTournamentService_Create(t *testing.T) {
	uploader := &fakeUploader{baseURL: "https://cdn.test"}
	svc, _ := newTournamentFixture(uploader)

	tournament, err := svc.Create(context.Background(), CreateTournamentInput{
		Title:     "  Best Poster  ",
		CreatorID: "u1",
		Images:    uploads(4),
	})
	require.NoError(t, err)
	assert.Equal(t, "Best Poster", tournament.Title)
	require.Len(t, tournament.Images, 4)
	for i, img := range tournament.Images {
		assert.Equal(t, uploads(4)[i].Name, img.Name)
		assert.True(t, strings.HasPrefix(img.URL, "https://cdn.test/tournaments/"), img.URL)
		assert.True(t, strings.HasSuffix(img.URL, ".png"), img.URL)
	}
	assert.Len(t, uploader.keys, 4)
}

func TestTournamentService_CreateRequiresTitle(t *testing.T) {
	svc, _ := newTournamentFixture(&fakeUploader{baseURL: "https://cdn.test"})

	_, err := svc.Create(context.Background(), CreateTournamentInput{
		Title:  "   ",
		Images: uploads(4),
	})
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestTournamentService_CreateRejectsBadImageCounts(t *testing.T) {
	svc, _ := newTournamentFixture(&fakeUploader{baseURL: "https://cdn.test"})

	for _, n := range []int{0, 1, 3, 5, 7, 9, 12, 100} {
		_, err := svc.Create(context.Background(), CreateTournamentInput{
			Title:  "Cup",
			Images: uploads(n),
		})
		assert.ErrorIs(t, err, ErrInvalidImageCount, "count %d must be rejected", n)
	}
}

func TestTournamentService_CreateFailedUploadSavesNothing(t *testing.T) {
	uploader := &fakeUploader{baseURL: "https://cdn.test", failOn: "/2."}
	svc, repo := newTournamentFixture(uploader)

	_, err := svc.Create(context.Background(), CreateTournamentInput{
		Title:  "Cup",
		Images: uploads(4),
	})
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.Empty(t, repo.tournaments, "no definition may be saved on a failed upload")
}

func TestTournamentService_GetByIDUnknown(t *testing.T) {
	svc, _ := newTournamentFixture(&fakeUploader{baseURL: "https://cdn.test"})

	_, err := svc.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
