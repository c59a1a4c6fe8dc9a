package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectcritics/criticoni/models"
	"github.com/projectcritics/criticoni/repositories"
)

type memoryUserRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
	seq     int
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		byEmail: make(map[string]*models.User),
		byID:    make(map[string]*models.User),
	}
}

func (r *memoryUserRepo) Create(_ context.Context, user *models.User) error {
	if _, ok := r.byEmail[user.Email]; ok {
		return repositories.ErrUserEmailConflict
	}
	for _, existing := range r.byID {
		if user.Username != "" && existing.Username == user.Username {
			return repositories.ErrUsernameConflict
		}
	}
	r.seq++
	user.ID = string(rune('0' + r.seq))
	cp := *user
	r.byEmail[user.Email] = &cp
	r.byID[user.ID] = &cp
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *memoryUserRepo) UpdateUsername(_ context.Context, id, username string) error {
	user, ok := r.byID[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	user.Username = username
	return nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newMemoryUserRepo())

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "ada@example.com",
		Username: "ada",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Empty(t, user.PasswordHash, "hash must never leave the service")

	logged, err := svc.Login(context.Background(), LoginInput{
		Email:    "ada@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
	assert.Empty(t, logged.PasswordHash)
}

func TestAuthService_RegisterRejectsShortPassword(t *testing.T) {
	svc := NewAuthService(newMemoryUserRepo())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "ada@example.com",
		Password: "short",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestAuthService_RegisterConflicts(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "ada@example.com", Username: "ada", Password: "correct horse",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "ada@example.com", Username: "other", Password: "correct horse",
	})
	assert.ErrorIs(t, err, ErrAuthEmailTaken)

	_, err = svc.Register(context.Background(), RegisterInput{
		Email: "other@example.com", Username: "ada", Password: "correct horse",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	svc := NewAuthService(newMemoryUserRepo())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "ada@example.com", Password: "correct horse",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginInput{
		Email: "ada@example.com", Password: "wrong horse",
	})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)

	_, err = svc.Login(context.Background(), LoginInput{
		Email: "nobody@example.com", Password: "correct horse",
	})
	assert.ErrorIs(t, err, ErrAuthInvalidCredentials)
}
