package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/projectcritics/criticoni/models"
	"github.com/projectcritics/criticoni/repositories"
)

type UserService interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateUsername(ctx context.Context, id, username string) error
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) UpdateUsername(ctx context.Context, id, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if err := s.userRepo.UpdateUsername(ctx, id, username); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserNotFound):
			return ErrUserNotFound
		case errors.Is(err, repositories.ErrUsernameConflict):
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to update username for %s: %w", id, err)
	}
	return nil
}
