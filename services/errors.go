package services

import "errors"

// Shared service errors, mapped to HTTP statuses in the handlers layer.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrInvalidImageCount = errors.New("image count must be one of 2, 4, 6, 8, 16, 32, 64, 128, 256")
	ErrTitleRequired     = errors.New("tournament title is required")
	ErrInvalidVote       = errors.New("vote is not for one of the current pair")
	ErrVoteInFlight      = errors.New("a vote is already being applied")
	ErrPasswordTooShort  = errors.New("password is too short")
	ErrUsernameRequired  = errors.New("username is required")

	// Conflicts
	ErrAuthEmailTaken = errors.New("email is already taken")
	ErrUsernameTaken  = errors.New("username is already taken")

	// Authentication and authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrNotHost                = errors.New("only the room host can vote")

	// Entity-specific not-found (more context than the generic ErrNotFound)
	ErrUserNotFound       = errors.New("user not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrRoomNotFound       = errors.New("room not found")

	// External collaborators
	ErrUploadFailed = errors.New("image upload failed")
)
