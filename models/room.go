package models

import "time"

// BracketState is the full replicated tournament state. It is treated as an
// immutable value: every mutation goes through the bracket engine and every
// publish replaces the whole value. Partial writes are never merged into it,
// with the single exception of PendingWinner (the animation pre-commit).
type BracketState struct {
	RoundImages      []ImageItem `json:"roundImages"`
	CurrentPairIndex int         `json:"currentPairIndex"`
	Winners          []ImageItem `json:"winners"`
	FinalWinner      *ImageItem  `json:"finalWinner"`
	ShowFinal        bool        `json:"showFinal"`
	OriginalLength   int         `json:"originalLength"`
	PendingWinner    *ImageItem  `json:"pendingWinner"`
}

// Room binds a tournament to a host, a participant roster and the
// in-progress bracket state. Participants is a best-effort display mirror;
// the live presence roster is the source of truth for lifecycle decisions.
type Room struct {
	ID           string        `json:"id" db:"id"`
	TournamentID string        `json:"tournament_id" db:"tournament_id"`
	HostID       string        `json:"host_id" db:"host_id"`
	Participants []string      `json:"participants" db:"-"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	State        *BracketState `json:"state"`
}
