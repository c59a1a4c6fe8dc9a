package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/projectcritics/criticoni/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository is the document-store contract the room lifecycle needs:
// atomic create with a generated id, whole-document state replacement, a
// targeted pending-winner write, and set-union participant bookkeeping so
// concurrent joins and leaves never conflict.
type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id string) (*models.Room, error)
	ListIDsOlderThan(ctx context.Context, minAge time.Duration) ([]string, error)
	Delete(ctx context.Context, id string) error
	AddParticipant(ctx context.Context, roomID, uid string) error
	RemoveParticipant(ctx context.Context, roomID, uid string) error
	ReplaceState(ctx context.Context, roomID string, state *models.BracketState) error
	SetPendingWinner(ctx context.Context, roomID string, winner *models.ImageItem) error
}

type postgresRoomRepository struct {
	db SQLExecutor
}

func NewPostgresRoomRepository(db *sql.DB) RoomRepository {
	return &postgresRoomRepository{db: db}
}

func (r *postgresRoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	state, err := json.Marshal(room.State)
	if err != nil {
		return fmt.Errorf("failed to encode room state: %w", err)
	}

	query := `
		INSERT INTO rooms (id, tournament_id, host_id, participants, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	return r.db.QueryRowContext(ctx, query,
		room.ID, room.TournamentID, room.HostID, pq.Array(room.Participants), state,
	).Scan(&room.CreatedAt)
}

func (r *postgresRoomRepository) GetByID(ctx context.Context, id string) (*models.Room, error) {
	query := `
		SELECT id, tournament_id, host_id, participants, state, created_at
		FROM rooms
		WHERE id = $1`

	room := &models.Room{}
	var state []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID, &room.TournamentID, &room.HostID,
		pq.Array(&room.Participants), &state, &room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if len(state) > 0 {
		if err := json.Unmarshal(state, &room.State); err != nil {
			return nil, fmt.Errorf("failed to decode state for room %s: %w", id, err)
		}
	}
	return room, nil
}

// ListIDsOlderThan returns ids of rooms created at least minAge ago. The
// age floor keeps housekeeping from touching rooms whose creator is still
// on the way in.
func (r *postgresRoomRepository) ListIDsOlderThan(ctx context.Context, minAge time.Duration) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM rooms WHERE created_at <= now() - ($1 * interval '1 millisecond')`,
		minAge.Milliseconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresRoomRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoomNotFound)
}

// AddParticipant appends uid to participants only if absent. Each member
// writes only its own entry, so concurrent joins cannot clobber each other.
func (r *postgresRoomRepository) AddParticipant(ctx context.Context, roomID, uid string) error {
	query := `
		UPDATE rooms
		SET participants = array_append(participants, $1)
		WHERE id = $2 AND NOT ($1 = ANY(participants))`

	result, err := r.db.ExecContext(ctx, query, uid, roomID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		// Either already a participant (fine) or the room is gone.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrRoomNotFound
		}
	}
	return nil
}

func (r *postgresRoomRepository) RemoveParticipant(ctx context.Context, roomID, uid string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET participants = array_remove(participants, $1) WHERE id = $2`,
		uid, roomID)
	return err
}

// ReplaceState overwrites the state column wholesale. Partial state writes
// would let subscribers observe a mix of old and new fields, so the only
// targeted update permitted is SetPendingWinner.
func (r *postgresRoomRepository) ReplaceState(ctx context.Context, roomID string, state *models.BracketState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode room state: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET state = $1 WHERE id = $2`, encoded, roomID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoomNotFound)
}

// SetPendingWinner is the first half of the two-phase vote write: a small
// targeted update that every client renders as the selection highlight
// before the advanced state lands.
func (r *postgresRoomRepository) SetPendingWinner(ctx context.Context, roomID string, winner *models.ImageItem) error {
	encoded, err := json.Marshal(winner)
	if err != nil {
		return fmt.Errorf("failed to encode pending winner: %w", err)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET state = jsonb_set(state, '{pendingWinner}', $1::jsonb) WHERE id = $2`,
		encoded, roomID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrRoomNotFound)
}
