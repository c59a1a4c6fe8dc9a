package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/projectcritics/criticoni/bracket"
	"github.com/projectcritics/criticoni/models"
	"github.com/projectcritics/criticoni/realtime"
	"github.com/projectcritics/criticoni/repositories"
)

const (
	// DefaultAnimationDelay is how long every client gets to render the
	// pending-winner highlight before the advanced state is published.
	DefaultAnimationDelay = 450 * time.Millisecond

	// DefaultEmptyRoomGrace absorbs quick reconnects (page refresh) before
	// an empty room is actually deleted.
	DefaultEmptyRoomGrace = 1700 * time.Millisecond
)

// Broadcaster is the slice of the realtime hub the room service needs.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
	SendToUser(roomID, uid string, message interface{})
}

type RoomService interface {
	// Create runs the creator flow: fresh bracket state from the
	// tournament's images, a new room document with the creator as host.
	// Creation is a single atomic insert, so concurrent creators produce
	// distinct rooms rather than racing an election.
	Create(ctx context.Context, tournamentID, hostUID string) (*models.Room, error)

	// Join registers uid into an existing room and returns the current
	// document. The participants array write is a best-effort mirror; the
	// presence roster is what lifecycle decisions consult.
	Join(ctx context.Context, roomID, uid string) (*models.Room, error)

	Get(ctx context.Context, roomID string) (*models.Room, error)

	// SubmitVote runs the two-phase vote protocol: host check, in-flight
	// gate, targeted pending-winner write, animation delay, then the full
	// advanced state published wholesale.
	SubmitVote(ctx context.Context, roomID, uid string, winner models.ImageItem) error

	// Delete tears the room down. Already-gone rooms are tolerated: the
	// empty-room path races page refreshes by design.
	Delete(ctx context.Context, roomID string) error

	// RemoveParticipant is the maintenance fallback for when a client's
	// unload never ran (also used by the beacon endpoint).
	RemoveParticipant(ctx context.Context, roomID, uid string) error

	// SweepEmptyRooms deletes every room whose live presence roster is
	// empty. Idempotent; used by the background housekeeping scheduler
	// and the admin endpoint.
	SweepEmptyRooms(ctx context.Context) (int, error)
}

type roomService struct {
	roomRepo       repositories.RoomRepository
	tournamentRepo repositories.TournamentRepository
	presence       *realtime.Presence
	mesh           *realtime.Mesh
	broadcaster    Broadcaster
	logger         *slog.Logger

	animationDelay time.Duration
	emptyRoomGrace time.Duration

	mu             sync.Mutex
	inFlight       map[string]bool
	watchCancels   map[string]func()
	pendingDeletes map[string]*time.Timer
	occupied       map[string]bool
}

type RoomServiceOption func(*roomService)

// WithAnimationDelay overrides the pending-winner animation window.
func WithAnimationDelay(d time.Duration) RoomServiceOption {
	return func(s *roomService) { s.animationDelay = d }
}

// WithEmptyRoomGrace overrides the empty-room deletion grace delay.
func WithEmptyRoomGrace(d time.Duration) RoomServiceOption {
	return func(s *roomService) { s.emptyRoomGrace = d }
}

func NewRoomService(
	roomRepo repositories.RoomRepository,
	tournamentRepo repositories.TournamentRepository,
	presence *realtime.Presence,
	mesh *realtime.Mesh,
	broadcaster Broadcaster,
	logger *slog.Logger,
	opts ...RoomServiceOption,
) RoomService {
	s := &roomService{
		roomRepo:       roomRepo,
		tournamentRepo: tournamentRepo,
		presence:       presence,
		mesh:           mesh,
		broadcaster:    broadcaster,
		logger:         logger,
		animationDelay: DefaultAnimationDelay,
		emptyRoomGrace: DefaultEmptyRoomGrace,
		inFlight:       make(map[string]bool),
		watchCancels:   make(map[string]func()),
		pendingDeletes: make(map[string]*time.Timer),
		occupied:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *roomService) Create(ctx context.Context, tournamentID, hostUID string) (*models.Room, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %s: %w", tournamentID, err)
	}

	state, err := bracket.Initialize(tournament.Images)
	if err != nil {
		return nil, fmt.Errorf("cannot start tournament %s: %w", tournamentID, err)
	}

	room := &models.Room{
		TournamentID: tournamentID,
		HostID:       hostUID,
		Participants: []string{hostUID},
		State:        &state,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	s.watchPresence(room.ID)
	s.logger.Info("room created",
		slog.String("room_id", room.ID),
		slog.String("tournament_id", tournamentID),
		slog.String("host", hostUID))
	return room, nil
}

func (s *roomService) Join(ctx context.Context, roomID, uid string) (*models.Room, error) {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	// Best-effort display mirror; never consulted for lifecycle.
	if err := s.roomRepo.AddParticipant(ctx, roomID, uid); err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		s.logger.Warn("failed to mirror participant",
			slog.String("room_id", roomID), slog.String("uid", uid), slog.Any("error", err))
	} else {
		room, err = s.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
	}

	s.watchPresence(roomID)
	return room, nil
}

func (s *roomService) Get(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	return room, nil
}

func (s *roomService) SubmitVote(ctx context.Context, roomID, uid string, winner models.ImageItem) error {
	// The gate is taken before the state read so the vote always validates
	// against the latest published state, never one fetched while a
	// previous vote was still publishing.
	s.mu.Lock()
	if s.inFlight[roomID] {
		s.mu.Unlock()
		return ErrVoteInFlight
	}
	s.inFlight[roomID] = true
	s.mu.Unlock()

	room, err := s.Get(ctx, roomID)
	if err != nil {
		s.clearInFlight(roomID)
		return err
	}
	if room.HostID != uid {
		s.clearInFlight(roomID)
		return ErrNotHost
	}
	if room.State == nil {
		s.clearInFlight(roomID)
		return ErrInvalidVote
	}

	advanced, err := bracket.SubmitVote(*room.State, winner)
	if err != nil {
		s.clearInFlight(roomID)
		return ErrInvalidVote
	}

	// Phase one: the targeted pending-winner write every client animates.
	if err := s.roomRepo.SetPendingWinner(ctx, roomID, &winner); err != nil {
		s.clearInFlight(roomID)
		if errors.Is(err, repositories.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to write pending winner: %w", err)
	}
	pending := *room
	st := *room.State
	st.PendingWinner = &winner
	pending.State = &st
	s.broadcaster.BroadcastToRoom(roomID, realtime.ServerMessage{
		Type: realtime.TypeRoomUpdated, RoomID: roomID, Room: &pending,
	})

	// Phase two, after the shared animation window: publish the advanced
	// state wholesale with the pending winner cleared. The request context
	// is gone by then; deletion races are tolerated and logged only.
	time.AfterFunc(s.animationDelay, func() {
		defer s.clearInFlight(roomID)

		if err := s.roomRepo.ReplaceState(context.Background(), roomID, &advanced); err != nil {
			s.logger.Warn("failed to publish advanced state",
				slog.String("room_id", roomID), slog.Any("error", err))
			return
		}
		final := *room
		finalState := advanced
		final.State = &finalState
		s.broadcaster.BroadcastToRoom(roomID, realtime.ServerMessage{
			Type: realtime.TypeRoomUpdated, RoomID: roomID, Room: &final,
		})
	})
	return nil
}

func (s *roomService) clearInFlight(roomID string) {
	s.mu.Lock()
	delete(s.inFlight, roomID)
	s.mu.Unlock()
}

func (s *roomService) Delete(ctx context.Context, roomID string) error {
	err := s.roomRepo.Delete(ctx, roomID)
	if err != nil && !errors.Is(err, repositories.ErrRoomNotFound) {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}

	s.broadcaster.BroadcastToRoom(roomID, realtime.ServerMessage{
		Type: realtime.TypeRoomDeleted, RoomID: roomID,
	})
	s.mesh.Drop(roomID)

	s.mu.Lock()
	if cancel, ok := s.watchCancels[roomID]; ok {
		delete(s.watchCancels, roomID)
		defer cancel() // after unlock: cancel takes the presence lock
	}
	if timer, ok := s.pendingDeletes[roomID]; ok {
		timer.Stop()
		delete(s.pendingDeletes, roomID)
	}
	delete(s.inFlight, roomID)
	delete(s.occupied, roomID)
	s.mu.Unlock()

	if err == nil {
		s.logger.Info("room deleted", slog.String("room_id", roomID))
	}
	return nil
}

func (s *roomService) RemoveParticipant(ctx context.Context, roomID, uid string) error {
	err := s.roomRepo.RemoveParticipant(ctx, roomID, uid)
	if err != nil && !errors.Is(err, repositories.ErrRoomNotFound) {
		return fmt.Errorf("failed to remove participant %s from room %s: %w", uid, roomID, err)
	}
	return nil
}

func (s *roomService) SweepEmptyRooms(ctx context.Context) (int, error) {
	// Rooms younger than the grace window are skipped: an empty roster on
	// one of those means the creator has not finished connecting yet, not
	// that the room was abandoned.
	ids, err := s.roomRepo.ListIDsOlderThan(ctx, s.emptyRoomGrace)
	if err != nil {
		return 0, fmt.Errorf("failed to list rooms: %w", err)
	}

	deleted := 0
	for _, id := range ids {
		if len(s.presence.Roster(id)) > 0 {
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			s.logger.Warn("sweep failed to delete room",
				slog.String("room_id", id), slog.Any("error", err))
			continue
		}
		deleted++
	}
	return deleted, nil
}

// watchPresence installs the per-room roster observer. It pushes roster
// and per-member mesh directives on every change and arms the grace-delayed
// teardown when the roster empties. Idempotent per room.
func (s *roomService) watchPresence(roomID string) {
	s.mu.Lock()
	if _, ok := s.watchCancels[roomID]; ok {
		s.mu.Unlock()
		return
	}
	// Reserve the slot before subscribing so a concurrent watcher backs off.
	s.watchCancels[roomID] = func() {}
	s.mu.Unlock()

	cancel := s.presence.Subscribe(roomID, func(roster []models.PresenceRecord) {
		s.onRosterChange(roomID, roster)
	})

	s.mu.Lock()
	if _, ok := s.watchCancels[roomID]; ok {
		s.watchCancels[roomID] = cancel
		s.mu.Unlock()
		return
	}
	// Room was deleted while we were subscribing.
	s.mu.Unlock()
	cancel()
}

func (s *roomService) onRosterChange(roomID string, roster []models.PresenceRecord) {
	s.broadcaster.BroadcastToRoom(roomID, realtime.ServerMessage{
		Type: realtime.TypePresenceUpdated, RoomID: roomID, Roster: roster,
	})

	// Fresh plans are pushed only when the link set actually changed, so a
	// redundant roster notification does not make every client renegotiate.
	opened, closed := s.mesh.Observe(roomID, roster)
	if len(opened)+len(closed) > 0 {
		s.logger.Debug("mesh reconciled",
			slog.String("room_id", roomID),
			slog.Int("opened", len(opened)),
			slog.Int("closed", len(closed)))
		for _, rec := range roster {
			s.broadcaster.SendToUser(roomID, rec.UID, realtime.ServerMessage{
				Type: realtime.TypeMeshPeers, RoomID: roomID,
				Peers: realtime.PlanFor(rec.UID, roster),
			})
		}
	}

	if len(roster) > 0 {
		s.mu.Lock()
		s.occupied[roomID] = true
		if timer, ok := s.pendingDeletes[roomID]; ok {
			timer.Stop()
			delete(s.pendingDeletes, roomID)
		}
		s.mu.Unlock()
		return
	}

	// Arm the grace-delayed teardown only when the room transitions from
	// occupied to empty. A room nobody has connected to yet keeps waiting
	// for its creator; abandoned ones are the sweeper's job. The timer
	// re-checks the roster when it fires, so a refresh that reconnects in
	// time wins.
	s.mu.Lock()
	if !s.occupied[roomID] {
		s.mu.Unlock()
		return
	}
	if _, ok := s.pendingDeletes[roomID]; ok {
		s.mu.Unlock()
		return
	}
	s.pendingDeletes[roomID] = time.AfterFunc(s.emptyRoomGrace, func() {
		s.mu.Lock()
		delete(s.pendingDeletes, roomID)
		s.mu.Unlock()

		if len(s.presence.Roster(roomID)) > 0 {
			return
		}
		if err := s.Delete(context.Background(), roomID); err != nil {
			s.logger.Warn("failed to delete empty room",
				slog.String("room_id", roomID), slog.Any("error", err))
		}
	})
	s.mu.Unlock()
}
