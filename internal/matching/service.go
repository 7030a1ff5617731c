package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gamemeet/gamemeet/internal/util/timeutil"
)

// Service is the matchmaking engine: waiting-pool registration, the matcher
// and the confirmation tracker, independent of how calls are delivered. Both
// the poll API and the websocket front drive the same Service.
type Service struct {
	db  DB
	log *slog.Logger
}

func NewService(log *slog.Logger, db DB) *Service {
	return &Service{
		db:  db,
		log: log,
	}
}

// Register puts the participant into the waiting pool. Returns false if the
// participant already has an active request; the existing request keeps its
// submission time and queue position. A criterion that fails validation is an
// error, not a false: malformed input must not enter the pool.
func (s *Service) Register(ctx context.Context, userID string, c Criterion) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, fmt.Errorf("validate criterion: %w", err)
	}
	req, err := s.db.FindRequest(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("find request: %w", err)
	}
	if req != nil && req.State.Active() {
		return false, nil
	}
	err = s.db.UpsertRequest(ctx, Request{
		UserID:      userID,
		Criterion:   c,
		SubmittedAt: timeutil.NowUTC(),
		State:       StateWaiting,
	})
	if err != nil {
		return false, fmt.Errorf("upsert request: %w", err)
	}
	s.log.Info("registered match request",
		slog.String("user_id", userID),
		slog.String("criterion", c.String()),
	)
	return true, nil
}

// Unregister withdraws the participant's request, whatever its state.
// Returns false if there is no active request. Withdrawing after a match
// leaves the room to be detected as abandoned by the next quorum check.
func (s *Service) Unregister(ctx context.Context, userID string) (bool, error) {
	ok, err := s.db.DeactivateRequest(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("deactivate request: %w", err)
	}
	if ok {
		s.log.Info("unregistered match request", slog.String("user_id", userID))
	}
	return ok, nil
}

// Request returns the participant's current request in any state, or nil.
func (s *Service) Request(ctx context.Context, userID string) (*Request, error) {
	return s.db.FindRequest(ctx, userID)
}

// Room returns the room by id, or nil.
func (s *Service) Room(ctx context.Context, roomID string) (*Room, error) {
	return s.db.GetRoom(ctx, roomID)
}

// Status reports the participant's request and, if the request is matched,
// the current-cycle room.
func (s *Service) Status(ctx context.Context, userID string) (*Request, *Room, error) {
	req, err := s.db.FindRequest(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("find request: %w", err)
	}
	if req == nil || !req.State.Active() {
		return req, nil, nil
	}
	room, err := s.db.FindMemberRoom(ctx, userID, req.SubmittedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("find member room: %w", err)
	}
	return req, room, nil
}
