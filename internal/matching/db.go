package matching

import (
	"context"
	"errors"

	"github.com/gamemeet/gamemeet/internal/util/timeutil"
)

var (
	ErrNotRegistered = errors.New("no active match request")
	ErrNoSuchRoom    = errors.New("no such room")
)

// DB persists match requests (the waiting pool) and rooms (the room
// registry). The store is the sole mutator of both; the engine goes through
// these operations and never touches rows directly.
//
// All state transitions are conditional: an operation that finds its
// precondition already violated reports false instead of failing, since under
// concurrency "someone else did it first" is a routine outcome.
type DB interface {
	// UpsertRequest replaces the participant's request, keyed by user id.
	UpsertRequest(ctx context.Context, req Request) error
	// FindRequest returns the participant's request in any state, or nil.
	FindRequest(ctx context.Context, userID string) (*Request, error)
	// UpdateRequestState atomically moves the request from one state to
	// another. Returns false if the request is absent or not in `from`.
	UpdateRequestState(ctx context.Context, userID string, from, to State) (bool, error)
	// DeactivateRequest moves any non-inactive request to Inactive.
	// Returns false if there was nothing to deactivate.
	DeactivateRequest(ctx context.Context, userID string) (bool, error)
	// ListCandidates returns waiting requests for the criterion, ordered by
	// submission time and then by user id (a total order, so concurrent
	// evaluators agree on the window), capped at limit.
	ListCandidates(ctx context.Context, c Criterion, limit int) ([]Request, error)

	// FindMemberRoom returns the most recently created active room that
	// contains the participant and was created at notBefore or later, or nil.
	FindMemberRoom(ctx context.Context, userID string, notBefore timeutil.UTCTime) (*Room, error)
	// CreateRoom inserts the room unless a room with the same Key already
	// exists, in which case the existing room is returned instead.
	CreateRoom(ctx context.Context, room Room) (*Room, error)
	// GetRoom returns the room by id, or nil.
	GetRoom(ctx context.Context, roomID string) (*Room, error)
	// DeactivateRoom clears the active flag. Idempotent.
	DeactivateRoom(ctx context.Context, roomID string) error
}
