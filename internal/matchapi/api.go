package matchapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamemeet/gamemeet/internal/matching"
)

type ErrorCode int

const (
	ErrInvalidCode ErrorCode = iota
	// ErrMalformed covers requests that never reach the engine: bad JSON,
	// invalid criterion, missing room id.
	ErrMalformed
	// ErrNotRegistered means the caller has no active match request.
	ErrNotRegistered
	// ErrNoSuchRoom means the room id is unknown or belongs to someone else.
	ErrNoSuchRoom
	ErrBadToken
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("match error %v: %v", e.Code, e.Message)
}

var _ error = (*Error)(nil)

func MatchesError(err error, code ErrorCode) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsErrorRetriable reports whether a failed call may be retried as-is.
// Typed API errors are definitive verdicts; everything else is assumed to be
// a transport failure.
func IsErrorRetriable(err error) bool {
	var apiErr *Error
	return !errors.As(err, &apiErr)
}

type RegisterRequest struct {
	Criterion matching.Criterion `json:"criterion"`
}

type RegisterResponse struct {
	IsRegistered bool `json:"is_registered"`
}

type UnregisterRequest struct{}

type UnregisterResponse struct {
	IsUnregistered bool `json:"is_unregistered"`
}

type GetRoomRequest struct{}

type GetRoomResponse struct {
	IsMatched bool   `json:"is_matched"`
	RoomID    string `json:"room_id,omitempty"`
	RoomName  string `json:"room_name,omitempty"`
}

type ConfirmRequest struct {
	RoomID string `json:"room_id"`
}

type ConfirmResponse struct {
	IsConfirmed bool `json:"is_confirmed"`
}

type CancelConfirmRequest struct{}

type CancelConfirmResponse struct {
	IsCancelled bool `json:"is_cancelled"`
}

type GetCompletedRequest struct {
	RoomID string `json:"room_id"`
}

type GetCompletedResponse struct {
	IsCompleted bool `json:"is_completed"`
	IsCancelled bool `json:"is_cancelled"`
}

// API is the poll-driven matchmaking surface. One call performs exactly one
// engine operation; the client re-polls GetRoom until matched and
// GetCompleted until the quorum verdict is final.
type API interface {
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
	Unregister(ctx context.Context, req *UnregisterRequest) (*UnregisterResponse, error)
	GetRoom(ctx context.Context, req *GetRoomRequest) (*GetRoomResponse, error)
	Confirm(ctx context.Context, req *ConfirmRequest) (*ConfirmResponse, error)
	CancelConfirm(ctx context.Context, req *CancelConfirmRequest) (*CancelConfirmResponse, error)
	GetCompleted(ctx context.Context, req *GetCompletedRequest) (*GetCompletedResponse, error)
}
