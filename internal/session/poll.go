package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gamemeet/gamemeet/internal/matchapi"
	"github.com/gamemeet/gamemeet/internal/matching"
)

// PollServer drives the matchmaking engine through the stateless poll API.
// Every call is one engine operation; clients re-poll GetRoom and
// GetCompleted themselves, so the server keeps no per-client state between
// calls.
type PollServer struct {
	svc *matching.Service
}

var _ matchapi.Server = (*PollServer)(nil)

func NewPollServer(svc *matching.Service) *PollServer {
	return &PollServer{svc: svc}
}

func (s *PollServer) Register(
	ctx context.Context, log *slog.Logger, userID string, req *matchapi.RegisterRequest,
) (*matchapi.RegisterResponse, error) {
	if err := req.Criterion.Validate(); err != nil {
		return nil, &matchapi.Error{Code: matchapi.ErrMalformed, Message: err.Error()}
	}
	ok, err := s.svc.Register(ctx, userID, req.Criterion)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &matchapi.RegisterResponse{IsRegistered: ok}, nil
}

func (s *PollServer) Unregister(
	ctx context.Context, log *slog.Logger, userID string, req *matchapi.UnregisterRequest,
) (*matchapi.UnregisterResponse, error) {
	ok, err := s.svc.Unregister(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unregister: %w", err)
	}
	return &matchapi.UnregisterResponse{IsUnregistered: ok}, nil
}

func (s *PollServer) GetRoom(
	ctx context.Context, log *slog.Logger, userID string, req *matchapi.GetRoomRequest,
) (*matchapi.GetRoomResponse, error) {
	room, err := s.svc.FindRoom(ctx, userID)
	if err != nil {
		if errors.Is(err, matching.ErrNotRegistered) {
			return nil, &matchapi.Error{Code: matchapi.ErrNotRegistered, Message: "not registered"}
		}
		return nil, fmt.Errorf("find room: %w", err)
	}
	if room == nil {
		return &matchapi.GetRoomResponse{IsMatched: false}, nil
	}
	return &matchapi.GetRoomResponse{
		IsMatched: true,
		RoomID:    room.ID,
		RoomName:  room.Name,
	}, nil
}

func (s *PollServer) Confirm(
	ctx context.Context, log *slog.Logger, userID string, req *matchapi.ConfirmRequest,
) (*matchapi.ConfirmResponse, error) {
	if req.RoomID == "" {
		return nil, &matchapi.Error{Code: matchapi.ErrMalformed, Message: "empty room id"}
	}
	ok, err := s.svc.Confirm(ctx, req.RoomID, userID)
	if err != nil {
		if errors.Is(err, matching.ErrNoSuchRoom) {
			return nil, &matchapi.Error{Code: matchapi.ErrNoSuchRoom, Message: "no such room"}
		}
		return nil, fmt.Errorf("confirm: %w", err)
	}
	return &matchapi.ConfirmResponse{IsConfirmed: ok}, nil
}

func (s *PollServer) CancelConfirm(
	ctx context.Context, log *slog.Logger, userID string, req *matchapi.CancelConfirmRequest,
) (*matchapi.CancelConfirmResponse, error) {
	ok, err := s.svc.CancelConfirm(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cancel confirm: %w", err)
	}
	return &matchapi.CancelConfirmResponse{IsCancelled: ok}, nil
}

func (s *PollServer) GetCompleted(
	ctx context.Context, log *slog.Logger, userID string, req *matchapi.GetCompletedRequest,
) (*matchapi.GetCompletedResponse, error) {
	if req.RoomID == "" {
		return nil, &matchapi.Error{Code: matchapi.ErrMalformed, Message: "empty room id"}
	}
	callerReq, err := s.svc.Request(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	if callerReq == nil {
		return nil, &matchapi.Error{Code: matchapi.ErrNotRegistered, Message: "not registered"}
	}
	room, err := s.svc.Room(ctx, req.RoomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if room == nil || !room.HasMember(userID) {
		return nil, &matchapi.Error{Code: matchapi.ErrNoSuchRoom, Message: "no such room"}
	}
	status, err := s.svc.CheckQuorum(ctx, req.RoomID)
	if err != nil {
		return nil, fmt.Errorf("check quorum: %w", err)
	}
	return &matchapi.GetCompletedResponse{
		IsCompleted: status == matching.QuorumComplete,
		IsCancelled: status == matching.QuorumAbandoned,
	}, nil
}
