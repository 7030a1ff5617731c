package matching

import (
	"context"
	"fmt"
	"log/slog"
)

// Confirm records the participant's confirmation of the given room. The room
// must exist and contain the participant; otherwise ErrNoSuchRoom is
// returned. Returns false when the participant's request is not pending
// (never matched, already confirmed, or already withdrawn) or the room is no
// longer active.
func (s *Service) Confirm(ctx context.Context, roomID, userID string) (bool, error) {
	room, err := s.db.GetRoom(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("get room: %w", err)
	}
	if room == nil || !room.HasMember(userID) {
		return false, ErrNoSuchRoom
	}
	if !room.Active {
		return false, nil
	}
	ok, err := s.db.UpdateRequestState(ctx, userID, StatePending, StateConfirmed)
	if err != nil {
		return false, fmt.Errorf("confirm request: %w", err)
	}
	if ok {
		s.log.Info("confirmed matching",
			slog.String("user_id", userID),
			slog.String("room_id", roomID),
		)
	}
	return ok, nil
}

// CancelConfirm reverts the participant's confirmation, moving the request
// back to Pending. Returns false if the request is not currently confirmed.
// Other members' quorum checks observe Waiting from this point on.
func (s *Service) CancelConfirm(ctx context.Context, userID string) (bool, error) {
	ok, err := s.db.UpdateRequestState(ctx, userID, StateConfirmed, StatePending)
	if err != nil {
		return false, fmt.Errorf("cancel confirmation: %w", err)
	}
	if ok {
		s.log.Info("cancelled confirmation", slog.String("user_id", userID))
	}
	return ok, nil
}

// CheckQuorum resolves every member's request and reports the room's verdict:
// complete iff all members are confirmed, abandoned if any member's request
// is missing or inactive, waiting otherwise. Abandonment deactivates the room
// as a side effect; this is the sole place abandonment is detected, evaluated
// reactively on each confirm or poll rather than by a background sweep.
func (s *Service) CheckQuorum(ctx context.Context, roomID string) (QuorumStatus, error) {
	room, err := s.db.GetRoom(ctx, roomID)
	if err != nil {
		return QuorumWaiting, fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return QuorumWaiting, ErrNoSuchRoom
	}
	if !room.Active {
		return QuorumAbandoned, nil
	}
	status := QuorumComplete
	for _, member := range room.Members {
		req, err := s.db.FindRequest(ctx, member)
		if err != nil {
			return QuorumWaiting, fmt.Errorf("find request: %w", err)
		}
		if req == nil || !req.State.Active() {
			// A member withdrew after matching: unwind the room for
			// everyone. Deactivation is idempotent, so concurrent
			// checks may all take this path.
			if err := s.db.DeactivateRoom(ctx, roomID); err != nil {
				return QuorumWaiting, fmt.Errorf("deactivate room: %w", err)
			}
			s.log.Info("room abandoned",
				slog.String("room_id", roomID),
				slog.String("user_id", member),
			)
			return QuorumAbandoned, nil
		}
		if req.State != StateConfirmed {
			status = QuorumWaiting
		}
	}
	return status, nil
}

// FinishRoom deactivates every member's request after a completed matching
// cycle, so stale requests cannot leak into a later cycle. The room itself
// stays active and usable.
func (s *Service) FinishRoom(ctx context.Context, roomID string) error {
	room, err := s.db.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}
	if room == nil {
		return ErrNoSuchRoom
	}
	for _, member := range room.Members {
		if _, err := s.db.DeactivateRequest(ctx, member); err != nil {
			return fmt.Errorf("deactivate request: %w", err)
		}
	}
	s.log.Info("matching complete", slog.String("room_id", roomID))
	return nil
}
