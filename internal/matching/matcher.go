package matching

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gamemeet/gamemeet/internal/util/timeutil"
	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
)

// FindRoom runs one matching attempt for the participant. It returns nil when
// the participant cannot be matched yet (too few compatible candidates, or
// others are ahead in the queue); callers are expected to retry.
//
// Any number of the eligible participants may call FindRoom concurrently.
// The candidate window is computed from a total order (submission time, then
// user id), so all concurrent callers select the same member set; the only
// race left is duplicate creation of the same room, which CreateRoom resolves
// through the room's deduplication key. On success the caller's own request
// is moved to Pending.
func (s *Service) FindRoom(ctx context.Context, userID string) (*Room, error) {
	req, err := s.db.FindRequest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find request: %w", err)
	}
	if req == nil || !req.State.Active() {
		return nil, ErrNotRegistered
	}

	// A room formed by another member's call, or by one of our earlier
	// calls, wins immediately. The submission-time bound keeps rooms from
	// previous cycles out of sight.
	room, err := s.db.FindMemberRoom(ctx, userID, req.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("find member room: %w", err)
	}
	if room != nil {
		if err := s.markPending(ctx, userID); err != nil {
			return nil, err
		}
		return room, nil
	}
	if req.State != StateWaiting {
		// Matched earlier, but the room has since been deactivated.
		return nil, nil
	}

	cands, err := s.db.ListCandidates(ctx, req.Criterion, req.Criterion.Size)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(cands) < req.Criterion.Size {
		return nil, nil
	}
	members := make([]string, len(cands))
	watermark := cands[0].SubmittedAt
	for i, cand := range cands {
		members[i] = cand.UserID
		if cand.SubmittedAt.Compare(watermark) > 0 {
			watermark = cand.SubmittedAt
		}
	}
	if !slices.Contains(members, userID) {
		// Not inside the earliest-waiting window yet.
		return nil, nil
	}

	// Re-check before creating: another member may have won the race since
	// the first lookup.
	room, err = s.db.FindMemberRoom(ctx, userID, req.SubmittedAt)
	if err != nil {
		return nil, fmt.Errorf("find member room: %w", err)
	}
	if room == nil {
		slices.Sort(members)
		room, err = s.db.CreateRoom(ctx, Room{
			ID:        uuid.NewString(),
			Name:      petname.Generate(2, "-"),
			Key:       roomKey(members, watermark),
			Members:   members,
			CreatedAt: timeutil.NowUTC(),
			Active:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		s.log.Info("room formed",
			slog.String("room_id", room.ID),
			slog.String("room_name", room.Name),
			slog.String("criterion", req.Criterion.String()),
			slog.Int("members", len(room.Members)),
		)
	}

	if err := s.markPending(ctx, userID); err != nil {
		return nil, err
	}
	return room, nil
}

func (s *Service) markPending(ctx context.Context, userID string) error {
	// False means the request is already past Waiting; that is fine.
	_, err := s.db.UpdateRequestState(ctx, userID, StateWaiting, StatePending)
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	return nil
}

// roomKey derives the deduplication key for a member set: members must be
// sorted, the watermark is the latest submission time among them. Two
// concurrent creators of the same window compute the same key.
func roomKey(sortedMembers []string, watermark timeutil.UTCTime) string {
	return fmt.Sprintf("%s@%d", strings.Join(sortedMembers, "|"), watermark.UTC().UnixMicro())
}
