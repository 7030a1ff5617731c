package matching

import (
	"slices"

	"github.com/gamemeet/gamemeet/internal/util/timeutil"
)

// State is the lifecycle state of a participant's match request.
//
// Allowed transitions:
//
//	(register)              -> Waiting
//	Waiting   (matched)     -> Pending
//	Pending   (confirm)     -> Confirmed
//	Confirmed (cancel)      -> Pending
//	any       (unregister)  -> Inactive
type State int

const (
	StateInactive State = iota
	StateWaiting
	StatePending
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateWaiting:
		return "waiting"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

func (s State) Active() bool {
	return s != StateInactive
}

// Request is a participant's match request. At most one request per
// participant exists at a time; re-registration overwrites it.
type Request struct {
	UserID      string
	Criterion   Criterion
	SubmittedAt timeutil.UTCTime
	State       State
}

// Room is a formed group. Membership is immutable after creation; an
// abandoned room is deactivated, never mutated.
type Room struct {
	ID   string
	Name string
	// Key deduplicates concurrent creation: it is derived from the sorted
	// member set plus the cycle watermark, and is unique among rooms.
	Key       string
	Members   []string
	CreatedAt timeutil.UTCTime
	Active    bool
}

func (r *Room) HasMember(userID string) bool {
	return slices.Contains(r.Members, userID)
}

// QuorumStatus is the verdict of a completion check over a room.
type QuorumStatus int

const (
	// QuorumWaiting means at least one member has not confirmed yet.
	QuorumWaiting QuorumStatus = iota
	// QuorumComplete means every member has confirmed.
	QuorumComplete
	// QuorumAbandoned means some member withdrew after matching; the room
	// has been deactivated.
	QuorumAbandoned
)

func (s QuorumStatus) String() string {
	switch s {
	case QuorumWaiting:
		return "waiting"
	case QuorumComplete:
		return "complete"
	case QuorumAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}
