package session

import (
	"time"

	"github.com/gamemeet/gamemeet/internal/matching"
)

const (
	methodStartWait       = "start_wait"
	methodQuitWait        = "quit_wait"
	methodStatus          = "status"
	methodConfirmMatching = "confirm_matching"
)

// clientMessage is one inbound websocket request. Method selects the
// operation; Condition is required for start_wait, RoomID for
// confirm_matching.
type clientMessage struct {
	Method    string              `json:"method"`
	Condition *matching.Criterion `json:"condition,omitempty"`
	RoomID    string              `json:"room_id,omitempty"`
}

// Frame is one outbound websocket message. Every frame carries a
// human-readable message and a timestamp; the other fields are filled when
// they apply.
type Frame struct {
	Message  string `json:"message"`
	Datetime string `json:"datetime"`
	RoomID   string `json:"room_id,omitempty"`
	RoomName string `json:"room_name,omitempty"`
	State    string `json:"state,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newFrame(message string) Frame {
	return Frame{
		Message:  message,
		Datetime: time.Now().UTC().Format(time.RFC3339),
	}
}

func errorFrame(message, detail string) Frame {
	f := newFrame(message)
	f.Error = detail
	return f
}
