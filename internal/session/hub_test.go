package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordConn struct {
	frames []Frame
}

func (c *recordConn) Send(f Frame) {
	c.frames = append(c.frames, f)
}

func TestHub(t *testing.T) {
	hub := NewHub()
	a, b, other := &recordConn{}, &recordConn{}, &recordConn{}

	hub.Join("room-1", a)
	hub.Join("room-1", b)
	hub.Join("room-2", other)

	hub.Broadcast("room-1", newFrame("hello"))
	require.Len(t, a.frames, 1)
	require.Len(t, b.frames, 1)
	require.Empty(t, other.frames)
	require.Equal(t, "hello", a.frames[0].Message)

	hub.Leave("room-1", b)
	hub.Broadcast("room-1", newFrame("again"))
	require.Len(t, a.frames, 2)
	require.Len(t, b.frames, 1)

	// Broadcasting to unknown rooms and leaving twice are no-ops.
	hub.Broadcast("room-3", newFrame("void"))
	hub.Leave("room-1", b)
	hub.Leave("room-1", a)
	hub.Broadcast("room-1", newFrame("empty"))
	require.Len(t, a.frames, 2)
}
