package session

import "sync"

// Conn is a connection that can receive pushed frames. Send must not block
// indefinitely; a slow connection drops frames rather than stalling the hub.
type Conn interface {
	Send(f Frame)
}

// Hub groups live websocket connections by room so that quorum events can be
// pushed to every member at once. Connections join a room when their match is
// found and leave on disconnect.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[Conn]struct{}),
	}
}

func (h *Hub) Join(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[roomID]
	if !ok {
		conns = make(map[Conn]struct{})
		h.rooms[roomID] = conns
	}
	conns[c] = struct{}{}
}

func (h *Hub) Leave(roomID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) Broadcast(roomID string, f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.Send(f)
	}
}
