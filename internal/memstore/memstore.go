// Package memstore is an in-memory implementation of matching.DB with the
// same semantics as the durable sqlite store: conditional state transitions
// and key-deduplicated room creation. It backs tests and can serve as a
// non-durable store for a single-process deployment.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/util/timeutil"
)

type Store struct {
	mu       sync.Mutex
	requests map[string]matching.Request
	rooms    map[string]matching.Room
	roomKeys map[string]string // room key -> room id
}

var _ matching.DB = (*Store)(nil)

func New() *Store {
	return &Store{
		requests: make(map[string]matching.Request),
		rooms:    make(map[string]matching.Room),
		roomKeys: make(map[string]string),
	}
}

func (s *Store) UpsertRequest(_ context.Context, req matching.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.UserID] = req
	return nil
}

func (s *Store) FindRequest(_ context.Context, userID string) (*matching.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[userID]
	if !ok {
		return nil, nil
	}
	return &req, nil
}

func (s *Store) UpdateRequestState(_ context.Context, userID string, from, to matching.State) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[userID]
	if !ok || req.State != from {
		return false, nil
	}
	req.State = to
	s.requests[userID] = req
	return true, nil
}

func (s *Store) DeactivateRequest(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[userID]
	if !ok || !req.State.Active() {
		return false, nil
	}
	req.State = matching.StateInactive
	s.requests[userID] = req
	return true, nil
}

func (s *Store) ListCandidates(_ context.Context, c matching.Criterion, limit int) ([]matching.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cands []matching.Request
	for _, req := range s.requests {
		if req.State == matching.StateWaiting && req.Criterion == c {
			cands = append(cands, req)
		}
	}
	slices.SortFunc(cands, func(a, b matching.Request) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

func (s *Store) FindMemberRoom(_ context.Context, userID string, notBefore timeutil.UTCTime) (*matching.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *matching.Room
	for id := range s.rooms {
		room := s.rooms[id]
		if !room.Active || !room.HasMember(userID) || room.CreatedAt.Compare(notBefore) < 0 {
			continue
		}
		if best == nil ||
			room.CreatedAt.Compare(best.CreatedAt) > 0 ||
			(room.CreatedAt.Compare(best.CreatedAt) == 0 && room.ID > best.ID) {
			best = &room
		}
	}
	if best == nil {
		return nil, nil
	}
	return cloneRoom(best), nil
}

func (s *Store) CreateRoom(_ context.Context, room matching.Room) (*matching.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.roomKeys[room.Key]; ok {
		existing := s.rooms[id]
		return cloneRoom(&existing), nil
	}
	room.Members = slices.Clone(room.Members)
	s.rooms[room.ID] = room
	s.roomKeys[room.Key] = room.ID
	return cloneRoom(&room), nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (*matching.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return cloneRoom(&room), nil
}

func (s *Store) DeactivateRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[roomID]; ok {
		room.Active = false
		s.rooms[roomID] = room
	}
	return nil
}

func cloneRoom(room *matching.Room) *matching.Room {
	cp := *room
	cp.Members = slices.Clone(room.Members)
	return &cp
}
