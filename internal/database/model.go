package database

import (
	"slices"

	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/util/timeutil"
)

type MatchRequest struct {
	UserID      string `gorm:"primaryKey"`
	Topic       string `gorm:"index:idx_match_requests_criterion"`
	Size        int    `gorm:"index:idx_match_requests_criterion"`
	SubmittedAt timeutil.UTCTime
	State       int `gorm:"index"`
}

type Room struct {
	ID        string `gorm:"primaryKey"`
	RoomKey   string `gorm:"uniqueIndex"`
	Name      string
	CreatedAt timeutil.UTCTime `gorm:"index"`
	Active    bool
	Members   []RoomMember `gorm:"foreignKey:RoomID"`
}

type RoomMember struct {
	RoomID string `gorm:"primaryKey"`
	UserID string `gorm:"primaryKey;index"`
}

var models = []any{
	&MatchRequest{},
	&Room{},
	&RoomMember{},
}

func requestToModel(req matching.Request) MatchRequest {
	return MatchRequest{
		UserID:      req.UserID,
		Topic:       req.Criterion.Topic,
		Size:        req.Criterion.Size,
		SubmittedAt: req.SubmittedAt,
		State:       int(req.State),
	}
}

func modelToRequest(row MatchRequest) matching.Request {
	return matching.Request{
		UserID:      row.UserID,
		Criterion:   matching.Criterion{Topic: row.Topic, Size: row.Size},
		SubmittedAt: row.SubmittedAt,
		State:       matching.State(row.State),
	}
}

func roomToModel(room matching.Room) Room {
	return Room{
		ID:        room.ID,
		RoomKey:   room.Key,
		Name:      room.Name,
		CreatedAt: room.CreatedAt,
		Active:    room.Active,
	}
}

func modelToRoom(row Room) matching.Room {
	members := make([]string, len(row.Members))
	for i, m := range row.Members {
		members[i] = m.UserID
	}
	slices.Sort(members)
	return matching.Room{
		ID:        row.ID,
		Name:      row.Name,
		Key:       row.RoomKey,
		Members:   members,
		CreatedAt: row.CreatedAt,
		Active:    row.Active,
	}
}
