package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gamemeet/gamemeet/internal/matching"
	"github.com/gamemeet/gamemeet/internal/util/sliceutil"
	"github.com/gamemeet/gamemeet/internal/util/slogx"
	"github.com/gamemeet/gamemeet/internal/util/timeutil"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Options struct {
	Path          string        `toml:"path"`
	Debug         bool          `toml:"debug"`
	SlowThreshold time.Duration `toml:"slow-threshold"`
	BusyTimeout   time.Duration `toml:"busy-timeout"`
	UseWAL        bool          `toml:"use-wal"`
}

func (o *Options) FillDefaults() {
	if o.Path == "" {
		o.Path = "gamemeet.db"
	}
	if o.SlowThreshold == 0 {
		o.SlowThreshold = 200 * time.Millisecond
	}
	if o.BusyTimeout == 0 {
		o.BusyTimeout = 1 * time.Minute
	}
}

// DB is the durable waiting pool and room registry. It is the sole mutator of
// match request and room rows; the engine acts only through the matching.DB
// operations.
type DB struct {
	db  *gorm.DB
	log *slog.Logger
}

var _ matching.DB = (*DB)(nil)

func buildPath(o Options) string {
	var params []string
	if o.UseWAL {
		params = append(params, "_journal_mode=WAL")
		params = append(params, "_synchronous=NORMAL")
	}
	params = append(params, fmt.Sprintf("_busy_timeout=%v", o.BusyTimeout.Milliseconds()))
	params = append(params, "_foreign_keys=1")
	sep := "?"
	if strings.Contains(o.Path, "?") {
		sep = "&"
	}
	return o.Path + sep + strings.Join(params, "&")
}

func New(log *slog.Logger, o Options) (*DB, error) {
	o.FillDefaults()

	log.Info("opening db", slog.String("path", o.Path))
	db, err := gorm.Open(sqlite.Open(buildPath(o)), &gorm.Config{
		Logger: Logger(log, o),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	d := &DB{db: db, log: log}

	if err := db.AutoMigrate(models...); err != nil {
		d.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	log.Info("db opened")
	return d, nil
}

func (d *DB) Close() {
	db, err := d.db.DB()
	if err != nil {
		d.log.Error("could not get underlying db", slogx.Err(err))
		return
	}
	if err := db.Close(); err != nil {
		d.log.Error("could not close db", slogx.Err(err))
	}
}

func (d *DB) UpsertRequest(ctx context.Context, req matching.Request) error {
	row := requestToModel(req)
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert match request: %w", err)
	}
	return nil
}

func (d *DB) FindRequest(ctx context.Context, userID string) (*matching.Request, error) {
	var row MatchRequest
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find match request: %w", err)
	}
	req := modelToRequest(row)
	return &req, nil
}

func (d *DB) UpdateRequestState(ctx context.Context, userID string, from, to matching.State) (bool, error) {
	res := d.db.WithContext(ctx).Model(&MatchRequest{}).
		Where("user_id = ? AND state = ?", userID, int(from)).
		Update("state", int(to))
	if res.Error != nil {
		return false, fmt.Errorf("update request state: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (d *DB) DeactivateRequest(ctx context.Context, userID string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&MatchRequest{}).
		Where("user_id = ? AND state <> ?", userID, int(matching.StateInactive)).
		Update("state", int(matching.StateInactive))
	if res.Error != nil {
		return false, fmt.Errorf("deactivate request: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (d *DB) ListCandidates(ctx context.Context, c matching.Criterion, limit int) ([]matching.Request, error) {
	var rows []MatchRequest
	err := d.db.WithContext(ctx).
		Where("topic = ? AND size = ? AND state = ?", c.Topic, c.Size, int(matching.StateWaiting)).
		Order("submitted_at ASC, user_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return sliceutil.Map(rows, modelToRequest), nil
}

func (d *DB) FindMemberRoom(ctx context.Context, userID string, notBefore timeutil.UTCTime) (*matching.Room, error) {
	var row Room
	err := d.db.WithContext(ctx).Model(&Room{}).
		Joins("JOIN room_members ON room_members.room_id = rooms.id").
		Where("room_members.user_id = ? AND rooms.active = ? AND rooms.created_at >= ?",
			userID, true, notBefore.UTC()).
		Order("rooms.created_at DESC, rooms.id DESC").
		Preload("Members").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find member room: %w", err)
	}
	room := modelToRoom(row)
	return &room, nil
}

func (d *DB) CreateRoom(ctx context.Context, room matching.Room) (*matching.Room, error) {
	var out matching.Room
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := roomToModel(room)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_key"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("insert room: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the duplicate-create race: another member inserted
			// the same member set first. Return the winner.
			var existing Room
			err := tx.Preload("Members").Where("room_key = ?", room.Key).First(&existing).Error
			if err != nil {
				return fmt.Errorf("find existing room: %w", err)
			}
			out = modelToRoom(existing)
			return nil
		}
		members := sliceutil.Map(room.Members, func(userID string) RoomMember {
			return RoomMember{RoomID: room.ID, UserID: userID}
		})
		if err := tx.Create(&members).Error; err != nil {
			return fmt.Errorf("insert room members: %w", err)
		}
		out = room
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &out, nil
}

func (d *DB) GetRoom(ctx context.Context, roomID string) (*matching.Room, error) {
	var row Room
	err := d.db.WithContext(ctx).Preload("Members").Where("id = ?", roomID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	room := modelToRoom(row)
	return &room, nil
}

func (d *DB) DeactivateRoom(ctx context.Context, roomID string) error {
	err := d.db.WithContext(ctx).Model(&Room{}).
		Where("id = ?", roomID).
		Update("active", false).Error
	if err != nil {
		return fmt.Errorf("deactivate room: %w", err)
	}
	return nil
}
