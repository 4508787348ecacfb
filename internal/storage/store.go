// Package storage writes rooms, events and word statistics to Postgres.
// A Store with a nil connection accepts every call and stores nothing, so
// the server runs the same way with and without a database.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"taboo/internal/db"
	"taboo/internal/game"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB

	// rooms maps the code of a live room to its row id. Entries go away
	// once the room is saved as closed.
	mu    sync.Mutex
	rooms map[string]uint
}

var _ game.Recorder = (*Store)(nil)

func New(conn *gorm.DB) *Store {
	return &Store{db: conn, rooms: make(map[string]uint)}
}

func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

func (s *Store) Ping(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveRoom upserts the room row and its player rows. Players missing from
// the snapshot are marked as left.
func (s *Store) SaveRoom(ctx context.Context, room game.RoomSnapshot) error {
	if !s.Enabled() {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := db.Room{
			Code:         room.Code,
			OwnerID:      room.Owner,
			Status:       string(room.Status),
			MaxPlayers:   room.MaxPlayers,
			RoundsTotal:  room.RoundsTotal,
			RoundSeconds: room.RoundSeconds,
			Difficulty:   string(room.Difficulty),
			CurrentRound: room.CurrentRound,
			LastSeq:      int64(room.Seq),
			CreatedAt:    room.CreatedAt.Truncate(time.Microsecond),
			UpdatedAt:    room.UpdatedAt,
		}
		if room.Closed {
			closedAt := room.UpdatedAt
			record.ClosedAt = &closedAt
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}, {Name: "created_at"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"owner_id", "status", "current_round", "last_seq", "closed_at", "updated_at",
			}),
		}).Create(&record).Error
		if err != nil {
			return fmt.Errorf("upsert room %s: %w", room.Code, err)
		}
		roomID, err := s.roomIDFor(tx, room.Code, record.CreatedAt, record.ID, room.Closed)
		if err != nil {
			return err
		}

		present := make([]string, 0, len(room.Players))
		for _, p := range room.Players {
			present = append(present, p.ID)
			player := db.Player{
				RoomID:         roomID,
				Identity:       p.ID,
				DisplayName:    p.DisplayName,
				IsOwner:        p.Owner,
				ScoreTotal:     p.ScoreTotal,
				CorrectAnswers: p.CorrectAnswers,
				WrongAnswers:   p.WrongAnswers,
				JoinedAt:       p.JoinedAt,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "room_id"}, {Name: "identity"}},
				DoUpdates: clause.Assignments(map[string]any{
					"display_name":    player.DisplayName,
					"is_owner":        player.IsOwner,
					"score_total":     player.ScoreTotal,
					"correct_answers": player.CorrectAnswers,
					"wrong_answers":   player.WrongAnswers,
					"left_at":         nil,
					"updated_at":      room.UpdatedAt,
				}),
			}).Create(&player).Error
			if err != nil {
				return fmt.Errorf("upsert player %s: %w", p.ID, err)
			}
		}

		gone := tx.Model(&db.Player{}).Where("room_id = ? AND left_at IS NULL", roomID)
		if len(present) > 0 {
			gone = gone.Where("identity NOT IN ?", present)
		}
		return gone.Updates(map[string]any{"left_at": room.UpdatedAt, "is_owner": false}).Error
	})
}

// AppendEvents stores public events. Replays of an already stored event id
// are ignored.
func (s *Store) AppendEvents(ctx context.Context, events []game.Event) error {
	if !s.Enabled() || len(events) == 0 {
		return nil
	}
	roomID, err := s.lookupRoomID(ctx, events[0].Room)
	if err != nil {
		return err
	}
	records := make([]db.Event, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", ev.Type, err)
		}
		records = append(records, db.Event{
			RoomID:    roomID,
			Seq:       int64(ev.Seq),
			EventID:   ev.ID,
			Type:      string(ev.Type),
			Payload:   datatypes.JSON(data),
			CreatedAt: ev.At,
		})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error
}

// RecordWordOutcome bumps the usage counters of a word and refreshes its
// success rate. Words that are not in the table are ignored.
func (s *Store) RecordWordOutcome(ctx context.Context, word string, guessed bool) error {
	if !s.Enabled() {
		return nil
	}
	hit := 0
	if guessed {
		hit = 1
	}
	return s.db.WithContext(ctx).Model(&db.Word{}).
		Where("word = ?", word).
		Updates(map[string]any{
			"times_used":    gorm.Expr("times_used + 1"),
			"times_guessed": gorm.Expr("times_guessed + ?", hit),
			"success_rate":  gorm.Expr("(times_guessed + ?)::float / (times_used + 1)", hit),
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (s *Store) PersistFinalScores(ctx context.Context, code string, scores []game.Score) error {
	if !s.Enabled() || len(scores) == 0 {
		return nil
	}
	roomID, err := s.lookupRoomID(ctx, code)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	records := make([]db.FinalScore, 0, len(scores))
	for _, score := range scores {
		records = append(records, db.FinalScore{
			RoomID:         roomID,
			Identity:       score.Player,
			DisplayName:    score.DisplayName,
			Rank:           score.Rank,
			Score:          score.Score,
			CorrectAnswers: score.CorrectAnswers,
			WrongAnswers:   score.WrongAnswers,
			CreatedAt:      now,
		})
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Store) FinalScores(ctx context.Context, code string) ([]game.Score, error) {
	if !s.Enabled() {
		return nil, nil
	}
	roomID, err := s.lookupRoomID(ctx, code)
	if err != nil {
		return nil, err
	}
	var rows []db.FinalScore
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("rank, identity").Find(&rows).Error; err != nil {
		return nil, err
	}
	scores := make([]game.Score, 0, len(rows))
	for _, row := range rows {
		scores = append(scores, game.Score{
			Rank:           row.Rank,
			Player:         row.Identity,
			DisplayName:    row.DisplayName,
			Score:          row.Score,
			CorrectAnswers: row.CorrectAnswers,
			WrongAnswers:   row.WrongAnswers,
		})
	}
	return scores, nil
}

func (s *Store) roomIDFor(tx *gorm.DB, code string, createdAt time.Time, inserted uint, closed bool) (uint, error) {
	id := inserted
	if id == 0 {
		var existing db.Room
		if err := tx.Select("id").Where("code = ? AND created_at = ?", code, createdAt).Take(&existing).Error; err != nil {
			return 0, fmt.Errorf("find room %s: %w", code, err)
		}
		id = existing.ID
	}
	s.mu.Lock()
	if closed {
		delete(s.rooms, code)
	} else {
		s.rooms[code] = id
	}
	s.mu.Unlock()
	return id, nil
}

// lookupRoomID returns the row of the newest room with this code. Misses
// are not cached; only SaveRoom fills the cache.
func (s *Store) lookupRoomID(ctx context.Context, code string) (uint, error) {
	s.mu.Lock()
	id, ok := s.rooms[code]
	s.mu.Unlock()
	if ok {
		return id, nil
	}
	var room db.Room
	err := s.db.WithContext(ctx).Select("id").Where("code = ?", code).Order("created_at DESC").Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("room %s is not stored", code)
	}
	if err != nil {
		return 0, err
	}
	return room.ID, nil
}

func (s *Store) cached(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[code]
	return ok
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
