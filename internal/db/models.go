package db

import (
	"time"

	"gorm.io/datatypes"
)

// Room mirrors one game room. A code can be reused once its room is gone,
// so rows are keyed by code and creation time.
type Room struct {
	ID           uint       `gorm:"primaryKey"`
	Code         string     `gorm:"size:12;not null;uniqueIndex:idx_rooms_code_created"`
	OwnerID      string     `gorm:"size:128;not null"`
	Status       string     `gorm:"size:16;not null"`
	MaxPlayers   int        `gorm:"not null"`
	RoundsTotal  int        `gorm:"not null"`
	RoundSeconds int        `gorm:"not null"`
	Difficulty   string     `gorm:"size:16;not null"`
	CurrentRound int        `gorm:"not null;default:0"`
	LastSeq      int64      `gorm:"not null;default:0"`
	ClosedAt     *time.Time `gorm:"index"`
	CreatedAt    time.Time  `gorm:"not null;uniqueIndex:idx_rooms_code_created"`
	UpdatedAt    time.Time  `gorm:"not null"`
	Players      []Player
	Events       []Event
	FinalScores  []FinalScore
}

type Player struct {
	ID             uint       `gorm:"primaryKey"`
	RoomID         uint       `gorm:"index;not null;uniqueIndex:idx_players_room_identity"`
	Identity       string     `gorm:"size:128;not null;uniqueIndex:idx_players_room_identity"`
	DisplayName    string     `gorm:"size:64;not null"`
	IsOwner        bool       `gorm:"not null;default:false"`
	ScoreTotal     int        `gorm:"not null;default:0"`
	CorrectAnswers int        `gorm:"not null;default:0"`
	WrongAnswers   int        `gorm:"not null;default:0"`
	JoinedAt       time.Time  `gorm:"not null"`
	LeftAt         *time.Time `gorm:"index"`
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// Event is one public room event in sequence order.
type Event struct {
	ID        uint           `gorm:"primaryKey"`
	RoomID    uint           `gorm:"index;not null;uniqueIndex:idx_events_room_seq"`
	Seq       int64          `gorm:"not null;uniqueIndex:idx_events_room_seq"`
	EventID   string         `gorm:"size:36;not null;uniqueIndex"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

type FinalScore struct {
	ID             uint      `gorm:"primaryKey"`
	RoomID         uint      `gorm:"index;not null;uniqueIndex:idx_final_scores_room_identity"`
	Identity       string    `gorm:"size:128;not null;uniqueIndex:idx_final_scores_room_identity"`
	DisplayName    string    `gorm:"size:64;not null"`
	Rank           int       `gorm:"not null"`
	Score          int       `gorm:"not null"`
	CorrectAnswers int       `gorm:"not null;default:0"`
	WrongAnswers   int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
}

// Word is one entry of the word bank with its usage statistics.
type Word struct {
	ID           uint           `gorm:"primaryKey"`
	Word         string         `gorm:"size:64;not null;uniqueIndex"`
	Category     string         `gorm:"size:64;not null;default:'general'"`
	Difficulty   string         `gorm:"size:16;not null;index"`
	Forbidden    datatypes.JSON `gorm:"type:jsonb;not null"`
	IsActive     bool           `gorm:"not null;default:true"`
	TimesUsed    int            `gorm:"not null;default:0"`
	TimesGuessed int            `gorm:"not null;default:0"`
	SuccessRate  float64        `gorm:"not null;default:0"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}
