package game

import (
	"fmt"
	"time"

	"taboo/internal/words"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type Role string

const (
	RoleExplaining Role = "explaining"
	RoleGuessing   Role = "guessing"
	RoleWaiting    Role = "waiting"
)

// Identity is a resolved caller: a stable id and the name shown to others.
type Identity struct {
	ID          string
	DisplayName string
}

// Settings are process-wide limits and defaults applied to every room.
type Settings struct {
	DefaultMaxPlayers int
	MaxRoomPlayers    int
	DefaultRounds     int
	MaxRounds         int
	DefaultRoundTime  time.Duration
	MinRoundTime      time.Duration
	MaxRoundTime      time.Duration
	GuesserPoints     int
	ExplainerPoints   int
	ChatHistory       int
	ReconnectGrace    time.Duration
	EmptyRoomTTL      time.Duration
	IdleRoomTTL       time.Duration
	FinishedRoomTTL   time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		DefaultMaxPlayers: 8,
		MaxRoomPlayers:    12,
		DefaultRounds:     3,
		MaxRounds:         10,
		DefaultRoundTime:  60 * time.Second,
		MinRoundTime:      5 * time.Second,
		MaxRoundTime:      300 * time.Second,
		GuesserPoints:     1,
		ExplainerPoints:   0,
		ChatHistory:       50,
		ReconnectGrace:    5 * time.Second,
		EmptyRoomTTL:      0,
		IdleRoomTTL:       10 * time.Minute,
		FinishedRoomTTL:   time.Minute,
	}
}

// RoomConfig is fixed when a room is created. Zero values take the defaults
// from Settings.
type RoomConfig struct {
	MaxPlayers  int
	RoundsTotal int
	RoundTime   time.Duration
	Difficulty  words.Difficulty
}

func (s Settings) resolve(cfg RoomConfig) (RoomConfig, error) {
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = s.DefaultMaxPlayers
	}
	if cfg.RoundsTotal == 0 {
		cfg.RoundsTotal = s.DefaultRounds
	}
	if cfg.RoundTime == 0 {
		cfg.RoundTime = s.DefaultRoundTime
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = words.Mixed
	}
	if cfg.MaxPlayers < 2 || cfg.MaxPlayers > s.MaxRoomPlayers {
		return cfg, fmt.Errorf("%w: max_players must be between 2 and %d", ErrInvalidConfig, s.MaxRoomPlayers)
	}
	if cfg.RoundsTotal < 1 || cfg.RoundsTotal > s.MaxRounds {
		return cfg, fmt.Errorf("%w: rounds must be between 1 and %d", ErrInvalidConfig, s.MaxRounds)
	}
	if cfg.RoundTime < s.MinRoundTime || cfg.RoundTime > s.MaxRoundTime {
		return cfg, fmt.Errorf("%w: round time must be between %s and %s", ErrInvalidConfig, s.MinRoundTime, s.MaxRoundTime)
	}
	if _, err := words.ParseDifficulty(string(cfg.Difficulty)); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

type Player struct {
	ID             string
	DisplayName    string
	Role           Role
	ScoreRound     int
	ScoreTotal     int
	CorrectAnswers int
	WrongAnswers   int
	JoinedAt       time.Time
}

// Clock abstracts time so turn deadlines and grace periods can be driven
// by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}
