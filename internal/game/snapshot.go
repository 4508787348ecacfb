package game

import (
	"time"

	"taboo/internal/words"
)

type PlayerSnapshot struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	Role           Role      `json:"role"`
	ScoreRound     int       `json:"score_round"`
	ScoreTotal     int       `json:"score_total"`
	CorrectAnswers int       `json:"correct_answers"`
	WrongAnswers   int       `json:"wrong_answers"`
	Owner          bool      `json:"owner"`
	Connected      bool      `json:"connected"`
	JoinedAt       time.Time `json:"joined_at"`
}

type RoomSnapshot struct {
	Code         string           `json:"code"`
	Owner        string           `json:"owner"`
	Status       Status           `json:"status"`
	MaxPlayers   int              `json:"max_players"`
	RoundsTotal  int              `json:"rounds_total"`
	RoundSeconds int              `json:"time_per_round_seconds"`
	Difficulty   words.Difficulty `json:"difficulty"`
	CurrentRound int              `json:"current_round"`
	Players      []PlayerSnapshot `json:"players"`
	Connections  int              `json:"connections"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Closed       bool             `json:"closed,omitempty"`
	Seq          uint64           `json:"seq"`
}

type TurnSnapshot struct {
	Turn          int       `json:"turn"`
	Round         int       `json:"round"`
	Explainer     string    `json:"explainer"`
	ExplainerName string    `json:"explainer_name"`
	Deadline      time.Time `json:"deadline"`
	RemainingMS   int64     `json:"remaining_ms"`
	Word          string    `json:"word,omitempty"`
	Forbidden     []string  `json:"forbidden,omitempty"`
	Category      string    `json:"category,omitempty"`
}

// StateSnapshot is the view of one identity. Only the explainer sees the
// word and its forbidden terms.
type StateSnapshot struct {
	Room       RoomSnapshot  `json:"room"`
	You        string        `json:"you,omitempty"`
	Turn       *TurnSnapshot `json:"turn,omitempty"`
	Chat       []ChatMessage `json:"chat"`
	Scoreboard []Score       `json:"scoreboard,omitempty"`
	Seq        uint64        `json:"seq"`
}

type Score struct {
	Rank           int    `json:"rank"`
	Player         string `json:"player"`
	DisplayName    string `json:"display_name"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
	WrongAnswers   int    `json:"wrong_answers"`
}

func (r *Room) playerSnapshot(p *Player) PlayerSnapshot {
	return PlayerSnapshot{
		ID:             p.ID,
		DisplayName:    p.DisplayName,
		Role:           p.Role,
		ScoreRound:     p.ScoreRound,
		ScoreTotal:     p.ScoreTotal,
		CorrectAnswers: p.CorrectAnswers,
		WrongAnswers:   p.WrongAnswers,
		Owner:          p.ID == r.owner,
		Connected:      r.online[p.ID] > 0,
		JoinedAt:       p.JoinedAt,
	}
}

func (r *Room) snapshot() RoomSnapshot {
	players := make([]PlayerSnapshot, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, r.playerSnapshot(p))
	}
	round := 0
	if r.session != nil {
		round = r.session.round
	}
	return RoomSnapshot{
		Code:         r.code,
		Owner:        r.owner,
		Status:       r.status,
		MaxPlayers:   r.cfg.MaxPlayers,
		RoundsTotal:  r.cfg.RoundsTotal,
		RoundSeconds: int(r.cfg.RoundTime / time.Second),
		Difficulty:   r.cfg.Difficulty,
		CurrentRound: round,
		Players:      players,
		Connections:  r.connectedCount(),
		CreatedAt:    r.createdAt,
		UpdatedAt:    r.updatedAt,
		Closed:       r.closed,
		Seq:          r.seq,
	}
}

func (r *Room) state(identity string, now time.Time) StateSnapshot {
	st := StateSnapshot{
		Room: r.snapshot(),
		You:  identity,
		Chat: append([]ChatMessage{}, r.chat...),
		Seq:  r.seq,
	}
	s := r.session
	switch {
	case r.status == StatusPlaying && s != nil && s.state == TurnActive:
		explainer := s.explainer()
		turn := &TurnSnapshot{
			Turn:      s.turn,
			Round:     s.round,
			Explainer: explainer,
			Deadline:  s.deadline,
		}
		if p := r.player(explainer); p != nil {
			turn.ExplainerName = p.DisplayName
		}
		if remaining := s.deadline.Sub(now); remaining > 0 {
			turn.RemainingMS = remaining.Milliseconds()
		}
		if identity != "" && identity == explainer {
			turn.Word = s.entry.Word
			turn.Forbidden = append([]string(nil), s.entry.Forbidden...)
			turn.Category = s.entry.Category
		}
		st.Turn = turn
	case r.status == StatusFinished:
		st.Scoreboard = r.scoreboard()
	}
	return st
}
