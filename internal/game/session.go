package game

import (
	"sort"
	"time"

	"taboo/internal/words"
)

type TurnState string

const (
	TurnActive       TurnState = "explaining_active"
	SessionCompleted TurnState = "session_finished"
)

type TurnOutcome string

const (
	OutcomeTimeout       TurnOutcome = "turn_timeout"
	OutcomeGuessed       TurnOutcome = "word_guessed"
	OutcomeSkipped       TurnOutcome = "explainer_skipped"
	OutcomeExplainerLeft TurnOutcome = "explainer_left"
)

// Session is the running game of a room. order is the rotation captured at
// start, minus players who left; cursor points at the explainer.
type Session struct {
	order     []string
	cursor    int
	round     int
	turn      int
	state     TurnState
	entry     words.Entry
	deadline  time.Time
	startedAt time.Time
	used      map[string]struct{}
	previous  string
	timer     Timer
}

func newSession(order []string, now time.Time) *Session {
	return &Session{
		order:     order,
		round:     1,
		startedAt: now,
		used:      make(map[string]struct{}),
	}
}

func (s *Session) explainer() string {
	if s.cursor < 0 || s.cursor >= len(s.order) {
		return ""
	}
	return s.order[s.cursor]
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// beginTurn installs entry as the word for the explainer at the cursor and
// arms the turn timer. It returns the public and the explainer's view.
func (r *Room) beginTurn(entry words.Entry, repeated bool, now time.Time, prev TurnOutcome, prevWord string) (TurnPayload, TurnPayload) {
	s := r.session
	s.turn++
	s.entry = entry
	key := words.Normalize(entry.Word)
	s.used[key] = struct{}{}
	s.previous = key
	s.deadline = now.Add(r.cfg.RoundTime)
	s.state = TurnActive

	explainer := s.explainer()
	name := ""
	for _, p := range r.players {
		if p.ID == explainer {
			p.Role = RoleExplaining
			name = p.DisplayName
		} else {
			p.Role = RoleGuessing
		}
	}
	if repeated {
		r.reg.log.Warn().Str("room", r.code).Int("turn", s.turn).Msg("word bank exhausted, repeating words")
	}
	r.scheduleTurnTimer()

	public := TurnPayload{
		Turn:            s.turn,
		Round:           s.round,
		RoundsTotal:     r.cfg.RoundsTotal,
		Explainer:       explainer,
		ExplainerName:   name,
		Deadline:        s.deadline,
		PreviousOutcome: prev,
		PreviousWord:    prevWord,
	}
	secret := public
	secret.Word = entry.Word
	secret.Forbidden = append([]string(nil), entry.Forbidden...)
	secret.Category = entry.Category
	return public, secret
}

// endTurn closes the active turn and moves the rotation on.
func (r *Room) endTurn(outcome TurnOutcome, now time.Time) {
	s := r.session
	word := s.entry.Word
	r.out.outcomes = append(r.out.outcomes, wordOutcome{word: word, guessed: outcome == OutcomeGuessed})
	s.stopTimer()
	r.reg.log.Debug().Str("room", r.code).Int("turn", s.turn).Str("outcome", string(outcome)).Msg("turn ended")
	r.rotate(outcome, word, now)
}

func (r *Room) rotate(outcome TurnOutcome, prevWord string, now time.Time) {
	s := r.session
	next := s.cursor + 1
	if next >= len(s.order) {
		next = 0
		s.round++
		if s.round > r.cfg.RoundsTotal {
			s.round = r.cfg.RoundsTotal
			r.finish("completed", now)
			return
		}
		for _, p := range r.players {
			p.ScoreRound = 0
		}
	}
	s.cursor = next
	entry, repeated, err := r.reg.words.Draw(r.cfg.Difficulty, s.used, s.previous)
	if err != nil {
		r.reg.log.Error().Err(err).Str("room", r.code).Msg("word draw failed")
		r.finish("no_words", now)
		return
	}
	turn, secret := r.beginTurn(entry, repeated, now, outcome, prevWord)
	r.emitSecret(EventTurnChanged, turn, secret, turn.Explainer)
}

// dropFromRotation removes a departed player from the turn order. The
// explainer leaving skips the turn at once, even to a lone remaining player;
// the session only ends early once nobody is left in the rotation.
func (r *Room) dropFromRotation(identity string, now time.Time) {
	s := r.session
	pos := -1
	for i, id := range s.order {
		if id == identity {
			pos = i
			break
		}
	}
	if pos < 0 {
		return
	}
	wasExplainer := pos == s.cursor
	s.order = append(s.order[:pos], s.order[pos+1:]...)
	if pos < s.cursor {
		s.cursor--
	}
	if len(s.order) == 0 {
		if wasExplainer {
			r.out.outcomes = append(r.out.outcomes, wordOutcome{word: s.entry.Word})
		}
		r.finish("not_enough_players", now)
		return
	}
	if !wasExplainer {
		return
	}
	word := s.entry.Word
	r.out.outcomes = append(r.out.outcomes, wordOutcome{word: word})
	s.stopTimer()
	s.cursor = pos - 1
	r.rotate(OutcomeExplainerLeft, word, now)
}

func (r *Room) finish(reason string, now time.Time) {
	s := r.session
	s.stopTimer()
	s.state = SessionCompleted
	r.status = StatusFinished
	r.finishedAt = now
	r.updatedAt = now
	for _, p := range r.players {
		p.Role = RoleWaiting
		r.reg.release(p.ID, r.code)
	}
	board := r.scoreboard()
	r.out.final = board
	r.out.saveRoom = true
	r.emit(EventGameFinished, GameFinishedPayload{Reason: reason, Scoreboard: board})
	r.reg.log.Info().Str("room", r.code).Str("reason", reason).Msg("game finished")
}

func (r *Room) guess(identity, text string, now time.Time) (bool, error) {
	p, err := r.activePlayer(identity)
	if err != nil {
		return false, err
	}
	s := r.session
	if p.ID == s.explainer() {
		return false, ErrExplainerCannotGuess
	}
	if words.Normalize(text) == "" {
		return false, ErrEmptyMessage
	}
	if !now.Before(s.deadline) {
		r.endTurn(OutcomeTimeout, now)
		return false, ErrTurnExpired
	}
	if !words.Matches(text, s.entry.Word) {
		p.WrongAnswers++
		r.emitTo(identity, EventWrongGuess, WrongGuessPayload{Text: text})
		return false, nil
	}

	points := r.reg.settings.GuesserPoints
	p.ScoreTotal += points
	p.ScoreRound += points
	p.CorrectAnswers++
	r.emit(EventCorrectGuess, CorrectGuessPayload{
		Guesser:       p.ID,
		GuesserName:   p.DisplayName,
		Explainer:     s.explainer(),
		Word:          s.entry.Word,
		GuesserPoints: points,
	})
	r.emit(EventPlayerScoreUpdated, ScorePayload{Player: p.ID, Delta: points, ScoreRound: p.ScoreRound, ScoreTotal: p.ScoreTotal})
	if bonus := r.reg.settings.ExplainerPoints; bonus > 0 {
		if ex := r.player(s.explainer()); ex != nil {
			ex.ScoreTotal += bonus
			ex.ScoreRound += bonus
			r.emit(EventPlayerScoreUpdated, ScorePayload{Player: ex.ID, Delta: bonus, ScoreRound: ex.ScoreRound, ScoreTotal: ex.ScoreTotal})
		}
	}
	r.reg.log.Info().Str("room", r.code).Str("identity", p.ID).Int("turn", s.turn).Msg("word guessed")
	r.endTurn(OutcomeGuessed, now)
	return true, nil
}

func (r *Room) skip(identity string, now time.Time) error {
	p, err := r.activePlayer(identity)
	if err != nil {
		return err
	}
	if p.ID != r.session.explainer() {
		return ErrNotExplainer
	}
	r.endTurn(OutcomeSkipped, now)
	return nil
}

// tick ends the active turn once its deadline has passed. It reports
// whether the turn advanced; a second call for the same deadline is a no-op.
func (r *Room) tick(now time.Time) bool {
	if r.status != StatusPlaying || r.session == nil || r.session.state != TurnActive {
		return false
	}
	if now.Before(r.session.deadline) {
		return false
	}
	r.endTurn(OutcomeTimeout, now)
	return true
}

func (r *Room) activePlayer(identity string) (*Player, error) {
	if r.status == StatusFinished {
		return nil, ErrSessionEnded
	}
	p := r.player(identity)
	if p == nil {
		return nil, ErrNotAPlayer
	}
	if r.status != StatusPlaying {
		return nil, ErrGameNotStarted
	}
	return p, nil
}

func (r *Room) scheduleTurnTimer() {
	s := r.session
	s.stopTimer()
	code, turn := r.code, s.turn
	d := s.deadline.Sub(r.reg.clock.Now())
	if d < 0 {
		d = 0
	}
	s.timer = r.reg.clock.AfterFunc(d, func() {
		r.reg.expireTurn(code, turn)
	})
}

// scoreboard ranks players by total score, ties keeping join order.
func (r *Room) scoreboard() []Score {
	board := make([]Score, 0, len(r.players))
	for _, p := range r.players {
		board = append(board, Score{
			Player:         p.ID,
			DisplayName:    p.DisplayName,
			Score:          p.ScoreTotal,
			CorrectAnswers: p.CorrectAnswers,
			WrongAnswers:   p.WrongAnswers,
		})
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score > board[j].Score
	})
	for i := range board {
		board[i].Rank = i + 1
		if i > 0 && board[i].Score == board[i-1].Score {
			board[i].Rank = board[i-1].Rank
		}
	}
	return board
}
