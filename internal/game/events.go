package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventRoomUpdate         EventType = "room_update"
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerLeft         EventType = "player_left"
	EventGameStarted        EventType = "game_started"
	EventTurnChanged        EventType = "turn_changed"
	EventCorrectGuess       EventType = "correct_guess"
	EventWrongGuess         EventType = "wrong_guess"
	EventChatMessage        EventType = "chat_message"
	EventPlayerScoreUpdated EventType = "player_score_updated"
	EventGameFinished       EventType = "game_finished"
	EventRoomClosed         EventType = "room_closed"
)

// Event is one state change of a room. Seq is monotonic per room; ID is
// unique so receivers can drop repeats.
type Event struct {
	ID      string    `json:"id"`
	Seq     uint64    `json:"seq"`
	Type    EventType `json:"type"`
	Room    string    `json:"room"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`

	// Recipient restricts delivery to one identity when set.
	Recipient string `json:"-"`

	secretFor string
	secret    any
}

// WithSecret returns a copy of the event in which holder sees payload
// instead of the public one.
func (e Event) WithSecret(holder string, payload any) Event {
	e.secretFor = holder
	e.secret = payload
	return e
}

// VisibleTo returns the copy of the event that identity may see. Private
// events for someone else are withheld; the explainer gets the payload
// carrying the secret word.
func (e Event) VisibleTo(identity string) (Event, bool) {
	if e.Recipient != "" && e.Recipient != identity {
		return Event{}, false
	}
	if e.secret != nil && identity != "" && identity == e.secretFor {
		e.Payload = e.secret
	}
	e.secret = nil
	e.secretFor = ""
	return e, true
}

func (e Event) Private() bool {
	return e.Recipient != ""
}

type PlayerPayload struct {
	Player PlayerSnapshot `json:"player"`
	Reason string         `json:"reason,omitempty"`
}

type RoomUpdatePayload struct {
	Room RoomSnapshot `json:"room"`
}

// TurnPayload describes the turn that just began. PreviousOutcome and
// PreviousWord are empty on the first turn.
type TurnPayload struct {
	Turn            int         `json:"turn"`
	Round           int         `json:"round"`
	RoundsTotal     int         `json:"rounds_total"`
	Explainer       string      `json:"explainer"`
	ExplainerName   string      `json:"explainer_name"`
	Deadline        time.Time   `json:"deadline"`
	PreviousOutcome TurnOutcome `json:"previous_outcome,omitempty"`
	PreviousWord    string      `json:"previous_word,omitempty"`
	Word            string      `json:"word,omitempty"`
	Forbidden       []string    `json:"forbidden,omitempty"`
	Category        string      `json:"category,omitempty"`
}

type GameStartedPayload struct {
	Order []string    `json:"order"`
	Turn  TurnPayload `json:"turn"`
}

type CorrectGuessPayload struct {
	Guesser       string `json:"guesser"`
	GuesserName   string `json:"guesser_name"`
	Explainer     string `json:"explainer"`
	Word          string `json:"word"`
	GuesserPoints int    `json:"guesser_points"`
}

type WrongGuessPayload struct {
	Text string `json:"text"`
}

type ChatPayload struct {
	Message ChatMessage `json:"message"`
}

type ScorePayload struct {
	Player     string `json:"player"`
	Delta      int    `json:"delta"`
	ScoreRound int    `json:"score_round"`
	ScoreTotal int    `json:"score_total"`
}

type GameFinishedPayload struct {
	Reason     string  `json:"reason"`
	Scoreboard []Score `json:"scoreboard"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

// Broadcaster delivers room events to live connections. Publish is called
// while the room is locked and must not block or call back into the
// registry.
type Broadcaster interface {
	Publish(ev Event)
	Disconnect(code, reason string)
}

// Recorder persists what the coordinator produces. It runs after the room
// lock is released.
type Recorder interface {
	SaveRoom(ctx context.Context, room RoomSnapshot) error
	AppendEvents(ctx context.Context, events []Event) error
	RecordWordOutcome(ctx context.Context, word string, guessed bool) error
	PersistFinalScores(ctx context.Context, code string, scores []Score) error
}

type nopBroadcaster struct{}

func (nopBroadcaster) Publish(Event) {}
func (nopBroadcaster) Disconnect(string, string) {}

type nopRecorder struct{}

func (nopRecorder) SaveRoom(context.Context, RoomSnapshot) error { return nil }
func (nopRecorder) AppendEvents(context.Context, []Event) error { return nil }
func (nopRecorder) RecordWordOutcome(context.Context, string, bool) error { return nil }
func (nopRecorder) PersistFinalScores(context.Context, string, []Score) error { return nil }

func newEventID() string {
	return uuid.NewString()
}
