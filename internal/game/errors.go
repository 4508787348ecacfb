package game

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindInvalidState
	KindValidation
	KindForbiddenWord
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindValidation:
		return "validation"
	case KindForbiddenWord:
		return "forbidden_word"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a rejected room or game action. Code is stable and safe to show
// to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrRoomNotFound         = &Error{KindNotFound, "room_not_found", "room not found"}
	ErrRoomFull             = &Error{KindConflict, "room_full", "room is full"}
	ErrAlreadyJoined        = &Error{KindConflict, "already_joined", "already joined"}
	ErrDuplicateActiveRoom  = &Error{KindConflict, "duplicate_active_room", "already in another active room"}
	ErrRoomNotWaiting       = &Error{KindInvalidState, "room_not_waiting", "room is not accepting players"}
	ErrNotOwner             = &Error{KindForbidden, "not_owner", "only the room owner can do that"}
	ErrNotEnoughPlayers     = &Error{KindInvalidState, "not_enough_players", "not enough players"}
	ErrAlreadyStarted       = &Error{KindInvalidState, "already_started", "game already started"}
	ErrGameNotStarted       = &Error{KindInvalidState, "game_not_started", "game has not started"}
	ErrSessionEnded         = &Error{KindInvalidState, "session_ended", "game is over"}
	ErrNotAPlayer           = &Error{KindForbidden, "not_a_player", "not a player in this room"}
	ErrNotExplainer         = &Error{KindForbidden, "not_explainer", "only the explainer can do that"}
	ErrExplainerCannotGuess = &Error{KindForbidden, "explainer_cannot_guess", "the explainer cannot guess"}
	ErrTurnExpired          = &Error{KindInvalidState, "turn_expired", "the turn is over"}
	ErrForbiddenWordUsed    = &Error{KindForbiddenWord, "forbidden_word_used", "message uses a forbidden word"}
	ErrInvalidConfig        = &Error{KindValidation, "invalid_config", "invalid room settings"}
	ErrEmptyMessage         = &Error{KindValidation, "empty_message", "message is empty"}
	ErrCodeSpaceExhausted   = &Error{KindTransient, "code_unavailable", "could not allocate a room code"}
	ErrNoWords              = &Error{KindTransient, "no_words", "word bank is empty"}
)

// KindOf reports the taxonomy kind of err, KindUnknown for foreign errors.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindUnknown
}

// CodeOf returns the stable code of err, or "internal" for foreign errors.
func CodeOf(err error) string {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return "internal"
}
