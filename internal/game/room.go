package game

import (
	"sync"
	"time"
)

// Room is one lobby and, once started, its game session. Every field is
// guarded by mu; methods with a lowercase name expect the caller to hold it.
type Room struct {
	mu  sync.Mutex
	reg *Registry

	code       string
	owner      string
	cfg        RoomConfig
	status     Status
	players    []*Player
	online     map[string]int
	session    *Session
	chat       []ChatMessage
	seq        uint64
	createdAt  time.Time
	updatedAt  time.Time
	emptySince time.Time
	finishedAt time.Time
	closed     bool

	out outbox
}

// outbox collects what an operation produced while the room was locked.
type outbox struct {
	events   []Event
	outcomes []wordOutcome
	final    []Score
	saveRoom bool
}

type wordOutcome struct {
	word    string
	guessed bool
}

func newRoom(reg *Registry, code, owner string, cfg RoomConfig, now time.Time) *Room {
	return &Room{
		reg:       reg,
		code:      code,
		owner:     owner,
		cfg:       cfg,
		status:    StatusWaiting,
		online:    make(map[string]int),
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) player(identity string) *Player {
	for _, p := range r.players {
		if p.ID == identity {
			return p
		}
	}
	return nil
}

func (r *Room) indexOf(identity string) int {
	for i, p := range r.players {
		if p.ID == identity {
			return i
		}
	}
	return -1
}

func (r *Room) connectedCount() int {
	total := 0
	for _, n := range r.online {
		total += n
	}
	return total
}

func (r *Room) emit(typ EventType, payload any) {
	r.push(Event{Type: typ, Payload: payload})
}

// emitSecret publishes payload to everyone except holder, who gets secret.
func (r *Room) emitSecret(typ EventType, payload, secret any, holder string) {
	r.push(Event{Type: typ, Payload: payload}.WithSecret(holder, secret))
}

func (r *Room) emitTo(identity string, typ EventType, payload any) {
	r.push(Event{Type: typ, Payload: payload, Recipient: identity})
}

func (r *Room) push(ev Event) {
	r.seq++
	ev.ID = newEventID()
	ev.Seq = r.seq
	ev.Room = r.code
	ev.At = r.reg.clock.Now()
	r.out.events = append(r.out.events, ev)
}

func (r *Room) join(id Identity, now time.Time) error {
	if r.player(id.ID) != nil {
		return ErrAlreadyJoined
	}
	if r.status != StatusWaiting {
		return ErrRoomNotWaiting
	}
	if len(r.players) >= r.cfg.MaxPlayers {
		return ErrRoomFull
	}
	if err := r.reg.claim(id.ID, r.code); err != nil {
		return err
	}
	name := id.DisplayName
	if name == "" {
		name = id.ID
	}
	p := &Player{
		ID:          id.ID,
		DisplayName: name,
		Role:        RoleWaiting,
		JoinedAt:    now,
	}
	r.players = append(r.players, p)
	r.emptySince = time.Time{}
	r.updatedAt = now
	r.out.saveRoom = true
	r.emit(EventPlayerJoined, PlayerPayload{Player: r.playerSnapshot(p)})
	if r.player(r.owner) == nil {
		r.owner = p.ID
		r.emit(EventRoomUpdate, RoomUpdatePayload{Room: r.snapshot()})
	}
	return nil
}

func (r *Room) leave(identity, reason string, now time.Time) error {
	if r.status == StatusFinished {
		return ErrSessionEnded
	}
	idx := r.indexOf(identity)
	if idx < 0 {
		return ErrNotAPlayer
	}
	p := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.reg.release(identity, r.code)
	r.updatedAt = now
	r.out.saveRoom = true
	left := r.playerSnapshot(p)
	left.Role = RoleWaiting
	r.emit(EventPlayerLeft, PlayerPayload{Player: left, Reason: reason})

	if r.status == StatusPlaying {
		r.dropFromRotation(identity, now)
	}
	if len(r.players) == 0 {
		r.emptySince = now
		return nil
	}
	if identity == r.owner {
		r.owner = r.players[0].ID
		r.emit(EventRoomUpdate, RoomUpdatePayload{Room: r.snapshot()})
	}
	return nil
}

func (r *Room) start(requester string, now time.Time) error {
	if requester != r.owner {
		return ErrNotOwner
	}
	if r.status != StatusWaiting {
		return ErrAlreadyStarted
	}
	if len(r.players) < 2 {
		return ErrNotEnoughPlayers
	}
	entry, repeated, err := r.reg.words.Draw(r.cfg.Difficulty, nil, "")
	if err != nil {
		r.reg.log.Error().Err(err).Str("room", r.code).Msg("word draw failed")
		return ErrNoWords
	}
	order := make([]string, 0, len(r.players))
	for _, p := range r.players {
		order = append(order, p.ID)
		p.ScoreRound = 0
	}
	r.session = newSession(order, now)
	r.status = StatusPlaying
	r.updatedAt = now
	r.out.saveRoom = true

	turn, secret := r.beginTurn(entry, repeated, now, "", "")
	r.emitSecret(EventGameStarted,
		GameStartedPayload{Order: append([]string(nil), order...), Turn: turn},
		GameStartedPayload{Order: append([]string(nil), order...), Turn: secret},
		turn.Explainer)
	r.emitSecret(EventTurnChanged, turn, secret, turn.Explainer)
	return nil
}

// shutdown ends the room for good. The caller removes it from the registry.
func (r *Room) shutdown(reason string, now time.Time) {
	if r.session != nil {
		r.session.stopTimer()
	}
	for _, p := range r.players {
		r.reg.release(p.ID, r.code)
	}
	r.closed = true
	r.updatedAt = now
	r.out.saveRoom = true
	r.emit(EventRoomClosed, RoomClosedPayload{Reason: reason})
}

// expiry returns why the sweeper should collect this room, or "".
func (r *Room) expiry(now time.Time, s Settings) string {
	switch {
	case len(r.players) == 0 && !r.emptySince.IsZero() && now.Sub(r.emptySince) >= s.EmptyRoomTTL:
		return "empty"
	case r.status == StatusFinished && r.connectedCount() == 0 && now.Sub(r.finishedAt) >= s.FinishedRoomTTL:
		return "finished"
	case r.status == StatusWaiting && r.connectedCount() == 0 && now.Sub(r.updatedAt) >= s.IdleRoomTTL:
		return "idle"
	}
	return ""
}
