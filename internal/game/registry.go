package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"taboo/internal/words"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxCodeAttempts = 32

// Registry owns every live room. Lock order is registry, then room; the
// claims lock is a leaf and may be taken under either.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	claimsMu sync.Mutex
	claims   map[string]string

	settings    Settings
	words       words.Source
	clock       Clock
	broadcaster Broadcaster
	recorder    Recorder
	log         zerolog.Logger
	newCode     func() string
}

type Option func(*Registry)

func WithClock(clock Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

func WithBroadcaster(b Broadcaster) Option {
	return func(r *Registry) { r.broadcaster = b }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.log = logger }
}

func WithCodeGenerator(gen func() string) Option {
	return func(r *Registry) { r.newCode = gen }
}

func NewRegistry(settings Settings, source words.Source, opts ...Option) *Registry {
	r := &Registry{
		rooms:       make(map[string]*Room),
		claims:      make(map[string]string),
		settings:    settings,
		words:       source,
		clock:       SystemClock,
		broadcaster: nopBroadcaster{},
		recorder:    nopRecorder{},
		log:         log.Logger.With().Str("component", "registry").Logger(),
		newCode:     newRoomCode,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Settings() Settings {
	return r.settings
}

// Create opens a room owned by owner, who joins it as the first player.
func (r *Registry) Create(owner Identity, cfg RoomConfig) (RoomSnapshot, error) {
	cfg, err := r.settings.resolve(cfg)
	if err != nil {
		return RoomSnapshot{}, err
	}
	now := r.clock.Now()

	r.mu.Lock()
	code, err := r.allocateCode()
	if err != nil {
		r.mu.Unlock()
		return RoomSnapshot{}, err
	}
	if err := r.claim(owner.ID, code); err != nil {
		r.mu.Unlock()
		return RoomSnapshot{}, err
	}
	room := newRoom(r, code, owner.ID, cfg, now)
	room.mu.Lock()
	r.rooms[code] = room
	r.mu.Unlock()

	if err := room.join(owner, now); err != nil {
		r.log.Error().Err(err).Str("room", code).Msg("owner join failed")
	}
	out, saved := r.commit(room)
	snap := room.snapshot()
	room.mu.Unlock()
	r.flush(out, saved)

	r.log.Info().Str("room", code).Str("owner", owner.ID).Int("max_players", cfg.MaxPlayers).Msg("room created")
	return snap, nil
}

func (r *Registry) allocateCode() (string, error) {
	for range maxCodeAttempts {
		code := r.newCode()
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func (r *Registry) Get(code string) (RoomSnapshot, error) {
	var snap RoomSnapshot
	err := r.update(code, func(room *Room, _ time.Time) error {
		snap = room.snapshot()
		return nil
	})
	return snap, err
}

// State returns the personalized view of identity, which need not be a
// player.
func (r *Registry) State(code, identity string) (StateSnapshot, error) {
	var st StateSnapshot
	err := r.update(code, func(room *Room, now time.Time) error {
		st = room.state(identity, now)
		return nil
	})
	return st, err
}

func (r *Registry) List() []RoomSnapshot {
	rooms := r.all()
	out := make([]RoomSnapshot, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		if !room.closed {
			out = append(out, room.snapshot())
		}
		room.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ListActiveForIdentity returns the non-finished rooms identity plays in.
func (r *Registry) ListActiveForIdentity(identity string) []RoomSnapshot {
	out := make([]RoomSnapshot, 0, 1)
	for _, snap := range r.List() {
		if snap.Status == StatusFinished {
			continue
		}
		for _, p := range snap.Players {
			if p.ID == identity {
				out = append(out, snap)
				break
			}
		}
	}
	return out
}

func (r *Registry) Join(code string, id Identity) (RoomSnapshot, error) {
	var snap RoomSnapshot
	err := r.update(code, func(room *Room, now time.Time) error {
		err := room.join(id, now)
		snap = room.snapshot()
		return err
	})
	if err == nil {
		r.log.Info().Str("room", code).Str("identity", id.ID).Msg("player joined")
	}
	return snap, err
}

func (r *Registry) Leave(code, identity string) error {
	return r.leave(code, identity, "left")
}

func (r *Registry) leave(code, identity, reason string) error {
	err := r.update(code, func(room *Room, now time.Time) error {
		return room.leave(identity, reason, now)
	})
	if err == nil {
		r.log.Info().Str("room", code).Str("identity", identity).Str("reason", reason).Msg("player left")
	}
	return err
}

func (r *Registry) Start(code, requester string) (TurnSnapshot, error) {
	var turn TurnSnapshot
	err := r.update(code, func(room *Room, now time.Time) error {
		if err := room.start(requester, now); err != nil {
			return err
		}
		if st := room.state(requester, now); st.Turn != nil {
			turn = *st.Turn
		}
		return nil
	})
	if err == nil {
		r.log.Info().Str("room", code).Str("explainer", turn.Explainer).Msg("game started")
	}
	return turn, err
}

func (r *Registry) Guess(code, identity, text string) (bool, error) {
	var correct bool
	err := r.update(code, func(room *Room, now time.Time) error {
		var err error
		correct, err = room.guess(identity, text, now)
		return err
	})
	return correct, err
}

func (r *Registry) Chat(code, identity, text string) (ChatMessage, error) {
	var msg ChatMessage
	err := r.update(code, func(room *Room, now time.Time) error {
		var err error
		msg, err = room.postChat(identity, text, now)
		return err
	})
	return msg, err
}

func (r *Registry) Skip(code, identity string) error {
	return r.update(code, func(room *Room, now time.Time) error {
		return room.skip(identity, now)
	})
}

// Close is the owner tearing the room down in any state. Members get
// room_closed and their connections are dropped.
func (r *Registry) Close(code, requester string) error {
	now := r.clock.Now()
	r.mu.Lock()
	room, ok := r.rooms[code]
	if !ok {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	room.mu.Lock()
	if room.owner != requester {
		room.mu.Unlock()
		r.mu.Unlock()
		return ErrNotOwner
	}
	room.shutdown("closed_by_owner", now)
	delete(r.rooms, code)
	out, saved := r.commit(room)
	room.mu.Unlock()
	r.mu.Unlock()

	r.broadcaster.Disconnect(code, "room_closed")
	r.flush(out, saved)
	r.log.Info().Str("room", code).Str("identity", requester).Msg("room closed")
	return nil
}

// Tick advances overdue turns and collects dead rooms. It is safe to call
// at any rate; turns whose deadline has not passed are left alone.
func (r *Registry) Tick(now time.Time) {
	for _, room := range r.all() {
		_ = r.apply(room, now, func(room *Room, now time.Time) error {
			room.tick(now)
			return nil
		})
	}
	r.collect(now)
}

// Run sweeps the registry every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(r.clock.Now())
		}
	}
}

func (r *Registry) collect(now time.Time) {
	type removal struct {
		code, reason string
		out          outbox
		saved        RoomSnapshot
	}
	var removed []removal

	r.mu.Lock()
	for code, room := range r.rooms {
		room.mu.Lock()
		if reason := room.expiry(now, r.settings); reason != "" {
			room.shutdown(reason, now)
			delete(r.rooms, code)
			out, saved := r.commit(room)
			removed = append(removed, removal{code: code, reason: reason, out: out, saved: saved})
		}
		room.mu.Unlock()
	}
	r.mu.Unlock()

	for _, rm := range removed {
		r.broadcaster.Disconnect(rm.code, "room_"+rm.reason)
		r.flush(rm.out, rm.saved)
		r.log.Info().Str("room", rm.code).Str("reason", rm.reason).Msg("room collected")
	}
}

func (r *Registry) expireTurn(code string, turn int) {
	_ = r.update(code, func(room *Room, now time.Time) error {
		if room.session == nil || room.session.turn != turn {
			return nil
		}
		if room.tick(now) {
			r.log.Debug().Str("room", code).Int("turn", turn).Msg("turn timed out")
		}
		return nil
	})
}

func (r *Registry) lookup(code string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.rooms[code]
	return room, ok
}

func (r *Registry) all() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// update runs fn with the room locked, publishes what it emitted in order
// and hands the rest to the recorder once the lock is released.
func (r *Registry) update(code string, fn func(room *Room, now time.Time) error) error {
	room, ok := r.lookup(code)
	if !ok {
		return ErrRoomNotFound
	}
	return r.apply(room, time.Time{}, fn)
}

func (r *Registry) apply(room *Room, now time.Time, fn func(room *Room, now time.Time) error) error {
	room.mu.Lock()
	if room.closed {
		room.mu.Unlock()
		return ErrRoomNotFound
	}
	if now.IsZero() {
		now = r.clock.Now()
	}
	err := fn(room, now)
	out, saved := r.commit(room)
	room.mu.Unlock()
	r.flush(out, saved)
	return err
}

func (r *Registry) commit(room *Room) (outbox, RoomSnapshot) {
	out := room.out
	room.out = outbox{}
	for _, ev := range out.events {
		r.broadcaster.Publish(ev)
	}
	var saved RoomSnapshot
	if out.saveRoom {
		saved = room.snapshot()
	}
	return out, saved
}

func (r *Registry) flush(out outbox, saved RoomSnapshot) {
	if !out.saveRoom && len(out.events) == 0 && len(out.outcomes) == 0 && out.final == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if out.saveRoom {
		if err := r.recorder.SaveRoom(ctx, saved); err != nil {
			r.log.Error().Err(err).Str("room", saved.Code).Msg("persist room failed")
		}
	}
	public := make([]Event, 0, len(out.events))
	for _, ev := range out.events {
		if !ev.Private() {
			public = append(public, ev)
		}
	}
	if len(public) > 0 {
		if err := r.recorder.AppendEvents(ctx, public); err != nil {
			r.log.Error().Err(err).Str("room", public[0].Room).Msg("persist events failed")
		}
	}
	for _, o := range out.outcomes {
		if err := r.recorder.RecordWordOutcome(ctx, o.word, o.guessed); err != nil {
			r.log.Error().Err(err).Str("word", o.word).Msg("persist word stats failed")
		}
	}
	if out.final != nil {
		if err := r.recorder.PersistFinalScores(ctx, saved.Code, out.final); err != nil {
			r.log.Error().Err(err).Str("room", saved.Code).Msg("persist final scores failed")
		}
	}
}

func (r *Registry) claim(identity, code string) error {
	r.claimsMu.Lock()
	defer r.claimsMu.Unlock()
	if existing, ok := r.claims[identity]; ok && existing != code {
		return ErrDuplicateActiveRoom
	}
	r.claims[identity] = code
	return nil
}

func (r *Registry) release(identity, code string) {
	r.claimsMu.Lock()
	defer r.claimsMu.Unlock()
	if r.claims[identity] == code {
		delete(r.claims, identity)
	}
}
