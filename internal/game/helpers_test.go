package game

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"taboo/internal/words"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and fires due timers in deadline order, with
// the clock reading each timer's own deadline while it runs.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if due == nil || t.at.Before(due.at) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		due.fired = true
		if due.at.After(c.now) {
			c.now = due.at
		}
		c.mu.Unlock()
		due.f()
	}
}

// Jump moves time without firing timers, as if they were running late.
func (c *fakeClock) Jump(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingBroadcaster struct {
	mu          sync.Mutex
	events      []Event
	disconnects []string
}

func (b *recordingBroadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBroadcaster) Disconnect(code, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects = append(b.disconnects, code+":"+reason)
}

func (b *recordingBroadcaster) all() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// seen returns what identity would have received, in order.
func (b *recordingBroadcaster) seen(identity string) []Event {
	var out []Event
	for _, ev := range b.all() {
		if visible, ok := ev.VisibleTo(identity); ok {
			out = append(out, visible)
		}
	}
	return out
}

func (b *recordingBroadcaster) count(typ EventType) int {
	n := 0
	for _, ev := range b.all() {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) last(typ EventType) (Event, bool) {
	events := b.all()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == typ {
			return events[i], true
		}
	}
	return Event{}, false
}

func types(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

// sequenceSource hands out its entries in order, skipping used ones, and
// starts over once all are used.
type sequenceSource struct {
	entries []words.Entry
}

func (s *sequenceSource) Draw(_ words.Difficulty, used map[string]struct{}, previous string) (words.Entry, bool, error) {
	if len(s.entries) == 0 {
		return words.Entry{}, false, words.ErrEmptyBank
	}
	for _, entry := range s.entries {
		if _, ok := used[words.Normalize(entry.Word)]; !ok {
			return entry, false, nil
		}
	}
	for _, entry := range s.entries {
		if words.Normalize(entry.Word) != previous {
			return entry, true, nil
		}
	}
	return s.entries[0], true, nil
}

type memoryRecorder struct {
	mu       sync.Mutex
	rooms    []RoomSnapshot
	events   []Event
	outcomes map[string][2]int
	finals   map[string][]Score
}

func newMemoryRecorder() *memoryRecorder {
	return &memoryRecorder{outcomes: map[string][2]int{}, finals: map[string][]Score{}}
}

func (m *memoryRecorder) SaveRoom(_ context.Context, room RoomSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = append(m.rooms, room)
	return nil
}

func (m *memoryRecorder) AppendEvents(_ context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *memoryRecorder) RecordWordOutcome(_ context.Context, word string, guessed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.outcomes[word]
	stats[0]++
	if guessed {
		stats[1]++
	}
	m.outcomes[word] = stats
	return nil
}

func (m *memoryRecorder) PersistFinalScores(_ context.Context, code string, scores []Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finals[code] = scores
	return nil
}

var (
	alice = Identity{ID: "a", DisplayName: "Alice"}
	bob   = Identity{ID: "b", DisplayName: "Bob"}
	carol = Identity{ID: "c", DisplayName: "Carol"}
	dave  = Identity{ID: "d", DisplayName: "Dave"}
)

func fruitEntries() []words.Entry {
	return []words.Entry{
		{Word: "APPLE", Forbidden: []string{"FRUIT", "RED"}, Difficulty: words.Basic},
		{Word: "PEAR", Forbidden: []string{"GREEN", "TREE"}, Difficulty: words.Basic},
		{Word: "PLUM", Forbidden: []string{"PURPLE", "JAM"}, Difficulty: words.Basic},
		{Word: "LEMON", Forbidden: []string{"SOUR", "YELLOW"}, Difficulty: words.Basic},
	}
}

type harness struct {
	clock    *fakeClock
	bus      *recordingBroadcaster
	recorder *memoryRecorder
	reg      *Registry
	presence *Presence
}

func newHarness(t *testing.T, mutate ...func(*Settings)) *harness {
	t.Helper()
	settings := DefaultSettings()
	for _, fn := range mutate {
		fn(&settings)
	}
	h := &harness{
		clock:    newFakeClock(),
		bus:      &recordingBroadcaster{},
		recorder: newMemoryRecorder(),
	}
	h.reg = NewRegistry(settings, &sequenceSource{entries: fruitEntries()},
		WithClock(h.clock),
		WithBroadcaster(h.bus),
		WithRecorder(h.recorder),
		WithLogger(zerolog.Nop()),
	)
	h.presence = NewPresence(h.reg)
	return h
}

// lobby creates a room owned by the first identity and joins the rest.
func (h *harness) lobby(t *testing.T, cfg RoomConfig, ids ...Identity) string {
	t.Helper()
	require.NotEmpty(t, ids)
	snap, err := h.reg.Create(ids[0], cfg)
	require.NoError(t, err)
	for _, id := range ids[1:] {
		_, err := h.reg.Join(snap.Code, id)
		require.NoError(t, err)
	}
	return snap.Code
}

func (h *harness) state(t *testing.T, code, identity string) StateSnapshot {
	t.Helper()
	st, err := h.reg.State(code, identity)
	require.NoError(t, err)
	return st
}

func explainers(st StateSnapshot) []string {
	var out []string
	for _, p := range st.Room.Players {
		if p.Role == RoleExplaining {
			out = append(out, p.ID)
		}
	}
	sort.Strings(out)
	return out
}
