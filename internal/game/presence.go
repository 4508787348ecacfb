package game

import (
	"sync"
	"time"
)

type presenceKey struct {
	code     string
	identity string
}

type pendingLeave struct {
	timer Timer
	gen   uint64
}

// Presence binds live connections to room players. A player whose last
// connection drops is removed from the room only if no connection comes
// back within the grace period.
type Presence struct {
	reg   *Registry
	grace time.Duration

	mu      sync.Mutex
	gen     uint64
	pending map[presenceKey]pendingLeave
}

func NewPresence(reg *Registry) *Presence {
	return &Presence{
		reg:     reg,
		grace:   reg.settings.ReconnectGrace,
		pending: make(map[presenceKey]pendingLeave),
	}
}

// Connect registers a connection of identity to the room. Players may
// always connect; anyone else only while the room is still waiting, so
// they can watch the lobby before joining. attach runs with the room locked
// and receives the snapshot the connection must deliver before any later
// event.
func (p *Presence) Connect(code, identity string, attach func(StateSnapshot)) error {
	p.cancel(code, identity)
	isPlayer := false
	err := p.reg.update(code, func(room *Room, now time.Time) error {
		if room.player(identity) == nil && room.status != StatusWaiting {
			return ErrNotAPlayer
		}
		isPlayer = room.player(identity) != nil
		room.online[identity]++
		if attach != nil {
			attach(room.state(identity, now))
		}
		if isPlayer && room.online[identity] == 1 {
			room.emit(EventRoomUpdate, RoomUpdatePayload{Room: room.snapshot()})
		}
		return nil
	})
	if err == nil {
		p.reg.log.Debug().Str("room", code).Str("identity", identity).Bool("player", isPlayer).Msg("connection bound")
	}
	return err
}

// Disconnect unregisters one connection and arms the grace timer when it
// was the identity's last one.
func (p *Presence) Disconnect(code, identity string) {
	arm := false
	_ = p.reg.update(code, func(room *Room, _ time.Time) error {
		if room.online[identity] > 0 {
			room.online[identity]--
		}
		if room.online[identity] > 0 {
			return nil
		}
		delete(room.online, identity)
		if room.player(identity) == nil {
			return nil
		}
		room.emit(EventRoomUpdate, RoomUpdatePayload{Room: room.snapshot()})
		arm = room.status != StatusFinished
		return nil
	})
	if !arm {
		return
	}

	key := presenceKey{code: code, identity: identity}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.pending[key]; ok {
		existing.timer.Stop()
	}
	p.gen++
	gen := p.gen
	timer := p.reg.clock.AfterFunc(p.grace, func() {
		p.expire(key, gen)
	})
	p.pending[key] = pendingLeave{timer: timer, gen: gen}
}

// Forget drops a pending grace timer, used when the player left on purpose.
func (p *Presence) Forget(code, identity string) {
	p.cancel(code, identity)
}

func (p *Presence) Pending(code, identity string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[presenceKey{code: code, identity: identity}]
	return ok
}

func (p *Presence) cancel(code, identity string) {
	key := presenceKey{code: code, identity: identity}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.pending[key]; ok {
		existing.timer.Stop()
		delete(p.pending, key)
	}
}

func (p *Presence) expire(key presenceKey, gen uint64) {
	p.mu.Lock()
	current, ok := p.pending[key]
	if !ok || current.gen != gen {
		p.mu.Unlock()
		return
	}
	delete(p.pending, key)
	p.mu.Unlock()

	left := false
	_ = p.reg.update(key.code, func(room *Room, now time.Time) error {
		if room.online[key.identity] > 0 || room.player(key.identity) == nil {
			return nil
		}
		if err := room.leave(key.identity, "disconnected", now); err != nil {
			return err
		}
		left = true
		return nil
	})
	if left {
		p.reg.log.Info().Str("room", key.code).Str("identity", key.identity).Msg("player timed out after disconnect")
	}
}
