package server

import (
	"encoding/json"
	"sync"
	"time"

	"taboo/internal/game"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageBytes = 4096
	sendBuffer      = 64
)

// Close codes sent to clients in the close frame.
const (
	closeUnauthorized = 4401
	closeForbidden    = 4403
	closeNotFound     = 4404
	closeRoomClosed   = 4410
	closeRateLimited  = 4429
)

type client struct {
	id       string
	room     string
	identity string
	name     string
	conn     *websocket.Conn
	send     chan []byte
	limiter  *rate.Limiter
	strikes  int

	// guarded by Hub.mu
	joined    bool
	closed    bool
	closeCode int
	closeText string
}

// Hub fans room events out to websocket clients. It implements
// game.Broadcaster; Publish runs with the room locked and never blocks, so a
// client that cannot keep up is dropped.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
	log   zerolog.Logger
}

var _ game.Broadcaster = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		log:   log.Logger.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Publish(ev game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[ev.Room] {
		visible, ok := ev.VisibleTo(c.identity)
		if !ok {
			continue
		}
		data, err := json.Marshal(visible)
		if err != nil {
			h.log.Error().Err(err).Str("room", ev.Room).Str("type", string(ev.Type)).Str("identity", c.identity).Msg("encode event failed")
			continue
		}
		h.enqueueLocked(c, data)
	}
}

// Disconnect closes every connection of a room that no longer exists.
func (h *Hub) Disconnect(code, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[code] {
		h.shutdownLocked(c, closeRoomClosed, reason)
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, group := range h.rooms {
		n += len(group)
	}
	return n
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	group := h.rooms[c.room]
	if group == nil {
		group = make(map[*client]struct{})
		h.rooms[c.room] = group
	}
	group[c] = struct{}{}
	c.joined = true
}

func (h *Hub) deliver(c *client, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("room", c.room).Msg("encode message failed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enqueueLocked(c, data)
}

// shutdown queues a close frame after whatever is already buffered.
func (h *Hub) shutdown(c *client, code int, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdownLocked(c, code, reason)
}

func (h *Hub) remove(c *client) {
	h.shutdown(c, websocket.CloseNormalClosure, "")
}

func (h *Hub) enqueueLocked(c *client, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("room", c.room).Str("identity", c.identity).Msg("dropping slow websocket client")
		h.shutdownLocked(c, websocket.CloseTryAgainLater, "slow_consumer")
	}
}

func (h *Hub) shutdownLocked(c *client, code int, reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeText = reason
	close(c.send)
	if c.joined {
		group := h.rooms[c.room]
		delete(group, c)
		if len(group) == 0 {
			delete(h.rooms, c.room)
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, c.closeText))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
