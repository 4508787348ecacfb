package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"taboo/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxRateStrikes = 10

type clientMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type snapshotMessage struct {
	Type  string             `json:"type"`
	Seq   uint64             `json:"seq"`
	State game.StateSnapshot `json:"state"`
}

type ackMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action"`
	Result    any    `json:"result,omitempty"`
}

type rejectMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowsAnyOrigin(s.cfg.AllowedOrigins) {
				return true
			}
			for _, allowed := range s.cfg.AllowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// handleWebsocket upgrades first and reports failures through close codes,
// since browsers cannot read the status of a failed handshake.
func (s *Server) handleWebsocket(c *gin.Context) {
	rawCode := c.Param("code")
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.Request)
	}
	up := s.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("remote", c.ClientIP()).Msg("ws upgrade failed")
		return
	}

	caller, authErr := s.authenticate(token)
	code, codeErr := validateCode(rawCode)
	cl := &client{
		id:       uuid.NewString(),
		room:     code,
		identity: caller.ID,
		name:     caller.DisplayName,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		limiter:  s.limiter.newConnLimiter(),
	}
	go cl.writePump()

	switch {
	case authErr != nil:
		s.hub.shutdown(cl, closeUnauthorized, authErrorCode(authErr))
		return
	case codeErr != nil:
		s.hub.shutdown(cl, closeNotFound, "room_not_found")
		return
	}

	err = s.presence.Connect(code, caller.ID, func(state game.StateSnapshot) {
		s.hub.add(cl)
		s.hub.deliver(cl, snapshotMessage{Type: "snapshot", Seq: state.Seq, State: state})
	})
	if err != nil {
		closeCode := closeForbidden
		if errors.Is(err, game.ErrRoomNotFound) {
			closeCode = closeNotFound
		}
		s.hub.shutdown(cl, closeCode, game.CodeOf(err))
		return
	}
	s.log.Info().Str("room", code).Str("identity", caller.ID).Str("conn", cl.id).Str("remote", c.ClientIP()).Msg("ws connected")
	s.readPump(cl)
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.remove(c)
		s.presence.Disconnect(c.room, c.identity)
		s.log.Info().Str("room", c.room).Str("identity", c.identity).Str("conn", c.id).Msg("ws disconnected")
	}()
	c.conn.SetReadLimit(maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("conn", c.id).Msg("ws read failed")
			}
			return
		}
		if !s.handleClientMessage(c, data) {
			return
		}
	}
}

// handleClientMessage runs one client action and replies with an ack or a
// rejection carrying the request id. It returns false once the connection
// should end.
func (s *Server) handleClientMessage(c *client, data []byte) bool {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.hub.deliver(c, rejectMessage{Type: "action_rejected", Code: "invalid_message", Error: "message is not valid json"})
		return true
	}
	if !c.limiter.Allow() {
		c.strikes++
		if c.strikes >= maxRateStrikes {
			s.hub.shutdown(c, closeRateLimited, "rate_limited")
			return false
		}
		s.reject(c, msg, "rate_limited", "too many messages")
		return true
	}
	c.strikes = 0

	switch msg.Type {
	case "join":
		room, err := s.registry.Join(c.room, game.Identity{ID: c.identity, DisplayName: c.name})
		if err != nil && !errors.Is(err, game.ErrAlreadyJoined) {
			s.rejectErr(c, msg, err)
			return true
		}
		s.ack(c, msg, room)
	case "start":
		turn, err := s.registry.Start(c.room, c.identity)
		if err != nil {
			s.rejectErr(c, msg, err)
			return true
		}
		s.ack(c, msg, turn)
	case "guess":
		text, err := validateGuess(msg.Text)
		if err != nil {
			s.reject(c, msg, "invalid_message", err.Error())
			return true
		}
		correct, err := s.registry.Guess(c.room, c.identity, text)
		if err != nil {
			s.rejectErr(c, msg, err)
			return true
		}
		s.ack(c, msg, map[string]bool{"correct": correct})
	case "chat":
		text, err := validateChat(msg.Text)
		if err != nil {
			s.reject(c, msg, "invalid_message", err.Error())
			return true
		}
		chat, err := s.registry.Chat(c.room, c.identity, text)
		if err != nil {
			s.rejectErr(c, msg, err)
			return true
		}
		s.ack(c, msg, chat)
	case "skip":
		if err := s.registry.Skip(c.room, c.identity); err != nil {
			s.rejectErr(c, msg, err)
			return true
		}
		s.ack(c, msg, nil)
	case "leave":
		if err := s.registry.Leave(c.room, c.identity); err != nil {
			s.rejectErr(c, msg, err)
			return true
		}
		s.presence.Forget(c.room, c.identity)
		s.ack(c, msg, nil)
		s.hub.shutdown(c, websocket.CloseNormalClosure, "left")
		return false
	default:
		s.reject(c, msg, "unknown_message", "unknown message type")
	}
	return true
}

func (s *Server) ack(c *client, msg clientMessage, result any) {
	s.hub.deliver(c, ackMessage{Type: "ack", RequestID: msg.RequestID, Action: msg.Type, Result: result})
}

func (s *Server) reject(c *client, msg clientMessage, code, message string) {
	s.hub.deliver(c, rejectMessage{Type: "action_rejected", RequestID: msg.RequestID, Action: msg.Type, Code: code, Error: message})
}

func (s *Server) rejectErr(c *client, msg clientMessage, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("room", c.room).Str("action", msg.Type).Msg("ws action failed")
		s.reject(c, msg, "internal", "internal error")
		return
	}
	s.reject(c, msg, game.CodeOf(err), err.Error())
}
