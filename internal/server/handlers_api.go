package server

import (
	"errors"
	"net/http"
	"time"

	"taboo/internal/game"
	"taboo/internal/words"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type roomURI struct {
	Code string `uri:"code" binding:"required,roomcode"`
}

type createRoomRequest struct {
	MaxPlayers   int    `json:"max_players" binding:"omitempty,min=0"`
	RoundsTotal  int    `json:"rounds_total" binding:"omitempty,min=0"`
	RoundSeconds int    `json:"time_per_round_seconds" binding:"omitempty,min=0"`
	Difficulty   string `json:"difficulty" binding:"omitempty,difficulty"`
}

type guessRequest struct {
	Text string `json:"text" binding:"required,guess"`
}

type chatRequest struct {
	Text string `json:"text" binding:"required,chat"`
}

type tokenRequest struct {
	ID          string `json:"id" binding:"omitempty,max=128"`
	DisplayName string `json:"display_name" binding:"required,name"`
}

var createRoomMessages = bindMessages{
	"MaxPlayers":   {"min": "max_players cannot be negative"},
	"RoundsTotal":  {"min": "rounds_total cannot be negative"},
	"RoundSeconds": {"min": "time_per_round_seconds cannot be negative"},
	"Difficulty":   {"difficulty": "difficulty must be basic, medium, hard or mixed"},
}

var guessMessages = bindMessages{
	"Text": {
		"required": "guess is required",
		"guess":    "guess must be 1-60 printable characters",
	},
}

var chatMessages = bindMessages{
	"Text": {
		"required": "message is required",
		"chat":     "message must be 1-280 printable characters",
	},
}

var tokenMessages = bindMessages{
	"DisplayName": {
		"required": "display_name is required",
		"name":     "display_name must be 1-32 printable characters",
	},
}

func roomCode(c *gin.Context) (string, bool) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return "", false
	}
	return game.NormalizeCode(uri.Code), true
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	if !s.enforceRateLimit(c, "create") {
		return
	}
	var req createRoomRequest
	if !bindOptionalJSON(c, &req, createRoomMessages, "invalid room settings") {
		return
	}
	difficulty, _ := words.ParseDifficulty(req.Difficulty)
	caller := identityFrom(c)
	room, err := s.registry.Create(caller, game.RoomConfig{
		MaxPlayers:  req.MaxPlayers,
		RoundsTotal: req.RoundsTotal,
		RoundTime:   time.Duration(req.RoundSeconds) * time.Second,
		Difficulty:  difficulty,
	})
	if err != nil {
		s.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (s *Server) handleGetRoom(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}
	room, err := s.registry.Get(code)
	if err != nil {
		s.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) handleGetState(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}
	state, err := s.registry.State(code, identityFrom(c).ID)
	if err != nil {
		s.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleJoin(c *gin.Context) {
	if !s.enforceRateLimit(c, "join") {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}
	room, err := s.registry.Join(code, identityFrom(c))
	if err != nil && !errors.Is(err, game.ErrAlreadyJoined) {
		s.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) handleLeave(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}
	caller := identityFrom(c)
	if err := s.registry.Leave(code, caller.ID); err != nil {
		s.writeGameError(c, err)
		return
	}
	s.presence.Forget(code, caller.ID)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleStart(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}
	turn, err := s.registry.Start(code, identityFrom(c).ID)
	if err != nil {
		s.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"turn": turn})
}

func (s *Server) handleGuess(c *gin.Context) {
	if !s.enforceRateLimit(c, "guess") {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}
	var req guessRequest
	if !bindJSON(c, &req, guessMessages, "invalid guess") {
		return
	}
	correct, err := s.registry.Guess(code, identityFrom(c).ID, req.Text)
	if err != nil {
		s.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"correct": correct})
}

func (s *Server) handleChat(c *gin.Context) {
	if !s.enforceRateLimit(c, "chat") {
		return
	}
	code, ok := roomCode(c)
	if !ok {
		return
	}
	var req chatRequest
	if !bindJSON(c, &req, chatMessages, "invalid message") {
		return
	}
	msg, err := s.registry.Chat(code, identityFrom(c).ID, req.Text)
	if err != nil {
		s.writeGameError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleSkip(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}
	if err := s.registry.Skip(code, identityFrom(c).ID); err != nil {
		s.writeGameError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCloseRoom(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}
	if err := s.registry.Close(code, identityFrom(c).ID); err != nil {
		s.writeGameError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMyRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.registry.ListActiveForIdentity(identityFrom(c).ID)})
}

// handleIssueToken signs a token for local play when no identity service
// is deployed.
func (s *Server) handleIssueToken(c *gin.Context) {
	if !s.enforceRateLimit(c, "token") {
		return
	}
	var req tokenRequest
	if !bindJSON(c, &req, tokenMessages, "invalid token request") {
		return
	}
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	name, _ := validateName(req.DisplayName)
	caller := game.Identity{ID: id, DisplayName: name}
	token, err := s.issuer.Issue(caller)
	if err != nil {
		s.log.Error().Err(err).Msg("issue token failed")
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":        token,
		"id":           caller.ID,
		"display_name": caller.DisplayName,
	})
}
