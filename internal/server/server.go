package server

import (
	"net/http"
	"time"

	"taboo/internal/config"
	"taboo/internal/game"
	"taboo/internal/identity"
	"taboo/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	registry *game.Registry
	presence *game.Presence
	hub      *Hub
	resolver identity.Resolver
	issuer   *identity.JWT
	store    *storage.Store
	cfg      config.Config
	limiter  *rateLimiter
	log      zerolog.Logger
	started  time.Time
}

type Options struct {
	Registry *game.Registry
	Presence *game.Presence
	Hub      *Hub
	Resolver identity.Resolver
	// Issuer backs POST /api/tokens when cfg.IssueTokens is set.
	Issuer *identity.JWT
	Store  *storage.Store
}

func New(cfg config.Config, opts Options) *Server {
	registerValidators()
	h := opts.Hub
	if h == nil {
		h = NewHub()
	}
	s := &Server{
		registry: opts.Registry,
		presence: opts.Presence,
		hub:      h,
		resolver: opts.Resolver,
		issuer:   opts.Issuer,
		store:    opts.Store,
		cfg:      cfg,
		limiter:  newRateLimiter(cfg.ActionsPerSecond, cfg.ActionBurst),
		log:      log.Logger.With().Str("component", "http").Logger(),
		started:  time.Now().UTC(),
	}
	if s.presence == nil && s.registry != nil {
		s.presence = game.NewPresence(s.registry)
	}
	if s.resolver == nil && s.issuer != nil {
		s.resolver = s.issuer
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/healthz", s.handleHealth)
	r.GET("/admin", s.handleAdminView)
	r.GET("/api/rooms/:code/qr", s.handleRoomQR)
	r.GET("/ws/rooms/:code", s.handleWebsocket)
	if s.cfg.IssueTokens && s.issuer != nil {
		r.POST("/api/tokens", s.handleIssueToken)
	}

	api := r.Group("/api", s.requireIdentity())
	api.POST("/rooms", s.handleCreateRoom)
	api.GET("/rooms/:code", s.handleGetRoom)
	api.GET("/rooms/:code/state", s.handleGetState)
	api.POST("/rooms/:code/join", s.handleJoin)
	api.POST("/rooms/:code/leave", s.handleLeave)
	api.POST("/rooms/:code/start", s.handleStart)
	api.POST("/rooms/:code/guess", s.handleGuess)
	api.POST("/rooms/:code/chat", s.handleChat)
	api.POST("/rooms/:code/skip", s.handleSkip)
	api.DELETE("/rooms/:code", s.handleCloseRoom)
	api.GET("/me/rooms", s.handleMyRooms)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		ev := s.log.Debug()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("remote", c.ClientIP()).
			Msg("request")
	}
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "Origin"},
		MaxAge:       12 * time.Hour,
	}
	if allowsAnyOrigin(s.cfg.AllowedOrigins) {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = s.cfg.AllowedOrigins
	cfg.AllowCredentials = true
	return cfg
}

func allowsAnyOrigin(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return len(origins) == 0
}
