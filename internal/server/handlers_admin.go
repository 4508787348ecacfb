package server

import (
	"context"
	"net/http"
	"time"

	"taboo/internal/game"
	"taboo/internal/web"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

func (s *Server) handleAdminView(c *gin.Context) {
	rooms := s.registry.List()
	page, perPage := parsePagination(c, 25, 100)
	pagination := buildPaginationData("/admin", page, perPage, int64(len(rooms)))

	data := web.AdminData{
		Persistent:  s.store.Enabled(),
		GeneratedAt: time.Now().UTC(),
		Pagination:  pagination,
	}
	for _, room := range paginate(rooms, pagination.Page, pagination.PerPage) {
		data.Rooms = append(data.Rooms, roomSummary(room))
	}
	if data.Persistent {
		stats, err := s.store.WordStats(c.Request.Context(), 20)
		if err != nil {
			s.log.Warn().Err(err).Msg("admin word stats unavailable")
		}
		for _, stat := range stats {
			data.Words = append(data.Words, web.WordStat{
				Word:        stat.Word,
				Category:    stat.Category,
				Difficulty:  stat.Difficulty,
				TimesUsed:   stat.TimesUsed,
				SuccessRate: stat.SuccessRate,
			})
		}
	}
	templ.Handler(web.Admin(data)).ServeHTTP(c.Writer, c.Request)
}

func roomSummary(room game.RoomSnapshot) web.RoomSummary {
	return web.RoomSummary{
		Code:         room.Code,
		Status:       string(room.Status),
		Owner:        room.Owner,
		Players:      len(room.Players),
		MaxPlayers:   room.MaxPlayers,
		Connections:  room.Connections,
		CurrentRound: room.CurrentRound,
		RoundsTotal:  room.RoundsTotal,
		Difficulty:   string(room.Difficulty),
		CreatedAt:    room.CreatedAt,
		UpdatedAt:    room.UpdatedAt,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":         "ok",
		"rooms":          len(s.registry.List()),
		"connections":    s.hub.Count(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"database":       "disabled",
	}
	if s.store.Enabled() {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.log.Warn().Err(err).Msg("database ping failed")
			body["status"] = "degraded"
			body["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	c.JSON(status, body)
}

// handleRoomQR renders a PNG of the join link so players in the same room
// can scan it off a shared screen.
func (s *Server) handleRoomQR(c *gin.Context) {
	code, ok := roomCode(c)
	if !ok {
		return
	}
	if _, err := s.registry.Get(code); err != nil {
		s.writeGameError(c, err)
		return
	}
	png, err := qrcode.Encode(joinURL(c.Request, code), qrcode.Medium, qrSize)
	if err != nil {
		s.log.Error().Err(err).Str("room", code).Msg("qr encode failed")
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
