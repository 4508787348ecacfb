package server

import (
	"net/http"

	"taboo/internal/game"

	"github.com/gin-gonic/gin"
)

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

// writeGameError maps a coordinator error onto an HTTP status.
func (s *Server) writeGameError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		writeError(c, status, "internal", "internal error")
		return
	}
	writeError(c, status, game.CodeOf(err), err.Error())
}

func statusFor(err error) int {
	switch game.KindOf(err) {
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindForbidden:
		return http.StatusForbidden
	case game.KindConflict, game.KindInvalidState:
		return http.StatusConflict
	case game.KindValidation:
		return http.StatusBadRequest
	case game.KindForbiddenWord:
		return http.StatusUnprocessableEntity
	case game.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
