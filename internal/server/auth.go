package server

import (
	"errors"
	"net/http"
	"strings"

	"taboo/internal/game"
	"taboo/internal/identity"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// requireIdentity resolves the bearer token and stores the caller on the
// context. The websocket route reads the token from the query instead.
func (s *Server) requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.authenticate(bearerToken(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
				"code":  authErrorCode(err),
			})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func (s *Server) authenticate(token string) (game.Identity, error) {
	if s.resolver == nil {
		return game.Identity{}, identity.ErrInvalidToken
	}
	return s.resolver.Resolve(token)
}

func identityFrom(c *gin.Context) game.Identity {
	id, _ := c.Get(identityKey)
	caller, _ := id.(game.Identity)
	return caller
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func authErrorCode(err error) string {
	switch {
	case errors.Is(err, identity.ErrMissingToken):
		return "missing_token"
	case errors.Is(err, identity.ErrExpiredToken):
		return "expired_token"
	default:
		return "invalid_token"
	}
}
