package identity

import (
	"testing"
	"time"

	"taboo/internal/game"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndResolve(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	token, err := j.Issue(game.Identity{ID: "u-1", DisplayName: "Ada"})
	require.NoError(t, err)

	id, err := j.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, game.Identity{ID: "u-1", DisplayName: "Ada"}, id)
}

func TestResolveFallsBackToSubjectForName(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	token, err := j.Issue(game.Identity{ID: "u-2"})
	require.NoError(t, err)
	id, err := j.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "u-2", id.DisplayName)
}

func TestResolveRejectsBadTokens(t *testing.T) {
	j := NewJWT("secret", time.Hour)

	_, err := j.Resolve("")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = j.Resolve("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewJWT("other", time.Hour).Issue(game.Identity{ID: "u-1"})
	require.NoError(t, err)
	_, err = j.Resolve(other)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.Resolve(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestEmptySecretNeverVerifies(t *testing.T) {
	j := NewJWT("", time.Hour)
	_, err := j.Issue(game.Identity{ID: "mallory"})
	require.ErrorIs(t, err, ErrNoSigningKey)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "mallory"}).SignedString([]byte{})
	require.NoError(t, err)
	_, err = j.Resolve(forged)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, ErrNoSigningKey)
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	j := NewJWT("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	j.now = func() time.Time { return issued }
	token, err := j.Issue(game.Identity{ID: "u-1"})
	require.NoError(t, err)

	j.now = time.Now
	_, err = j.Resolve(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}
