package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taboo/internal/game"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrExpiredToken   = errors.New("token expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidSubject = errors.New("token has no subject")
	ErrNoSigningKey   = errors.New("no signing key configured")
)

// Resolver turns a bearer token into the caller's identity. Tokens are
// issued by an external identity service; this process only verifies them.
type Resolver interface {
	Resolve(token string) (game.Identity, error)
}

type claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// JWT verifies HS256 tokens whose subject is the identity and whose name
// claim is the display name.
type JWT struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewJWT(secret string, maxAge time.Duration) *JWT {
	return &JWT{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Issue signs a token. The server uses it for local play and tests.
func (j *JWT) Issue(id game.Identity) (string, error) {
	if len(j.secret) == 0 {
		return "", ErrNoSigningKey
	}
	now := j.now()
	c := claims{
		Name: id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.maxAge)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (j *JWT) Resolve(token string) (game.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return game.Identity{}, ErrMissingToken
	}
	if len(j.secret) == 0 {
		return game.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrNoSigningKey)
	}
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return game.Identity{}, ErrExpiredToken
		}
		return game.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return game.Identity{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return game.Identity{}, ErrInvalidSubject
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = c.Subject
	}
	return game.Identity{ID: c.Subject, DisplayName: name}, nil
}
