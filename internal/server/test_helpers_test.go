package server

import (
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taboo/internal/config"
	"taboo/internal/game"
	"taboo/internal/identity"
	"taboo/internal/storage"
	"taboo/internal/words"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

type testApp struct {
	ts       *httptest.Server
	srv      *Server
	registry *game.Registry
	hub      *Hub
	issuer   *identity.JWT
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *testApp {
	t.Helper()
	cfg := config.Default()
	cfg.JWTSecret = testSecret
	cfg.IssueTokens = true
	cfg.ActionsPerSecond = 1000
	cfg.ActionBurst = 1000
	for _, fn := range mutate {
		fn(&cfg)
	}
	bank, err := words.NewBank([]words.Entry{
		{Word: "Apple", Forbidden: []string{"fruit", "red"}, Category: "food"},
		{Word: "Piano", Forbidden: []string{"keys", "music"}, Category: "things"},
		{Word: "River", Forbidden: []string{"water", "flow"}, Category: "places"},
	}, words.WithRand(rand.New(rand.NewPCG(7, 7))))
	require.NoError(t, err)

	hub := NewHub()
	reg := game.NewRegistry(cfg.Settings(), bank, game.WithBroadcaster(hub))
	issuer := identity.NewJWT(cfg.JWTSecret, time.Hour)
	srv := New(cfg, Options{
		Registry: reg,
		Hub:      hub,
		Issuer:   issuer,
		Store:    storage.New(nil),
	})
	return &testApp{
		ts:       newTestServer(t, srv.Handler()),
		srv:      srv,
		registry: reg,
		hub:      hub,
		issuer:   issuer,
	}
}

func (a *testApp) token(t *testing.T, id, name string) string {
	t.Helper()
	token, err := a.issuer.Issue(game.Identity{ID: id, DisplayName: name})
	require.NoError(t, err)
	return token
}
