package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	s := cfg.Settings()
	assert.Equal(t, 8, s.DefaultMaxPlayers)
	assert.Equal(t, 60*time.Second, s.DefaultRoundTime)
	assert.Equal(t, 5*time.Second, s.ReconnectGrace)
	assert.Equal(t, time.Second, cfg.SweepInterval())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RECONNECT_GRACE_SECONDS", "12")
	t.Setenv("EXPLAINER_POINTS", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 12*time.Second, cfg.Settings().ReconnectGrace)
	assert.Equal(t, 2, cfg.ExplainerPoints)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_ROUND_SECONDS", "30")

	v := NewViper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, v)
	require.NoError(t, fs.Parse([]string{"--port", "7070"}))

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 30, cfg.DefaultRoundSeconds, "unset flag falls back to env")

	require.NoError(t, fs.Parse([]string{"--round-seconds", "45"}))
	cfg, err = FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 45, cfg.DefaultRoundSeconds)
}

func TestValidateRejectsBrokenLimits(t *testing.T) {
	cases := map[string]func(*Config){
		"port":          func(c *Config) { c.Port = 0 },
		"room players":  func(c *Config) { c.DefaultMaxPlayers = 40 },
		"rounds":        func(c *Config) { c.DefaultRounds = 0 },
		"round seconds": func(c *Config) { c.DefaultRoundSeconds = 1000 },
		"min above max": func(c *Config) { c.MinRoundSeconds = 400 },
		"points":        func(c *Config) { c.GuesserPoints = -1 },
		"grace":         func(c *Config) { c.ReconnectGraceSeconds = -1 },
		"sweep":         func(c *Config) { c.SweepIntervalMS = 0 },
		"rate":          func(c *Config) { c.ActionsPerSecond = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestRequireSecret(t *testing.T) {
	cfg := Default()
	require.ErrorIs(t, cfg.RequireSecret(), ErrMissingSecret)
	cfg.JWTSecret = "   "
	require.ErrorIs(t, cfg.RequireSecret(), ErrMissingSecret)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.RequireSecret())
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TABOO_DOTENV_PROBE=loaded\n"), 0o600))
	t.Setenv("TABOO_DOTENV_PROBE", "")
	require.NoError(t, os.Unsetenv("TABOO_DOTENV_PROBE"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("TABOO_DOTENV_PROBE"))
}
