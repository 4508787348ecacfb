package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"taboo/internal/game"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var ErrMissingSecret = errors.New("jwt_secret is required")

type Config struct {
	Bind           string
	Port           int
	DatabaseURL    string
	JWTSecret      string
	TokenTTL       time.Duration
	IssueTokens    bool
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	WordsPath      string

	ReconnectGraceSeconds int
	EmptyRoomSeconds      int
	IdleRoomSeconds       int
	FinishedRoomSeconds   int
	SweepIntervalMS       int

	DefaultMaxPlayers   int
	MaxRoomPlayers      int
	DefaultRounds       int
	MaxRounds           int
	DefaultRoundSeconds int
	MinRoundSeconds     int
	MaxRoundSeconds     int
	GuesserPoints       int
	ExplainerPoints     int
	ChatHistory         int

	ActionsPerSecond float64
	ActionBurst      int

	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		Bind:                     "0.0.0.0",
		Port:                     8080,
		TokenTTL:                 24 * time.Hour,
		LogLevel:                 "info",
		LogFormat:                "console",
		AllowedOrigins:           []string{"*"},
		ReconnectGraceSeconds:    5,
		EmptyRoomSeconds:         0,
		IdleRoomSeconds:          600,
		FinishedRoomSeconds:      60,
		SweepIntervalMS:          1000,
		DefaultMaxPlayers:        8,
		MaxRoomPlayers:           12,
		DefaultRounds:            3,
		MaxRounds:                10,
		DefaultRoundSeconds:      60,
		MinRoundSeconds:          5,
		MaxRoundSeconds:          300,
		GuesserPoints:            1,
		ExplainerPoints:          0,
		ChatHistory:              50,
		ActionsPerSecond:         5,
		ActionBurst:              10,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

// NewViper returns a viper instance that reads every key from the
// environment (reconnect_grace_seconds <- RECONNECT_GRACE_SECONDS) with the
// defaults above.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	d := Default()
	v.SetDefault("bind", d.Bind)
	v.SetDefault("port", d.Port)
	v.SetDefault("database_url", d.DatabaseURL)
	v.SetDefault("jwt_secret", d.JWTSecret)
	v.SetDefault("token_ttl", d.TokenTTL)
	v.SetDefault("issue_tokens", d.IssueTokens)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("allowed_origins", d.AllowedOrigins)
	v.SetDefault("words_path", d.WordsPath)
	v.SetDefault("reconnect_grace_seconds", d.ReconnectGraceSeconds)
	v.SetDefault("empty_room_seconds", d.EmptyRoomSeconds)
	v.SetDefault("idle_room_seconds", d.IdleRoomSeconds)
	v.SetDefault("finished_room_seconds", d.FinishedRoomSeconds)
	v.SetDefault("sweep_interval_ms", d.SweepIntervalMS)
	v.SetDefault("default_max_players", d.DefaultMaxPlayers)
	v.SetDefault("max_room_players", d.MaxRoomPlayers)
	v.SetDefault("default_rounds", d.DefaultRounds)
	v.SetDefault("max_rounds", d.MaxRounds)
	v.SetDefault("default_round_seconds", d.DefaultRoundSeconds)
	v.SetDefault("min_round_seconds", d.MinRoundSeconds)
	v.SetDefault("max_round_seconds", d.MaxRoundSeconds)
	v.SetDefault("guesser_points", d.GuesserPoints)
	v.SetDefault("explainer_points", d.ExplainerPoints)
	v.SetDefault("chat_history", d.ChatHistory)
	v.SetDefault("actions_per_second", d.ActionsPerSecond)
	v.SetDefault("action_burst", d.ActionBurst)
	v.SetDefault("db_max_open_conns", d.DBMaxOpenConns)
	v.SetDefault("db_max_idle_conns", d.DBMaxIdleConns)
	v.SetDefault("db_conn_max_lifetime_seconds", d.DBConnMaxLifetimeSeconds)
	v.SetDefault("db_conn_max_idle_seconds", d.DBConnMaxIdleTimeSeconds)
	return v
}

// RegisterFlags adds the command-line surface of the server and binds each
// flag to its viper key, so a flag set on the command line beats the
// environment.
func RegisterFlags(fs *pflag.FlagSet, v *viper.Viper) {
	d := Default()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringP("bind", "b", d.Bind, "address to bind to (env: BIND)")
	fs.IntP("port", "p", d.Port, "port to listen on (env: PORT)")
	fs.String("database-url", d.DatabaseURL, "postgres DSN; empty keeps everything in memory (env: DATABASE_URL)")
	fs.String("jwt-secret", d.JWTSecret, "HS256 secret shared with the identity service (env: JWT_SECRET)")
	fs.Duration("token-ttl", d.TokenTTL, "lifetime of locally issued tokens (env: TOKEN_TTL)")
	fs.Bool("issue-tokens", d.IssueTokens, "expose POST /api/tokens for local play (env: ISSUE_TOKENS)")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error (env: LOG_LEVEL)")
	fs.String("log-format", d.LogFormat, "console or json (env: LOG_FORMAT)")
	fs.StringSlice("allowed-origins", d.AllowedOrigins, "CORS and websocket origins (env: ALLOWED_ORIGINS)")
	fs.String("words-path", d.WordsPath, "word bank .json or .csv; empty uses the database or the built-in bank (env: WORDS_PATH)")
	fs.Int("reconnect-grace-seconds", d.ReconnectGraceSeconds, "time a dropped player has to reconnect (env: RECONNECT_GRACE_SECONDS)")
	fs.Int("idle-room-seconds", d.IdleRoomSeconds, "lobbies nobody is connected to are closed after this long (env: IDLE_ROOM_SECONDS)")
	fs.Int("finished-room-seconds", d.FinishedRoomSeconds, "finished rooms linger this long once everyone is gone (env: FINISHED_ROOM_SECONDS)")
	fs.Int("round-seconds", d.DefaultRoundSeconds, "default turn length (env: DEFAULT_ROUND_SECONDS)")
	fs.Int("explainer-points", d.ExplainerPoints, "points the explainer earns per correct guess (env: EXPLAINER_POINTS)")

	keys := map[string]string{"round-seconds": "default_round_seconds"}
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		_ = v.BindPFlag(key, f)
	})
}

// FromViper reads a Config out of v.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Bind:                     v.GetString("bind"),
		Port:                     v.GetInt("port"),
		DatabaseURL:              v.GetString("database_url"),
		JWTSecret:                v.GetString("jwt_secret"),
		TokenTTL:                 v.GetDuration("token_ttl"),
		IssueTokens:              v.GetBool("issue_tokens"),
		LogLevel:                 v.GetString("log_level"),
		LogFormat:                v.GetString("log_format"),
		AllowedOrigins:           splitList(v.GetStringSlice("allowed_origins")),
		WordsPath:                v.GetString("words_path"),
		ReconnectGraceSeconds:    v.GetInt("reconnect_grace_seconds"),
		EmptyRoomSeconds:         v.GetInt("empty_room_seconds"),
		IdleRoomSeconds:          v.GetInt("idle_room_seconds"),
		FinishedRoomSeconds:      v.GetInt("finished_room_seconds"),
		SweepIntervalMS:          v.GetInt("sweep_interval_ms"),
		DefaultMaxPlayers:        v.GetInt("default_max_players"),
		MaxRoomPlayers:           v.GetInt("max_room_players"),
		DefaultRounds:            v.GetInt("default_rounds"),
		MaxRounds:                v.GetInt("max_rounds"),
		DefaultRoundSeconds:      v.GetInt("default_round_seconds"),
		MinRoundSeconds:          v.GetInt("min_round_seconds"),
		MaxRoundSeconds:          v.GetInt("max_round_seconds"),
		GuesserPoints:            v.GetInt("guesser_points"),
		ExplainerPoints:          v.GetInt("explainer_points"),
		ChatHistory:              v.GetInt("chat_history"),
		ActionsPerSecond:         v.GetFloat64("actions_per_second"),
		ActionBurst:              v.GetInt("action_burst"),
		DBMaxOpenConns:           v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:           v.GetInt("db_max_idle_conns"),
		DBConnMaxLifetimeSeconds: v.GetInt("db_conn_max_lifetime_seconds"),
		DBConnMaxIdleTimeSeconds: v.GetInt("db_conn_max_idle_seconds"),
	}
	return cfg, cfg.Validate()
}

// Load reads the configuration from the environment only. Used by the
// maintenance commands that have no flags of their own.
func Load() (Config, error) {
	return FromViper(NewViper())
}

func (c Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port))
	}
	if c.MaxRoomPlayers < 2 {
		errs = append(errs, errors.New("max_room_players must be at least 2"))
	}
	if c.DefaultMaxPlayers < 2 || c.DefaultMaxPlayers > c.MaxRoomPlayers {
		errs = append(errs, fmt.Errorf("default_max_players must be between 2 and %d", c.MaxRoomPlayers))
	}
	if c.DefaultRounds < 1 || c.DefaultRounds > c.MaxRounds {
		errs = append(errs, fmt.Errorf("default_rounds must be between 1 and %d", c.MaxRounds))
	}
	if c.MinRoundSeconds < 1 || c.MinRoundSeconds > c.MaxRoundSeconds {
		errs = append(errs, errors.New("min_round_seconds must be positive and not above max_round_seconds"))
	}
	if c.DefaultRoundSeconds < c.MinRoundSeconds || c.DefaultRoundSeconds > c.MaxRoundSeconds {
		errs = append(errs, fmt.Errorf("default_round_seconds must be between %d and %d", c.MinRoundSeconds, c.MaxRoundSeconds))
	}
	if c.GuesserPoints < 0 || c.ExplainerPoints < 0 {
		errs = append(errs, errors.New("points cannot be negative"))
	}
	if c.ReconnectGraceSeconds < 0 || c.EmptyRoomSeconds < 0 || c.IdleRoomSeconds < 0 || c.FinishedRoomSeconds < 0 {
		errs = append(errs, errors.New("timeouts cannot be negative"))
	}
	if c.SweepIntervalMS < 10 {
		errs = append(errs, errors.New("sweep_interval_ms must be at least 10"))
	}
	if c.ActionsPerSecond <= 0 || c.ActionBurst < 1 {
		errs = append(errs, errors.New("actions_per_second and action_burst must be positive"))
	}
	return errors.Join(errs...)
}

// RequireSecret fails when no token secret is configured. The server does not
// start without one; an empty HS256 key would let anyone mint tokens.
func (c Config) RequireSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingSecret
	}
	return nil
}

// Settings converts the room limits into the coordinator's terms.
func (c Config) Settings() game.Settings {
	return game.Settings{
		DefaultMaxPlayers: c.DefaultMaxPlayers,
		MaxRoomPlayers:    c.MaxRoomPlayers,
		DefaultRounds:     c.DefaultRounds,
		MaxRounds:         c.MaxRounds,
		DefaultRoundTime:  seconds(c.DefaultRoundSeconds),
		MinRoundTime:      seconds(c.MinRoundSeconds),
		MaxRoundTime:      seconds(c.MaxRoundSeconds),
		GuesserPoints:     c.GuesserPoints,
		ExplainerPoints:   c.ExplainerPoints,
		ChatHistory:       c.ChatHistory,
		ReconnectGrace:    seconds(c.ReconnectGraceSeconds),
		EmptyRoomTTL:      seconds(c.EmptyRoomSeconds),
		IdleRoomTTL:       seconds(c.IdleRoomSeconds),
		FinishedRoomTTL:   seconds(c.FinishedRoomSeconds),
	}
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// splitList accepts both repeated values and a single comma separated env
// value.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
