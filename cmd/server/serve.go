package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taboo/internal/config"
	"taboo/internal/db"
	"taboo/internal/game"
	"taboo/internal/identity"
	"taboo/internal/logger"
	"taboo/internal/server"
	"taboo/internal/storage"
	"taboo/internal/words"

	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg config.Config) error {
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if err := cfg.RequireSecret(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	bank, err := loadBank(ctx, cfg, store)
	if err != nil {
		return err
	}

	hub := server.NewHub()
	registry := game.NewRegistry(cfg.Settings(), bank,
		game.WithBroadcaster(hub),
		game.WithRecorder(store),
		game.WithLogger(log.Logger.With().Str("component", "game").Logger()),
	)
	issuer := identity.NewJWT(cfg.JWTSecret, cfg.TokenTTL)
	srv := server.New(cfg, server.Options{
		Registry: registry,
		Presence: game.NewPresence(registry),
		Hub:      hub,
		Issuer:   issuer,
		Store:    store,
	})

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go registry.Run(sweepCtx, cfg.SweepInterval())

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Bool("persistent", store.Enabled()).
			Bool("issue_tokens", cfg.IssueTokens).
			Int("words", bank.Len()).
			Msg("taboo server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// openStore connects to Postgres when a DSN is configured. Without one the
// server keeps everything in memory.
func openStore(cfg config.Config) (*storage.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("no DATABASE_URL, running without persistence")
		return storage.New(nil), nil
	}
	conn, err := db.Open(cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return storage.New(conn), nil
}

// loadBank prefers an explicit file, then the words table, then the bank
// compiled into the binary.
func loadBank(ctx context.Context, cfg config.Config, store *storage.Store) (*words.Bank, error) {
	if cfg.WordsPath != "" {
		entries, err := words.LoadFile(cfg.WordsPath)
		if err != nil {
			return nil, fmt.Errorf("load words from %s: %w", cfg.WordsPath, err)
		}
		log.Info().Str("path", cfg.WordsPath).Int("words", len(entries)).Msg("word bank loaded from file")
		return words.NewBank(entries)
	}
	if store.Enabled() {
		entries, err := store.LoadWords(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("loading words from database failed, using built-in bank")
		} else if len(entries) > 0 {
			log.Info().Int("words", len(entries)).Msg("word bank loaded from database")
			return words.NewBank(entries)
		}
	}
	return words.Default()
}
