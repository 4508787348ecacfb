package main

import (
	"context"
	"flag"
	"time"

	"taboo/internal/config"
	"taboo/internal/db"
	"taboo/internal/logger"
	"taboo/internal/storage"
	"taboo/internal/words"

	"github.com/rs/zerolog/log"
)

func main() {
	filePath := flag.String("file", "words.csv", "path to a .csv or .json word bank")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Warn().Err(err).Msg("failed to load .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("logger setup failed")
	}

	entries, err := words.LoadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("failed to read words")
	}
	// NewBank rejects malformed entries before anything is written.
	if _, err := words.NewBank(entries); err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("invalid word bank")
	}

	conn, err := db.Open(cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	n, err := storage.New(conn).UpsertWords(ctx, entries)
	if err != nil {
		log.Fatal().Err(err).Int("loaded", n).Msg("failed to upsert words")
	}
	log.Info().Int("words", n).Str("file", *filePath).Msg("word bank loaded")
}
