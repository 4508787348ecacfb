package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"taboo/internal/db"
	"taboo/internal/words"

	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// LoadWords returns the active words of the bank table.
func (s *Store) LoadWords(ctx context.Context) ([]words.Entry, error) {
	if !s.Enabled() {
		return nil, nil
	}
	var rows []db.Word
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("word").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]words.Entry, 0, len(rows))
	for _, row := range rows {
		var forbidden []string
		if err := json.Unmarshal(row.Forbidden, &forbidden); err != nil {
			return nil, fmt.Errorf("decode forbidden terms of %q: %w", row.Word, err)
		}
		difficulty, err := words.ParseDifficulty(row.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("word %q: %w", row.Word, err)
		}
		entries = append(entries, words.Entry{
			Word:       row.Word,
			Forbidden:  forbidden,
			Difficulty: difficulty,
			Category:   row.Category,
		})
	}
	return entries, nil
}

// UpsertWords inserts the entries or refreshes their terms, category and
// tier. Usage statistics are kept.
func (s *Store) UpsertWords(ctx context.Context, entries []words.Entry) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	upserted := 0
	for _, entry := range entries {
		data, err := json.Marshal(entry.Forbidden)
		if err != nil {
			return upserted, err
		}
		difficulty := entry.Difficulty
		if difficulty == "" || difficulty == words.Mixed {
			difficulty = words.Basic
		}
		category := strings.TrimSpace(entry.Category)
		if category == "" {
			category = "general"
		}
		row := db.Word{
			Word:       strings.TrimSpace(entry.Word),
			Category:   category,
			Difficulty: string(difficulty),
			Forbidden:  datatypes.JSON(data),
			IsActive:   true,
		}
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "word"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "difficulty", "forbidden", "is_active", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return upserted, fmt.Errorf("upsert word %q: %w", row.Word, err)
		}
		upserted++
	}
	return upserted, nil
}

type WordStats struct {
	Word         string  `json:"word"`
	Category     string  `json:"category"`
	Difficulty   string  `json:"difficulty"`
	TimesUsed    int     `json:"times_used"`
	TimesGuessed int     `json:"times_guessed"`
	SuccessRate  float64 `json:"success_rate"`
}

// WordStats returns the most played words first.
func (s *Store) WordStats(ctx context.Context, limit int) ([]WordStats, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var rows []db.Word
	err := s.db.WithContext(ctx).
		Where("times_used > 0").
		Order("times_used DESC, word").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	stats := make([]WordStats, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, WordStats{
			Word:         row.Word,
			Category:     row.Category,
			Difficulty:   row.Difficulty,
			TimesUsed:    row.TimesUsed,
			TimesGuessed: row.TimesGuessed,
			SuccessRate:  row.SuccessRate,
		})
	}
	return stats, nil
}
