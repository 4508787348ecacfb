package words

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed default.json
var defaultBank []byte

// Parse reads the category -> difficulty -> word -> forbidden terms layout.
func Parse(r io.Reader) ([]Entry, error) {
	var raw map[string]map[string]map[string][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode word bank: %w", err)
	}
	categories := make([]string, 0, len(raw))
	for category := range raw {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var entries []Entry
	for _, category := range categories {
		tiers := raw[category]
		tierNames := make([]string, 0, len(tiers))
		for tier := range tiers {
			tierNames = append(tierNames, tier)
		}
		sort.Strings(tierNames)
		for _, tier := range tierNames {
			difficulty, err := ParseDifficulty(tier)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", category, err)
			}
			wordsByName := tiers[tier]
			names := make([]string, 0, len(wordsByName))
			for word := range wordsByName {
				names = append(names, word)
			}
			sort.Strings(names)
			for _, word := range names {
				entries = append(entries, Entry{
					Word:       word,
					Forbidden:  wordsByName[word],
					Difficulty: difficulty,
					Category:   category,
				})
			}
		}
	}
	return entries, nil
}

// ParseCSV reads rows of category, difficulty, word and the forbidden terms
// joined by "|". The first row is a header.
func ParseCSV(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read word csv: %w", err)
	}

	var entries []Entry
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		category := strings.TrimSpace(row[0])
		word := strings.TrimSpace(row[2])
		if word == "" {
			continue
		}
		difficulty, err := ParseDifficulty(row[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		var forbidden []string
		for _, term := range strings.Split(row[3], "|") {
			if term = strings.TrimSpace(term); term != "" {
				forbidden = append(forbidden, term)
			}
		}
		entries = append(entries, Entry{
			Word:       word,
			Forbidden:  forbidden,
			Difficulty: difficulty,
			Category:   category,
		})
	}
	return entries, nil
}

// LoadFile reads a bank from a .json or .csv file.
func LoadFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseCSV(file)
	}
	return Parse(file)
}

// Default returns the bank compiled into the binary.
func Default(opts ...BankOption) (*Bank, error) {
	entries, err := Parse(bytes.NewReader(defaultBank))
	if err != nil {
		return nil, err
	}
	return NewBank(entries, opts...)
}
