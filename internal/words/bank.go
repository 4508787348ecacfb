package words

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
)

type Difficulty string

const (
	Basic  Difficulty = "basic"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
	// Mixed draws from every tier.
	Mixed Difficulty = "mixed"
)

func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case "":
		return Mixed, nil
	case Basic, Medium, Hard, Mixed:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", raw)
	}
}

// Entry is a secret word together with the terms the explainer may not say.
type Entry struct {
	Word       string
	Forbidden  []string
	Difficulty Difficulty
	Category   string
}

var ErrEmptyBank = errors.New("word bank is empty")

// Source hands out words for turns. used holds normalized words already
// played in the session; previous is the normalized word of the last turn.
type Source interface {
	Draw(difficulty Difficulty, used map[string]struct{}, previous string) (entry Entry, repeated bool, err error)
}

type Bank struct {
	mu      sync.Mutex
	rng     *rand.Rand
	entries []Entry
}

type BankOption func(*Bank)

// WithRand makes draws deterministic for tests and replays.
func WithRand(rng *rand.Rand) BankOption {
	return func(b *Bank) {
		b.rng = rng
	}
}

func NewBank(entries []Entry, opts ...BankOption) (*Bank, error) {
	b := &Bank{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		word := strings.TrimSpace(entry.Word)
		if word == "" {
			return nil, errors.New("word bank entry has an empty word")
		}
		key := Normalize(word)
		if _, dup := seen[key]; dup {
			continue
		}
		forbidden := make([]string, 0, len(entry.Forbidden))
		for _, term := range entry.Forbidden {
			if term = strings.TrimSpace(term); term != "" {
				forbidden = append(forbidden, term)
			}
		}
		if len(forbidden) == 0 {
			return nil, fmt.Errorf("word %q has no forbidden terms", word)
		}
		difficulty := entry.Difficulty
		if difficulty == "" || difficulty == Mixed {
			difficulty = Basic
		}
		seen[key] = struct{}{}
		b.entries = append(b.entries, Entry{
			Word:       word,
			Forbidden:  forbidden,
			Difficulty: difficulty,
			Category:   strings.TrimSpace(entry.Category),
		})
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bank) Len() int {
	return len(b.entries)
}

func (b *Bank) Categories() []string {
	set := make(map[string]struct{})
	for _, entry := range b.entries {
		if entry.Category != "" {
			set[entry.Category] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for category := range set {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

// Draw picks a random unused word of the requested tier. A tier with no
// words falls back to the whole bank. When every candidate has been used the
// draw repeats a word, avoiding previous when there is any alternative, and
// reports repeated=true.
func (b *Bank) Draw(difficulty Difficulty, used map[string]struct{}, previous string) (Entry, bool, error) {
	if len(b.entries) == 0 {
		return Entry{}, false, ErrEmptyBank
	}
	candidates := b.tier(difficulty)
	fresh := make([]int, 0, len(candidates))
	for _, idx := range candidates {
		if _, ok := used[Normalize(b.entries[idx].Word)]; !ok {
			fresh = append(fresh, idx)
		}
	}
	repeated := false
	if len(fresh) == 0 {
		repeated = true
		for _, idx := range candidates {
			if Normalize(b.entries[idx].Word) != previous {
				fresh = append(fresh, idx)
			}
		}
		if len(fresh) == 0 {
			fresh = candidates
		}
	}
	b.mu.Lock()
	pick := fresh[b.rng.IntN(len(fresh))]
	b.mu.Unlock()
	return b.entries[pick], repeated, nil
}

func (b *Bank) tier(difficulty Difficulty) []int {
	all := make([]int, 0, len(b.entries))
	matched := make([]int, 0, len(b.entries))
	for i, entry := range b.entries {
		all = append(all, i)
		if entry.Difficulty == difficulty {
			matched = append(matched, i)
		}
	}
	if difficulty == Mixed || difficulty == "" || len(matched) == 0 {
		return all
	}
	return matched
}
