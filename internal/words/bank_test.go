package words

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBank(t *testing.T, entries ...Entry) *Bank {
	t.Helper()
	bank, err := NewBank(entries, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	return bank
}

func TestDefaultBankLoads(t *testing.T) {
	bank, err := Default()
	require.NoError(t, err)
	assert.Greater(t, bank.Len(), 20)
	assert.Equal(t, []string{"animals", "food", "places", "things"}, bank.Categories())
}

func TestParseKeepsCategoryAndDifficulty(t *testing.T) {
	entries, err := Parse(strings.NewReader(`{"food":{"hard":{"fondue":["cheese","pot"]}}}`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Word: "fondue", Forbidden: []string{"cheese", "pot"}, Difficulty: Hard, Category: "food"}, entries[0])
}

func TestParseRejectsUnknownDifficulty(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"food":{"extreme":{"fondue":["cheese"]}}}`))
	require.Error(t, err)
}

func TestNewBankRejectsWordWithoutForbiddenTerms(t *testing.T) {
	_, err := NewBank([]Entry{{Word: "apple", Forbidden: []string{" "}}})
	require.Error(t, err)
}

func TestDrawNeverRepeatsUntilExhausted(t *testing.T) {
	bank := testBank(t,
		Entry{Word: "apple", Forbidden: []string{"fruit"}},
		Entry{Word: "pear", Forbidden: []string{"fruit"}},
		Entry{Word: "plum", Forbidden: []string{"fruit"}},
	)
	used := map[string]struct{}{}
	for range 3 {
		entry, repeated, err := bank.Draw(Mixed, used, "")
		require.NoError(t, err)
		assert.False(t, repeated)
		_, seen := used[Normalize(entry.Word)]
		assert.False(t, seen, "word %s drawn twice", entry.Word)
		used[Normalize(entry.Word)] = struct{}{}
	}

	entry, repeated, err := bank.Draw(Mixed, used, "plum")
	require.NoError(t, err)
	assert.True(t, repeated)
	assert.NotEqual(t, "plum", entry.Word)
}

func TestDrawSingleWordBankCycles(t *testing.T) {
	bank := testBank(t, Entry{Word: "apple", Forbidden: []string{"fruit"}})
	entry, repeated, err := bank.Draw(Basic, map[string]struct{}{"apple": {}}, "apple")
	require.NoError(t, err)
	assert.True(t, repeated)
	assert.Equal(t, "apple", entry.Word)
}

func TestDrawPrefersRequestedTier(t *testing.T) {
	bank := testBank(t,
		Entry{Word: "apple", Forbidden: []string{"fruit"}, Difficulty: Basic},
		Entry{Word: "croissant", Forbidden: []string{"pastry"}, Difficulty: Hard},
	)
	for range 10 {
		entry, _, err := bank.Draw(Hard, nil, "")
		require.NoError(t, err)
		assert.Equal(t, "croissant", entry.Word)
	}
}

func TestDrawEmptyBank(t *testing.T) {
	bank := testBank(t)
	_, _, err := bank.Draw(Mixed, nil, "")
	require.ErrorIs(t, err, ErrEmptyBank)
}

func TestMatchesAndMentions(t *testing.T) {
	entry := Entry{Word: "APPLE", Forbidden: []string{"FRUIT", "red"}}

	assert.True(t, Matches("  apple ", entry.Word))
	assert.False(t, Matches("apples", entry.Word))
	assert.False(t, Matches("   ", entry.Word))

	term, ok := Mentions("it is a   Fruit thing", entry)
	assert.True(t, ok)
	assert.Equal(t, "FRUIT", term)

	_, ok = Mentions("think of something round", entry)
	assert.False(t, ok)

	term, ok = Mentions("pineapple!", entry)
	assert.True(t, ok)
	assert.Equal(t, "APPLE", term)
}

func TestParseCSV(t *testing.T) {
	input := "category,difficulty,word,forbidden\n" +
		"animals,basic,Cat,meow|pet | whiskers\n" +
		"animals,,Owl,night|bird\n" +
		"short,row\n"
	entries, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{Word: "Cat", Forbidden: []string{"meow", "pet", "whiskers"}, Difficulty: Basic, Category: "animals"}, entries[0])
	assert.Equal(t, Mixed, entries[1].Difficulty)

	_, err = ParseCSV(strings.NewReader("h,h,h,h\nx,extreme,word,a\n"))
	assert.Error(t, err)
}
