package storage

import (
	"context"
	"testing"
	"time"

	"taboo/internal/game"
	"taboo/internal/words"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreWithoutDatabaseIsNoop(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	assert.False(t, s.Enabled())
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.SaveRoom(ctx, game.RoomSnapshot{Code: "ABCD", CreatedAt: time.Now()}))
	require.NoError(t, s.AppendEvents(ctx, []game.Event{{ID: "e1", Seq: 1, Type: game.EventPlayerJoined, Room: "ABCD"}}))
	require.NoError(t, s.RecordWordOutcome(ctx, "apple", true))
	require.NoError(t, s.PersistFinalScores(ctx, "ABCD", []game.Score{{Rank: 1, Player: "a"}}))

	n, err := s.UpsertWords(ctx, []words.Entry{{Word: "apple", Forbidden: []string{"fruit"}}})
	require.NoError(t, err)
	assert.Zero(t, n)

	entries, err := s.LoadWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	var nilStore *Store
	assert.False(t, nilStore.Enabled())
}
