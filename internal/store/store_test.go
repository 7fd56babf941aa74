package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Index {
	t.Helper()
	x, err := Open(filepath.Join(t.TempDir(), "index.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.Close() })
	return x
}

func collect(t *testing.T, x *Index) []Entry {
	t.Helper()
	var out []Entry
	for e, err := range x.All(context.Background()) {
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestIndex_AllOrdersLowerPriorityFirst(t *testing.T) {
	ctx := context.Background()
	x := openTest(t)

	require.NoError(t, x.ReplaceRoot(ctx, "homebrew", []Entry{
		{Path: "homebrew/moves/strike", ID: "sf/moves/strike", Priority: 10},
	}))
	require.NoError(t, x.ReplaceRoot(ctx, "sf", []Entry{
		{Path: "sf/moves/strike", ID: "sf/moves/strike", Priority: 1},
		{Path: "sf/moves/clash", ID: "sf/moves/clash", Priority: 1},
	}))

	var got []string
	for _, e := range collect(t, x) {
		got = append(got, e.ID+"@"+e.Root)
	}
	assert.Equal(t, []string{
		"sf/moves/clash@sf",
		"sf/moves/strike@sf",
		"sf/moves/strike@homebrew",
	}, got)

	winner, err := x.Resolve(ctx, "sf/moves/strike")
	require.NoError(t, err)
	assert.Equal(t, "homebrew", winner.Root)
	assert.Equal(t, 10, winner.Priority)
}

func TestIndex_ReplaceRootDropsStaleEntries(t *testing.T) {
	ctx := context.Background()
	x := openTest(t)

	require.NoError(t, x.ReplaceRoot(ctx, "sf", []Entry{
		{Path: "sf/a", ID: "a"},
		{Path: "sf/b", ID: "b"},
	}))
	require.NoError(t, x.ReplaceRoot(ctx, "sf", []Entry{
		{Path: "sf/b", ID: "b"},
	}))

	entries := collect(t, x)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "sf", entries[0].Root)
}

func TestIndex_RemoveRoot(t *testing.T) {
	ctx := context.Background()
	x := openTest(t)
	require.NoError(t, x.ReplaceRoot(ctx, "sf", []Entry{{Path: "sf/a", ID: "a"}, {Path: "sf/b", ID: "b"}}))
	require.NoError(t, x.ReplaceRoot(ctx, "hb", []Entry{{Path: "hb/c", ID: "c"}}))

	require.NoError(t, x.RemoveRoot(ctx, "sf"))
	_, err := x.Resolve(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := x.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIndex_ResolveWhileIterating(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	x := openTest(t)
	require.NoError(t, x.ReplaceRoot(ctx, "hb", []Entry{{Path: "hb/a", ID: "a", Priority: 5}}))
	require.NoError(t, x.ReplaceRoot(ctx, "sf", []Entry{{Path: "sf/a", ID: "a"}, {Path: "sf/b", ID: "b"}}))

	var winners []string
	for e, err := range x.All(ctx) {
		require.NoError(t, err)
		w, err := x.Resolve(ctx, e.ID)
		require.NoError(t, err)
		winners = append(winners, w.Root)
	}
	assert.Equal(t, []string{"hb", "hb", "sf"}, winners)
}

func TestIndex_RecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	x, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer func() { _ = x.Close() }()

	require.NoError(t, x.ReplaceRoot(ctx, "p", []Entry{{Path: "p/x", ID: "x", Revision: "r", Record: json.RawMessage(`{"rows":[1,2]}`)}}))
	e, err := x.Resolve(ctx, "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[1,2]}`, string(e.Record))
	assert.Equal(t, "r", e.Revision)
}
