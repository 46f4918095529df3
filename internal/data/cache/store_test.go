package cache

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflscan/internal/engine/diagnostic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	key := Key([]byte("primary_file: point.h"), "include=reflection_impl.h")
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	entry := Entry{
		Key:         key,
		PrimaryFile: "point.h",
		Format:      "descriptor",
		Output:      "#include \"reflection_impl.h\"\n#include \"point.h\"\n\nBEGIN_CLASS(Point)\nEND_CLASS\n\n",
		Records:     2,
		Counts:      map[string]int{"BEGIN_CLASS": 1, "END_CLASS": 1},
		Diagnostics: []diagnostic.Diagnostic{
			{Severity: diagnostic.SeverityWarning, Kind: diagnostic.KindIncompleteType, File: "point.h", Line: 4, Column: 9, Message: "Incomplete type Impl, meta data will not be emitted for impl", Declaration: "impl"},
			{Severity: diagnostic.SeverityError, Kind: diagnostic.KindInternal, Message: "boom, meta data will not be emitted for x", Declaration: "x"},
		},
	}
	require.NoError(t, store.Put(ctx, entry))

	got, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entry.Output, got.Output)
	assert.Equal(t, 2, got.Records)
	assert.Equal(t, entry.Diagnostics, got.Diagnostics)
	assert.Equal(t, entry.Counts, got.Counts)
	assert.Equal(t, 1, got.HitCount)
	assert.False(t, got.CreatedAt.IsZero())

	got, _, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.HitCount)
}

func TestStorePutReplacesDiagnostics(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	entry := Entry{Key: "k", PrimaryFile: "a.h", Format: "tsv", Output: "x", Diagnostics: []diagnostic.Diagnostic{
		{Kind: diagnostic.KindIncompleteType, Message: "first"},
		{Kind: diagnostic.KindIncompleteType, Message: "second"},
	}}
	require.NoError(t, store.Put(ctx, entry))

	entry.Output = "y"
	entry.Diagnostics = nil
	entry.Counts = map[string]int{"FUNCTION": 3}
	require.NoError(t, store.Put(ctx, entry))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "y", got.Output)
	assert.Empty(t, got.Diagnostics)
	assert.Equal(t, map[string]int{"FUNCTION": 3}, got.Counts)

	assert.Error(t, store.Put(ctx, Entry{Key: " "}))
}

func TestKeyDependsOnInputAndFingerprint(t *testing.T) {
	base := Key([]byte("dump"), "cfg")
	assert.Equal(t, base, Key([]byte("dump"), "cfg"))
	assert.NotEqual(t, base, Key([]byte("dump2"), "cfg"))
	assert.NotEqual(t, base, Key([]byte("dump"), "cfg2"))
	assert.NotEqual(t, Key([]byte("ab"), "c"), Key([]byte("a"), "bc"))
}

func TestStorePrune(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	start := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for i, key := range []string{"old", "mid", "new"} {
		require.NoError(t, store.Put(ctx, Entry{
			Key:         key,
			PrimaryFile: "a.h",
			Format:      "descriptor",
			CreatedAt:   start.Add(time.Duration(i) * time.Hour),
			Diagnostics: []diagnostic.Diagnostic{{Kind: diagnostic.KindInternal, Message: key}},
		}))
	}

	removed, err := store.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err := store.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)

	var orphans int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM diagnostics WHERE cache_key = 'old'`).Scan(&orphans))
	assert.Zero(t, orphans, "diagnostics cascade with their entry")
}

func TestOpenValidation(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)

	dir := t.TempDir()
	_, err = Open(dir)
	assert.ErrorContains(t, err, "is a directory")
}

func TestOpenReappliesNothingOnSecondOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Put(context.Background(), Entry{Key: "k", Format: "descriptor"}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, path, second.Path())

	var versions int
	require.NoError(t, second.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&versions))
	assert.Equal(t, SchemaVersion, versions)
}

func TestIsCorruptError(t *testing.T) {
	assert.False(t, IsCorruptError(nil))
	assert.True(t, IsCorruptError(errors.New("file is not a database")))
	assert.True(t, IsCorruptError(os.ErrInvalid))
	assert.False(t, IsCorruptError(sql.ErrNoRows))
}

func TestNilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
	assert.Equal(t, "", s.Path())
}
