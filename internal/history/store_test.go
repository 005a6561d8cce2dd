// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package history

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestRecordAndRecent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, Entry{ID: "a", Output: "/out/a.mp4", Format: "mp4", OK: true, SizeBytes: 10, CreatedAt: base}))
	require.NoError(t, s.Record(ctx, Entry{ID: "b", Output: "/out/b.mp4", Kind: "external_tool", Message: "exit 1", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, s.Record(ctx, Entry{ID: "c", Output: "/out/c.mkv", Format: "mkv", OK: true, CreatedAt: base.Add(2 * time.Minute)}))

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.False(t, got[1].OK)
	assert.Equal(t, "external_tool", got[1].Kind)
	assert.True(t, got[1].CreatedAt.Equal(base.Add(time.Minute)))
}

func TestRecordRejectsDuplicateAndEmptyID(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Entry{ID: "a", Output: "x"}))
	require.Error(t, s.Record(ctx, Entry{ID: "a", Output: "x"}))
	require.Error(t, s.Record(ctx, Entry{Output: "x"}))
}

func TestReopenKeepsEntries(t *testing.T) {
	s, path := openTestStore(t)
	require.NoError(t, s.Record(context.Background(), Entry{ID: "keep", Output: "x", OK: true}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].ID)
	assert.NoError(t, s2.Check(context.Background()))
}

func TestVerifyIntegrityDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.sqlite")
	db, err := openDB(path, DefaultDBConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE test (id INTEGER PRIMARY KEY, data TEXT);")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		_, err = db.Exec("INSERT INTO test (data) VALUES (?);", strings.Repeat("A", 100))
		require.NoError(t, err)
	}
	_, err = db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	junk := make([]byte, 100)
	_, _ = rand.Read(junk)
	_, err = f.WriteAt(junk, 4096)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	db, err = openDB(path, DefaultDBConfig())
	if err != nil {
		return // corruption can already be fatal at open
	}
	defer db.Close()
	issues, err := verifyIntegrity(context.Background(), db, true)
	if err == nil {
		assert.NotEmpty(t, issues)
	}
}

func TestClosedStore(t *testing.T) {
	var s *Store
	assert.ErrorIs(t, s.Record(context.Background(), Entry{ID: "a"}), ErrClosed)
	_, err := s.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}
