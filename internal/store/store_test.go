package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())

	for _, table := range []string{"reports", "metadata"} {
		var name string
		err := s.DB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestSaveLookup_RoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	at := time.Now().Truncate(time.Second)
	require.NoError(t, s.Save(&Report{
		Path:       "/src/a.py",
		Hash:       "h1",
		Imports:    []string{"os", "json"},
		Calls:      []string{"os", "json", "helper"},
		AnalyzedAt: at,
	}))

	got, err := s.Lookup("/src/a.py", "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"os", "json"}, got.Imports)
	assert.Equal(t, []string{"os", "json", "helper"}, got.Calls)
	assert.True(t, at.Equal(got.AnalyzedAt), "analyzed_at %v != %v", got.AnalyzedAt, at)
}

func TestLookup_HashMismatchIsMiss(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Save(&Report{Path: "/a.py", Hash: "old"}))

	got, err := s.Lookup("/a.py", "new")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Lookup("/missing.py", "old")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSave_ReplacesExisting(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Save(&Report{Path: "/a.py", Hash: "h1", Calls: []string{"x"}}))
	require.NoError(t, s.Save(&Report{Path: "/a.py", Hash: "h2", Calls: []string{"y"}}))

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Lookup("/a.py", "h2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"y"}, got.Calls)
}

func TestSave_EmptyListsStayNonNil(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Save(&Report{Path: "/empty.py", Hash: "h"}))

	got, err := s.Lookup("/empty.py", "h")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotNil(t, got.Imports)
	assert.NotNil(t, got.Calls)
	assert.Empty(t, got.Imports)
	assert.Empty(t, got.Calls)
}

func TestDeleteAndPurge(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Save(&Report{Path: "/a.py", Hash: "h"}))
	require.NoError(t, s.Save(&Report{Path: "/b.py", Hash: "h"}))
	require.NoError(t, s.SetMetadata("analyzer_version", "1"))

	require.NoError(t, s.Delete("/a.py"))
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Purge())
	n, err = s.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	v, err := s.GetMetadata("analyzer_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v, "purge keeps metadata")
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("k", "v1"))
	require.NoError(t, s.SetMetadata("k", "v2"))
	v, err = s.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestBatch_LookupSeesBufferedReports(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Save(&Report{Path: "/db.py", Hash: "h", Calls: []string{"db"}}))

	b := NewBatch(s)
	require.NoError(t, b.Save(&Report{Path: "/buf.py", Hash: "h", Calls: []string{"buf"}}))

	got, err := b.Lookup("/buf.py", "h")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"buf"}, got.Calls)

	got, err = b.Lookup("/db.py", "h")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"db"}, got.Calls)

	// Not yet committed.
	got, err = s.Lookup("/buf.py", "h")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCommitBatch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatch(s)

	var wg sync.WaitGroup
	for _, p := range []string{"/a.py", "/b.py", "/c.py", "/d.py"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			assert.NoError(t, b.Save(&Report{Path: path, Hash: "h", Imports: []string{"os"}}))
		}(p)
	}
	wg.Wait()
	assert.Equal(t, 4, b.Len())

	require.NoError(t, s.CommitBatch(b))
	assert.Zero(t, b.Len())

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Committing an empty batch is a no-op.
	require.NoError(t, s.CommitBatch(b))
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	h := ContentHash([]byte("import os\n"))
	assert.Len(t, h, 64)
	assert.Equal(t, h, ContentHash([]byte("import os\n")))
	assert.NotEqual(t, h, ContentHash([]byte("import sys\n")))
}

func TestUnmarshalList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{}, unmarshalList(""))
	assert.Equal(t, []string{}, unmarshalList("null"))
	assert.Equal(t, []string{}, unmarshalList("[]"))
	assert.Equal(t, []string{"a", "b"}, unmarshalList(`["a","b"]`))
	assert.Equal(t, "[]", marshalList(nil))
}
