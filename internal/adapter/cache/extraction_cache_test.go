package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repomesh/internal/adapter/memstore"
	"repomesh/internal/port"
)

func put(t *testing.T, c port.ExtractionCache, repoID, relFile, hash string) {
	t.Helper()
	require.NoError(t, c.PutBatch(repoID, map[string]port.FileRecords{relFile: {Hash: hash}}))
}

func TestExtractionCacheMemoryOnly(t *testing.T) {
	c, err := NewExtractionCache(2, nil)
	require.NoError(t, err)

	put(t, c, "svc", "a.js", "1")
	put(t, c, "svc", "b.js", "2")

	_, ok := c.Get("svc", "a.js", "1")
	assert.True(t, ok)
	_, ok = c.Get("svc", "a.js", "stale")
	assert.False(t, ok)

	// a.js was used most recently, so b.js is evicted.
	put(t, c, "svc", "c.js", "3")
	_, ok = c.Get("svc", "b.js", "2")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestExtractionCacheBackendFill(t *testing.T) {
	backend := memstore.NewMemoryStore()
	put(t, backend, "svc", "a.js", "1")

	c, err := NewExtractionCache(0, backend)
	require.NoError(t, err)

	_, ok := c.Get("svc", "a.js", "1")
	require.True(t, ok)
	assert.Equal(t, 1, c.Size(), "backend hits are kept in memory")

	require.NoError(t, c.PutBatch("svc", map[string]port.FileRecords{
		"b.js": {Hash: "2"},
		"c.js": {Hash: "3"},
	}))
	_, ok = backend.Get("svc", "b.js", "2")
	assert.True(t, ok, "batches write through")
	_, ok = backend.Get("svc", "c.js", "3")
	assert.True(t, ok)
	assert.Equal(t, 3, c.Size())
}

func TestExtractionCacheDeleteRepo(t *testing.T) {
	backend := memstore.NewMemoryStore()
	c, err := NewExtractionCache(16, backend)
	require.NoError(t, err)

	put(t, c, "svc", "a.js", "1")
	put(t, c, "svc-b", "a.js", "1")
	require.NoError(t, c.DeleteRepo("svc"))

	_, ok := c.Get("svc", "a.js", "1")
	assert.False(t, ok)
	_, ok = backend.Get("svc", "a.js", "1")
	assert.False(t, ok, "the backend drops the repository too")
	_, ok = c.Get("svc-b", "a.js", "1")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Size())
}
