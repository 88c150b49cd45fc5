package cache

import (
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"repomesh/internal/port"
)

const defaultMemoryEntries = 4096

// ExtractionCache keeps recently used file records in memory in front of an
// optional persistent backend.
type ExtractionCache struct {
	mem     *lru.Cache[string, port.FileRecords]
	backend port.ExtractionCache

	hits   atomic.Int64
	misses atomic.Int64
}

var _ port.ExtractionCache = (*ExtractionCache)(nil)

// NewExtractionCache returns a cache holding up to size records in memory.
// backend may be nil.
func NewExtractionCache(size int, backend port.ExtractionCache) (*ExtractionCache, error) {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	mem, err := lru.New[string, port.FileRecords](size)
	if err != nil {
		return nil, err
	}
	return &ExtractionCache{mem: mem, backend: backend}, nil
}

func cacheKey(repoID, relFile string) string {
	return repoID + "\x00" + relFile
}

func (c *ExtractionCache) Get(repoID, relFile, hash string) (port.FileRecords, bool) {
	key := cacheKey(repoID, relFile)
	if rec, ok := c.mem.Get(key); ok && rec.Hash == hash {
		c.hits.Add(1)
		return rec, true
	}
	if c.backend != nil {
		if rec, ok := c.backend.Get(repoID, relFile, hash); ok {
			c.mem.Add(key, rec)
			c.hits.Add(1)
			return rec, true
		}
	}
	c.misses.Add(1)
	return port.FileRecords{}, false
}

// PutBatch keeps the records in memory and writes them through to the
// backend in one call.
func (c *ExtractionCache) PutBatch(repoID string, recs map[string]port.FileRecords) error {
	for relFile, rec := range recs {
		c.mem.Add(cacheKey(repoID, relFile), rec)
	}
	if c.backend != nil && len(recs) > 0 {
		return c.backend.PutBatch(repoID, recs)
	}
	return nil
}

func (c *ExtractionCache) DeleteRepo(repoID string) error {
	prefix := cacheKey(repoID, "")
	for _, k := range c.mem.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.mem.Remove(k)
		}
	}
	if c.backend != nil {
		return c.backend.DeleteRepo(repoID)
	}
	return nil
}

// Size returns the number of records held in memory.
func (c *ExtractionCache) Size() int {
	return c.mem.Len()
}

// Stats returns the hit and miss counts since creation.
func (c *ExtractionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ExtractionCache) Close() error {
	c.mem.Purge()
	if c.backend != nil {
		return c.backend.Close()
	}
	return nil
}
