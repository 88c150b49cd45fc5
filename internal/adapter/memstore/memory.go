// Package memstore holds an index and extraction records in process memory.
// It backs dry runs and tests.
package memstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"repomesh/internal/domain"
	"repomesh/internal/port"
)

type MemoryStore struct {
	mu    sync.RWMutex
	index []byte
	files map[string]port.FileRecords
	saves int
}

var (
	_ port.IndexStore      = (*MemoryStore)(nil)
	_ port.ExtractionCache = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]port.FileRecords),
	}
}

// Load returns a copy of the last saved index.
func (s *MemoryStore) Load() (*domain.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return nil, nil
	}
	var ix domain.Index
	if err := json.Unmarshal(s.index, &ix); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	return &ix, nil
}

func (s *MemoryStore) Save(ix *domain.Index) error {
	data, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = data
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func fileKey(repoID, relFile string) string {
	return repoID + "\x00" + relFile
}

func (s *MemoryStore) Get(repoID, relFile, hash string) (port.FileRecords, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[fileKey(repoID, relFile)]
	if !ok || rec.Hash != hash {
		return port.FileRecords{}, false
	}
	return rec, true
}

func (s *MemoryStore) PutBatch(repoID string, recs map[string]port.FileRecords) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for relFile, rec := range recs {
		s.files[fileKey(repoID, relFile)] = rec
	}
	return nil
}

func (s *MemoryStore) DeleteRepo(repoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := fileKey(repoID, "")
	for k := range s.files {
		if strings.HasPrefix(k, prefix) {
			delete(s.files, k)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
