package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"repomesh/internal/domain"
	"repomesh/internal/port"
)

// ErrCorruptIndex is returned by Load when the index file exists but cannot
// be decoded or carries an unknown format version.
var ErrCorruptIndex = errors.New("corrupt index")

// JSONIndexStore keeps the index as one pretty-printed JSON document.
type JSONIndexStore struct {
	path string
}

var _ port.IndexStore = (*JSONIndexStore)(nil)

func NewJSONIndexStore(path string) *JSONIndexStore {
	return &JSONIndexStore{path: path}
}

func (s *JSONIndexStore) Path() string {
	return s.path
}

func (s *JSONIndexStore) Load() (*domain.Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read index %s: %w", s.path, err)
	}

	var ix domain.Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, s.path, err)
	}
	if ix.Version != domain.IndexVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorruptIndex, s.path, ix.Version)
	}
	normalize(&ix)
	return &ix, nil
}

// Save writes the index to a temporary file next to the target and renames
// it into place, so readers never observe a partial index.
func (s *JSONIndexStore) Save(ix *domain.Index) error {
	data, err := json.MarshalIndent(ix, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace index: %w", err)
	}
	return nil
}

// normalize gives a decoded index the same empty collections NewIndex does.
func normalize(ix *domain.Index) {
	if ix.Repos == nil {
		ix.Repos = make(map[string]domain.Repository)
	}
	if ix.Endpoints == nil {
		ix.Endpoints = make(map[string]domain.Endpoint)
	}
	if ix.Usages == nil {
		ix.Usages = make(map[string]domain.Usage)
	}
	if ix.Edges == nil {
		ix.Edges = []domain.CrossRepoEdge{}
	}
}
