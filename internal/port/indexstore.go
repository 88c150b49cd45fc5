package port

import "repomesh/internal/domain"

// IndexStore persists whole index snapshots. Load returns (nil, nil) when no
// index has been saved yet.
type IndexStore interface {
	Load() (*domain.Index, error)

	Save(ix *domain.Index) error
}

// FileRecords is the extraction result of one file, keyed by the hash of the
// content it was computed from.
type FileRecords struct {
	Hash      string            `json:"hash"`
	Endpoints []domain.Endpoint `json:"endpoints,omitempty"`
	Usages    []domain.Usage    `json:"usages,omitempty"`
}

// ExtractionCache remembers per-file extraction results across scans.
type ExtractionCache interface {
	// Get returns the records for the file when they were computed from
	// content with the given hash.
	Get(repoID, relFile, hash string) (FileRecords, bool)

	// PutBatch stores the records of several files of one repository,
	// keyed by repository-relative path.
	PutBatch(repoID string, recs map[string]FileRecords) error

	DeleteRepo(repoID string) error

	Close() error
}
