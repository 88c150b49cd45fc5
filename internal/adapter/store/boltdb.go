package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"repomesh/internal/port"
)

var (
	bucketFiles = []byte("files")
	bucketStats = []byte("stats")
)

// BoltStore persists per-file extraction results so that a repository whose
// head moved only re-extracts the files whose content changed.
type BoltStore struct {
	db *bbolt.DB
}

var _ port.ExtractionCache = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketFiles, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// fileKey is repoID, a zero byte, then relFile; the separator keeps one
// repository's keys contiguous for prefix scans.
func fileKey(repoID, relFile string) []byte {
	k := make([]byte, 0, len(repoID)+1+len(relFile))
	k = append(k, repoID...)
	k = append(k, 0)
	return append(k, relFile...)
}

func repoPrefix(repoID string) []byte {
	return append([]byte(repoID), 0)
}

func (s *BoltStore) Get(repoID, relFile, hash string) (port.FileRecords, bool) {
	var rec port.FileRecords
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get(fileKey(repoID, relFile))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		found = rec.Hash == hash
		return nil
	})
	if err != nil || !found {
		return port.FileRecords{}, false
	}
	return rec, true
}

// PutBatch stores the records of many files of one repository in a single
// transaction.
func (s *BoltStore) PutBatch(repoID string, recs map[string]port.FileRecords) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		for relFile, rec := range recs {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put(fileKey(repoID, relFile), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteRepo drops every cached file of repoID.
func (s *BoltStore) DeleteRepo(repoID string) error {
	prefix := repoPrefix(repoID)
	return s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketFiles).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Seek(prefix) {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
