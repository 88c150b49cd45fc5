package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repomesh/config"
	"repomesh/internal/adapter/cache"
	"repomesh/internal/adapter/memstore"
	"repomesh/internal/adapter/store"
	"repomesh/internal/domain"
)

const (
	commit1 = "1111111111111111111111111111111111111111"
	commit2 = "2222222222222222222222222222222222222222"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// fakeRepo lays out a working copy with a loose-ref .git directory.
func fakeRepo(t *testing.T, dir, commit string, files map[string]string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, filepath.Join(dir, ".git", "refs", "heads", "main"), commit+"\n")
	for rel, content := range files {
		writeFile(t, filepath.Join(dir, filepath.FromSlash(rel)), content)
	}
}

func setHead(t *testing.T, dir, commit string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, ".git", "refs", "heads", "main"), commit+"\n")
}

type workspace struct {
	root string
	cfg  *config.Config
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	root := t.TempDir()

	fakeRepo(t, filepath.Join(root, "repoA"), commit1, map[string]string{
		"src/client.js": "const axios = require('axios')\n\nasync function load(id) {\n  return axios.get('http://repoB:3002/orders/42')\n}\n",
	})
	fakeRepo(t, filepath.Join(root, "repoB"), commit1, map[string]string{
		"server.js": "const app = require('express')()\n\napp.get('/orders/:id', (req, res) => res.json({}))\n",
	})

	cfg := config.DefaultConfig()
	cfg.Repos = []config.RepoConfig{
		{Name: "repoA", Path: "repoA"},
		{Name: "repoB", Path: "repoB"},
	}
	cfg.Cache.Enabled = false
	cfg.Resolve(root)
	return &workspace{root: root, cfg: cfg}
}

func (w *workspace) scan(t *testing.T, store *memstore.MemoryStore, opts ScanOptions) *ScanResult {
	t.Helper()
	res, err := NewScanUseCase(w.cfg, store, nil).Scan(context.Background(), opts)
	require.NoError(t, err)
	return res
}

func TestScanResolvesCrossRepoEdge(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	store := memstore.NewMemoryStore()

	res := w.scan(t, store, ScanOptions{})

	assert.Equal(t, 2, res.Summary.ReposDiscovered)
	assert.Equal(t, 2, res.Summary.ReposScanned)
	assert.Equal(t, []string{"repoA", "repoB"}, res.Summary.ChangedRepos)
	assert.Equal(t, 1, res.Summary.EndpointsFound)
	assert.Equal(t, 1, res.Summary.UsagesFound)

	require.Len(t, res.Index.Edges, 1)
	edge := res.Index.Edges[0]
	assert.Equal(t, "repoA", edge.FromRepoID)
	assert.Equal(t, "repoB", edge.ToRepoID)
	assert.Equal(t, "GET /orders/:id", edge.Label)
	assert.Equal(t, 1, edge.Count)

	assert.Equal(t, commit1, res.Index.Repos["repoA"].HeadCommit)
	assert.Equal(t, "main", res.Index.Repos["repoA"].Branch)
	assert.Equal(t, []string{"javascript"}, res.Index.Repos["repoB"].DetectedLanguages)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, res.Index.Edges, saved.Edges)
}

func TestScanIsDeterministic(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	first := w.scan(t, memstore.NewMemoryStore(), ScanOptions{})
	second := w.scan(t, memstore.NewMemoryStore(), ScanOptions{})

	assert.Equal(t, first.Index.Endpoints, second.Index.Endpoints)
	assert.Equal(t, first.Index.Usages, second.Index.Usages)
	assert.Equal(t, first.Index.Edges, second.Index.Edges)
}

func TestIncrementalScanMatchesFullScan(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	store := memstore.NewMemoryStore()
	w.scan(t, store, ScanOptions{})

	writeFile(t, filepath.Join(w.root, "repoB", "server.js"),
		"const app = require('express')()\n\napp.get('/orders/:id', h)\napp.post('/orders', h)\n")
	setHead(t, filepath.Join(w.root, "repoB"), commit2)

	inc := w.scan(t, store, ScanOptions{Incremental: true})
	assert.Equal(t, 1, inc.Summary.ReposScanned)
	assert.Equal(t, []string{"repoB"}, inc.Summary.ChangedRepos)

	full := w.scan(t, memstore.NewMemoryStore(), ScanOptions{})
	assert.Equal(t, full.Index.Endpoints, inc.Index.Endpoints)
	assert.Equal(t, full.Index.Usages, inc.Index.Usages)
	assert.Equal(t, full.Index.Edges, inc.Index.Edges)
}

func TestIncrementalScanWithoutChanges(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	store := memstore.NewMemoryStore()
	first := w.scan(t, store, ScanOptions{})

	res := w.scan(t, store, ScanOptions{Incremental: true})
	assert.False(t, res.Changes.HasChanges)
	assert.Equal(t, 0, res.Summary.ReposScanned)
	assert.Empty(t, res.Summary.ChangedRepos)
	assert.Equal(t, first.Index.Edges, res.Index.Edges)
	assert.Equal(t, 2, store.Saves(), "the refreshed timestamp is persisted")
}

func TestScanDropsDeletedRepository(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	store := memstore.NewMemoryStore()
	w.scan(t, store, ScanOptions{})

	require.NoError(t, os.RemoveAll(filepath.Join(w.root, "repoB")))

	res := w.scan(t, store, ScanOptions{Incremental: true})
	assert.Equal(t, []string{"repoB"}, res.Changes.DeletedRepos)
	assert.NotContains(t, res.Index.Repos, "repoB")
	assert.Empty(t, res.Index.Edges)
	assert.NotEmpty(t, res.Summary.Warnings, "the missing explicit path is reported")
}

func TestScanIgnoresCorruptPreviousIndex(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	dir := filepath.Dir(w.cfg.IndexPath)
	writeFile(t, w.cfg.IndexPath, `{"version": 1, "repos": `)

	res, err := NewScanUseCase(w.cfg, store.NewJSONIndexStore(w.cfg.IndexPath), nil).Scan(context.Background(), ScanOptions{Incremental: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.ReposScanned)
	assert.Len(t, res.Index.Edges, 1)
	assert.NotEmpty(t, res.Summary.Warnings)

	_, err = os.Stat(filepath.Join(dir, "index.json"))
	assert.NoError(t, err)
}

func TestScanUsesExtractionCache(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	ec, err := cache.NewExtractionCache(64, memstore.NewMemoryStore())
	require.NoError(t, err)

	uc := NewScanUseCase(w.cfg, memstore.NewMemoryStore(), ec)
	first, err := uc.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)
	_, missesBefore := ec.Stats()

	second, err := uc.Scan(context.Background(), ScanOptions{})
	require.NoError(t, err)
	hits, misses := ec.Stats()

	assert.Equal(t, missesBefore, misses, "unchanged files are served from the cache")
	assert.Positive(t, hits)
	assert.Equal(t, first.Index.Endpoints, second.Index.Endpoints)
	assert.Equal(t, first.Index.Edges, second.Index.Edges)
}

func TestScanCancelledLeavesIndexUntouched(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	store := memstore.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewScanUseCase(w.cfg, store, nil).Scan(ctx, ScanOptions{})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Equal(t, 0, store.Saves())
}

func TestScanReportsProgress(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	var seen []string
	done := make(chan struct{}, 2)
	w.cfg.Scan.Workers = 1
	w.scan(t, memstore.NewMemoryStore(), ScanOptions{
		Progress: func(n, total int, repoID string) {
			assert.Equal(t, 2, total)
			seen = append(seen, repoID)
			done <- struct{}{}
		},
	})
	assert.Len(t, done, 2)
	assert.ElementsMatch(t, []string{"repoA", "repoB"}, seen)
}

func TestEnhanceWithoutEnhancerWarns(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	res := w.scan(t, memstore.NewMemoryStore(), ScanOptions{Enhance: true})
	assert.Contains(t, res.Summary.Warnings, "relationship enhancement requested but no enhancer is configured")
	assert.Len(t, res.Index.Edges, 1)
}

func TestChangesReportsMovedHead(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	store := memstore.NewMemoryStore()
	w.scan(t, store, ScanOptions{})

	setHead(t, filepath.Join(w.root, "repoA"), commit2)

	changes, _ := NewScanUseCase(w.cfg, store, nil).Changes()
	assert.True(t, changes.HasChanges)
	assert.Equal(t, []string{"repoA"}, changes.ChangedRepos)
	require.Len(t, changes.ChangeDetails, 1)
	assert.Equal(t, domain.RepoChangeDetail{
		RepoID:     "repoA",
		ChangeType: domain.ChangeModified,
		OldCommit:  commit1,
		NewCommit:  commit2,
	}, changes.ChangeDetails[0])
}

func TestIncrementalScanNoticesEnvFileEdits(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	writeFile(t, filepath.Join(w.root, "repoA", "src", "client.js"),
		"export const load = (id) => fetch(`${ORDERS_URL}/orders/42`)\n")
	envFile := filepath.Join(w.root, ".env")
	writeFile(t, envFile, "ORDERS_URL=http://orders:3002\n")
	w.cfg.EnvFiles = []string{envFile}
	w.cfg.URLBases = []config.URLBaseConfig{{Repo: "repoB", BaseURL: "http://orders:3002"}}
	store := memstore.NewMemoryStore()

	first := w.scan(t, store, ScanOptions{})
	require.Len(t, first.Index.Edges, 1)
	assert.Equal(t, "repoB", first.Index.Edges[0].ToRepoID)

	writeFile(t, envFile, "ORDERS_URL=http://billing:4000\n")

	res := w.scan(t, store, ScanOptions{Incremental: true})
	assert.True(t, res.Changes.HasChanges, "a changed env value invalidates the previous index")
	assert.Equal(t, 2, res.Summary.ReposScanned)
	assert.Empty(t, res.Index.Edges)
	assert.NotEqual(t, first.Index.ConfigHash, res.Index.ConfigHash)
}

func TestIndexHash(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)
	uc := NewScanUseCase(w.cfg, memstore.NewMemoryStore(), nil)

	assert.Equal(t, w.cfg.Hash(), uc.IndexHash(nil))

	a := uc.IndexHash(map[string]string{"A": "1", "B": "2"})
	assert.Equal(t, a, uc.IndexHash(map[string]string{"B": "2", "A": "1"}))
	assert.NotEqual(t, a, uc.IndexHash(map[string]string{"A": "1", "B": "3"}))
	assert.NotEqual(t, w.cfg.Hash(), a)
}

func TestSnapshotRecordsHowReposWereFound(t *testing.T) {
	t.Parallel()
	w := newWorkspace(t)

	snap := NewScanUseCase(w.cfg, nil, nil).Snapshot()
	require.Equal(t, []string{"repoA", "repoB"}, snap.Order)
	assert.True(t, snap.Targets["repoA"].Explicit)
	assert.Equal(t, filepath.Join(w.root, "repoB"), snap.Targets["repoB"].Path)
}
