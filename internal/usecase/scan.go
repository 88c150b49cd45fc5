package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"repomesh/config"
	"repomesh/internal/adapter/discovery"
	"repomesh/internal/adapter/extractor"
	"repomesh/internal/adapter/fs"
	"repomesh/internal/adapter/git"
	"repomesh/internal/adapter/resolver"
	"repomesh/internal/domain"
	"repomesh/internal/port"
)

// ScanOptions controls one scan.
type ScanOptions struct {
	// Incremental re-walks only new and modified repositories and carries
	// the others over from the previous index.
	Incremental bool

	// Enhance requests the optional relationship enhancement pass.
	Enhance bool

	// Progress, when set, is called after each repository finishes. Calls
	// may come from several goroutines.
	Progress func(done, total int, repoID string)
}

// ScanResult is the outcome of a completed scan.
type ScanResult struct {
	Index   *domain.Index
	Summary domain.ScanSummary
	Changes domain.ChangeDetectionResult
}

// Snapshot is the set of repositories found by discovery, with their
// version-control facts.
type Snapshot struct {
	Repos    map[string]domain.Repository
	Targets  map[string]domain.RepoTarget // how each repository was found
	Order    []string                     // repository ids in discovery order
	Projects []domain.ProjectInfo
	Warnings []string
}

// ScanUseCase discovers repositories, extracts endpoints and usages, resolves
// cross-repository edges and persists the index.
type ScanUseCase struct {
	cfg        *config.Config
	discoverer *discovery.Discoverer
	walker     port.FileWalker
	extractor  *extractor.Extractor
	store      port.IndexStore
	cache      port.ExtractionCache
	now        func() time.Time
}

// NewScanUseCase creates a scan use case. cache may be nil.
func NewScanUseCase(cfg *config.Config, store port.IndexStore, cache port.ExtractionCache) *ScanUseCase {
	features := make([]extractor.FeatureRule, 0, len(cfg.FeatureGlobs))
	for _, fg := range cfg.FeatureGlobs {
		features = append(features, extractor.FeatureRule{Name: fg.Name, Include: fg.Include, Exclude: fg.Exclude})
	}
	return &ScanUseCase{
		cfg:        cfg,
		discoverer: discovery.NewDiscoverer(cfg),
		walker: fs.NewWalker(fs.WalkOptions{
			Excludes:         cfg.ExcludeGlobs,
			Extensions:       cfg.IncludeFileExtensions,
			MaxFiles:         cfg.Scan.MaxFiles,
			MaxFileSize:      cfg.Scan.MaxFileSize,
			RespectGitignore: cfg.Scan.RespectGitignore,
		}),
		extractor: extractor.New(features),
		store:     store,
		cache:     cache,
		now:       time.Now,
	}
}

// Snapshot runs discovery and reads each repository's head, branch and
// remote. Repository ids are assigned in discovery order.
func (u *ScanUseCase) Snapshot() Snapshot {
	disc := u.discoverer.Discover()
	snap := Snapshot{
		Repos:    make(map[string]domain.Repository, len(disc.Targets)),
		Targets:  make(map[string]domain.RepoTarget, len(disc.Targets)),
		Projects: disc.Projects,
		Warnings: disc.Warnings,
	}

	ids := discovery.NewIDAllocator()
	for _, t := range disc.Targets {
		repo := domain.Repository{
			ID:        ids.Assign(t.Name, t.Path),
			Name:      t.Name,
			Path:      t.Path,
			RemoteURL: t.RemoteURL,
			Branch:    t.Branch,
		}
		if git.IsRepo(t.Path) {
			head, err := git.HeadCommit(t.Path)
			if err != nil {
				snap.Warnings = append(snap.Warnings, fmt.Sprintf("repo %s: %v", repo.ID, err))
			}
			repo.HeadCommit = head
			if repo.Branch == "" {
				repo.Branch, _ = git.Branch(t.Path)
			}
			if repo.RemoteURL == "" {
				repo.RemoteURL, _ = git.RemoteURL(t.Path)
			}
		}
		snap.Repos[repo.ID] = repo
		snap.Targets[repo.ID] = t
		snap.Order = append(snap.Order, repo.ID)
	}
	return snap
}

// IndexHash returns the configuration hash recorded in the index. Values
// loaded from env files take part, so editing one invalidates the previous
// index like a configuration change does.
func (u *ScanUseCase) IndexHash(env map[string]string) string {
	if len(env) == 0 {
		return u.cfg.Hash()
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(u.cfg.Hash()))
	for _, k := range keys {
		fmt.Fprintf(h, "\n%s=%s", k, env[k])
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Previous loads the last persisted index. A corrupt index, or one built
// under a different configuration hash, is treated as absent; the corrupt
// case is also reported as a warning.
func (u *ScanUseCase) Previous(hash string) (*domain.Index, string) {
	prev, err := u.store.Load()
	if err != nil {
		slog.Warn("scan.previous_unusable", "error", err)
		return nil, fmt.Sprintf("previous index ignored: %v", err)
	}
	if prev != nil && prev.ConfigHash != hash {
		slog.Info("scan.config_changed", "old", prev.ConfigHash, "new", hash)
		return nil, ""
	}
	return prev, ""
}

// Changes compares the current repositories with the previous index.
func (u *ScanUseCase) Changes() (domain.ChangeDetectionResult, []string) {
	snap := u.Snapshot()
	env, envWarnings := resolver.LoadEnvFiles(u.cfg.EnvFiles)
	warnings := append(snap.Warnings, envWarnings...)
	prev, warn := u.Previous(u.IndexHash(env))
	if warn != "" {
		warnings = append(warnings, warn)
	}
	return DetectChanges(snap.Repos, prev), warnings
}

// repoResult is the per-repository bucket filled by one worker.
type repoResult struct {
	endpoints []domain.Endpoint
	usages    []domain.Usage
	languages []string
	files     int
	err       error
}

// Scan runs a scan and persists the resulting index. The previous index is
// only replaced once every repository has been processed; a cancelled scan
// returns the context error and leaves it untouched.
func (u *ScanUseCase) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	start := u.now()

	snap := u.Snapshot()
	warnings := append([]string(nil), snap.Warnings...)

	env, envWarnings := resolver.LoadEnvFiles(u.cfg.EnvFiles)
	warnings = append(warnings, envWarnings...)
	hash := u.IndexHash(env)

	prev, warn := u.Previous(hash)
	if warn != "" {
		warnings = append(warnings, warn)
	}
	changes := DetectChanges(snap.Repos, prev)

	if opts.Enhance {
		warnings = append(warnings, "relationship enhancement requested but no enhancer is configured")
	}

	if opts.Incremental && prev != nil && !changes.HasChanges {
		prev.UpdatedAt = u.now()
		if err := u.store.Save(prev); err != nil {
			return nil, fmt.Errorf("failed to save index: %w", err)
		}
		slog.Info("scan.unchanged", "repos", len(prev.Repos))
		return &ScanResult{
			Index:   prev,
			Changes: changes,
			Summary: domain.ScanSummary{
				ReposDiscovered: len(snap.Repos),
				EndpointsFound:  len(prev.Endpoints),
				UsagesFound:     len(prev.Usages),
				DurationMs:      u.now().Sub(start).Milliseconds(),
				ChangedRepos:    []string{},
				Warnings:        warnings,
			},
		}, nil
	}

	var targets []string
	for _, id := range snap.Order {
		if !opts.Incremental || prev == nil || NeedsRescan(changes, id) {
			targets = append(targets, id)
		}
	}

	slog.Info("scan.start", "repos", len(snap.Repos), "targets", len(targets), "incremental", opts.Incremental)

	results, err := u.scanRepos(ctx, snap.Repos, targets, opts.Progress)
	if err != nil {
		return nil, err
	}

	ix := domain.NewIndex(hash, u.now())
	if prev != nil {
		ix.CreatedAt = prev.CreatedAt
	}

	filesScanned := 0
	scanned := make(map[string]bool, len(targets))
	for i, id := range targets {
		res := results[i]
		repo := snap.Repos[id]
		if res.err != nil {
			warnings = append(warnings, fmt.Sprintf("repo %s: %v", id, res.err))
			slog.Warn("scan.repo_failed", "repo", id, "error", res.err)
			continue
		}
		scanned[id] = true
		filesScanned += res.files
		repo.DetectedLanguages = res.languages
		ix.Repos[id] = repo
		for _, ep := range res.endpoints {
			ix.Endpoints[ep.ID] = ep
		}
		for _, us := range res.usages {
			ix.Usages[us.ID] = us
		}
	}

	// Repositories not scanned this time keep their previous records.
	for id, repo := range snap.Repos {
		if scanned[id] {
			continue
		}
		if prev != nil {
			if old, ok := prev.Repos[id]; ok {
				repo.DetectedLanguages = old.DetectedLanguages
			}
			carryOver(ix, prev, id)
		}
		if repo.DetectedLanguages == nil {
			repo.DetectedLanguages = []string{}
		}
		ix.Repos[id] = repo
	}

	if u.cache != nil {
		for _, id := range changes.DeletedRepos {
			if err := u.cache.DeleteRepo(id); err != nil {
				slog.Warn("cache.delete_failed", "repo", id, "error", err)
			}
		}
	}

	ix.Edges = resolver.Resolve(valuesOf(ix.Endpoints), valuesOf(ix.Usages), resolver.Options{
		Bases:         urlBases(u.cfg.URLBases),
		Env:           env,
		PurposeLabels: u.cfg.Graph.PurposeLabels,
	})

	duration := u.now().Sub(start).Milliseconds()
	ix.ScanStats = domain.ScanStats{
		ReposScanned:   len(scanned),
		FilesScanned:   filesScanned,
		EndpointsFound: len(ix.Endpoints),
		UsagesFound:    len(ix.Usages),
		DurationMs:     duration,
	}

	if err := u.store.Save(ix); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	changed := append(append([]string{}, changes.NewRepos...), changes.ChangedRepos...)
	sort.Strings(changed)

	slog.Info("scan.done",
		"repos", len(ix.Repos),
		"scanned", len(scanned),
		"files", filesScanned,
		"endpoints", len(ix.Endpoints),
		"usages", len(ix.Usages),
		"edges", len(ix.Edges),
		"duration_ms", duration,
	)

	return &ScanResult{
		Index:   ix,
		Changes: changes,
		Summary: domain.ScanSummary{
			ReposDiscovered: len(snap.Repos),
			ReposScanned:    len(scanned),
			FilesScanned:    filesScanned,
			EndpointsFound:  len(ix.Endpoints),
			UsagesFound:     len(ix.Usages),
			DurationMs:      duration,
			ChangedRepos:    changed,
			Warnings:        warnings,
		},
	}, nil
}

// scanRepos processes targets in parallel. Each worker fills its own slot of
// the returned slice; per-repository failures are recorded in the slot.
func (u *ScanUseCase) scanRepos(ctx context.Context, repos map[string]domain.Repository, targets []string, progress func(done, total int, repoID string)) ([]repoResult, error) {
	results := make([]repoResult, len(targets))

	workers := u.cfg.Scan.Workers
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	done := 0
	for i, id := range targets {
		i, id := i, id
		repo := repos[id]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := u.scanRepo(ctx, repo)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				res.err = err
			}
			results[i] = res

			if progress != nil {
				mu.Lock()
				done++
				n := done
				mu.Unlock()
				progress(n, len(targets), id)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (u *ScanUseCase) scanRepo(ctx context.Context, repo domain.Repository) (repoResult, error) {
	files, err := u.walker.Walk(repo.Path)
	if err != nil {
		return repoResult{}, fmt.Errorf("failed to walk %s: %w", repo.Path, err)
	}

	skip := map[string]struct{}{}
	for _, p := range []string{u.cfg.IndexPath, u.cfg.Cache.Path} {
		if p != "" {
			if abs, err := filepath.Abs(p); err == nil {
				skip[abs] = struct{}{}
			}
		}
	}

	res := repoResult{}
	paths := make([]string, 0, len(files))
	fresh := make(map[string]port.FileRecords)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return repoResult{}, err
		}
		if _, ok := skip[f.Path]; ok {
			continue
		}
		content, err := fs.ReadFile(f.Path)
		if err != nil {
			slog.Debug("scan.unreadable", "file", f.Path, "error", err)
			continue
		}
		res.files++
		paths = append(paths, f.RelPath)

		rec, cached := u.extract(port.SourceFile{RepoID: repo.ID, Path: f.Path, RelFile: f.RelPath, Content: content})
		if !cached {
			fresh[f.RelPath] = rec
		}
		res.endpoints = append(res.endpoints, rec.Endpoints...)
		res.usages = append(res.usages, rec.Usages...)
	}
	res.languages = git.DetectLanguages(paths)

	if u.cache != nil && len(fresh) > 0 {
		if err := u.cache.PutBatch(repo.ID, fresh); err != nil {
			slog.Warn("cache.put_failed", "repo", repo.ID, "files", len(fresh), "error", err)
		}
	}

	slog.Debug("scan.repo", "repo", repo.ID, "files", res.files, "endpoints", len(res.endpoints), "usages", len(res.usages))
	return res, nil
}

// extract returns the records of one file, from the cache when its content
// is unchanged. cached reports a cache hit.
func (u *ScanUseCase) extract(f port.SourceFile) (rec port.FileRecords, cached bool) {
	sum := sha256.Sum256([]byte(f.Content))
	hash := hex.EncodeToString(sum[:])

	if u.cache != nil {
		if rec, ok := u.cache.Get(f.RepoID, f.RelFile, hash); ok {
			return rebase(rec, f.Path), true
		}
	}

	return port.FileRecords{
		Hash:      hash,
		Endpoints: u.extractor.ExtractEndpoints(f),
		Usages:    u.extractor.ExtractUsages(f),
	}, false
}

// rebase points cached records at the file's current absolute path, which
// changes when a repository is moved.
func rebase(rec port.FileRecords, path string) port.FileRecords {
	out := port.FileRecords{
		Hash:      rec.Hash,
		Endpoints: make([]domain.Endpoint, len(rec.Endpoints)),
		Usages:    make([]domain.Usage, len(rec.Usages)),
	}
	for i, ep := range rec.Endpoints {
		ep.File = path
		out.Endpoints[i] = ep
	}
	for i, us := range rec.Usages {
		us.File = path
		out.Usages[i] = us
	}
	return out
}

func carryOver(ix, prev *domain.Index, repoID string) {
	for _, ep := range prev.EndpointsForRepo(repoID) {
		ix.Endpoints[ep.ID] = ep
	}
	for _, us := range prev.UsagesForRepo(repoID) {
		ix.Usages[us.ID] = us
	}
}

func urlBases(cfg []config.URLBaseConfig) []resolver.URLBase {
	out := make([]resolver.URLBase, 0, len(cfg))
	for _, b := range cfg {
		out = append(out, resolver.URLBase{Name: b.Name, Repo: b.Repo, BaseURL: b.BaseURL})
	}
	return out
}

func valuesOf[T any](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
