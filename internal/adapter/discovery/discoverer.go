package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"repomesh/config"
	"repomesh/internal/domain"
)

// rootSearchDepth bounds the .git search under configured roots.
const rootSearchDepth = 5

// Result is the outcome of one discovery pass.
type Result struct {
	Targets  []domain.RepoTarget
	Projects []domain.ProjectInfo // auto-discovery candidates, before the git filter
	Warnings []string
}

// Discoverer merges explicitly configured repositories with repositories
// found under roots or by auto-discovery.
type Discoverer struct {
	cfg *config.Config
}

func NewDiscoverer(cfg *config.Config) *Discoverer {
	return &Discoverer{cfg: cfg}
}

// Discover returns the scan targets. Explicit repositories come first and win
// over discovered ones with the same path; a missing explicit path is a
// warning, never an error.
func (d *Discoverer) Discover() Result {
	var res Result
	byPath := make(map[string]struct{})

	add := func(t domain.RepoTarget) {
		if _, dup := byPath[t.Path]; dup {
			return
		}
		byPath[t.Path] = struct{}{}
		res.Targets = append(res.Targets, t)
	}

	for _, r := range d.cfg.Repos {
		abs, err := filepath.Abs(r.Path)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("repo %q: %v", r.Name, err))
			continue
		}
		st, err := os.Stat(abs)
		if err != nil || !st.IsDir() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("repo %q: path %s does not exist", r.Name, abs))
			slog.Warn("discover.missing", "repo", r.Name, "path", abs)
			continue
		}
		name := r.Name
		if name == "" {
			name = nameFor(abs)
		}
		add(domain.RepoTarget{
			Name:      name,
			Path:      abs,
			RemoteURL: r.URL,
			Branch:    r.Branch,
			Explicit:  true,
		})
	}

	ad := d.cfg.AutoDiscovery
	if ad.Enabled {
		for _, root := range d.cfg.WorkspaceRoots() {
			projects := AutoDiscover(root, AutoOptions{
				MaxDepth:        ad.MaxDepth,
				MinConfidence:   ad.MinConfidence,
				HighConfidence:  ad.HighConfidence,
				IncludeHidden:   ad.IncludeHidden,
				ExcludePatterns: ad.ExcludePatterns,
			})
			res.Projects = append(res.Projects, projects...)
			for _, p := range projects {
				if !p.IsGitRepo {
					continue
				}
				add(domain.RepoTarget{
					Name:       nameFor(p.Path),
					Path:       p.Path,
					Confidence: p.Confidence,
				})
			}
		}
	} else if len(d.cfg.Roots) > 0 {
		for _, path := range FindGitRepos(d.cfg.Roots, d.cfg.ExcludeGlobs, rootSearchDepth) {
			add(domain.RepoTarget{Name: nameFor(path), Path: path})
		}
	}

	slog.Debug("discover.done", "targets", len(res.Targets), "candidates", len(res.Projects))
	return res
}

func nameFor(dir string) string {
	if name := ManifestName(dir); name != "" {
		return name
	}
	return filepath.Base(dir)
}

// IDAllocator hands out repository ids that are unique per path within one
// scan generation.
type IDAllocator struct {
	byID map[string]string // id -> path
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{byID: make(map[string]string)}
}

// Assign returns the id for the repository named name at path. A name
// already taken by another path gets a short path-hash suffix.
func (a *IDAllocator) Assign(name, path string) string {
	id := SanitizeID(name)
	if id == "" {
		id = SanitizeID(filepath.Base(path))
	}
	if owner, taken := a.byID[id]; !taken || owner == path {
		a.byID[id] = path
		return id
	}

	sum := sha256.Sum256([]byte(path))
	id = id + "-" + hex.EncodeToString(sum[:3])
	a.byID[id] = path
	return id
}
