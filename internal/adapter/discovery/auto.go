package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"repomesh/internal/adapter/git"
	"repomesh/internal/domain"
)

// AutoOptions tunes AutoDiscover.
type AutoOptions struct {
	MaxDepth        int
	MinConfidence   float64
	HighConfidence  float64
	IncludeHidden   bool
	ExcludePatterns []string
}

// AutoDiscover scores every directory under root up to MaxDepth and returns
// the accepted candidates by descending confidence, then path. Directories
// scoring above HighConfidence are not descended into.
func AutoDiscover(root string, opts AutoOptions) []domain.ProjectInfo {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil
	}

	var projects []domain.ProjectInfo
	var search func(dir string, depth int)
	search = func(dir string, depth int) {
		if depth > opts.MaxDepth {
			return
		}
		if dir != root && excluded(root, dir, opts.ExcludePatterns) {
			return
		}

		if info, ok := Analyze(dir); ok && info.Confidence >= opts.MinConfidence {
			projects = append(projects, info)
			if info.Confidence > opts.HighConfidence {
				return
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if !opts.IncludeHidden && strings.HasPrefix(e.Name(), ".") {
				continue
			}
			search(filepath.Join(dir, e.Name()), depth+1)
		}
	}
	search(root, 0)

	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].Confidence != projects[j].Confidence {
			return projects[i].Confidence > projects[j].Confidence
		}
		return projects[i].Path < projects[j].Path
	})
	return projects
}

// FindGitRepos returns the sorted absolute paths of git working copies under
// roots, searching at most maxDepth levels and never descending into a
// working copy once found.
func FindGitRepos(roots []string, excludes []string, maxDepth int) []string {
	seen := make(map[string]struct{})
	var repos []string

	var search func(root, dir string, depth int)
	search = func(root, dir string, depth int) {
		if depth > maxDepth {
			return
		}
		if git.IsRepo(dir) {
			if _, ok := seen[dir]; !ok {
				seen[dir] = struct{}{}
				repos = append(repos, dir)
			}
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			child := filepath.Join(dir, e.Name())
			if _, skip := skipDirs[e.Name()]; skip || excluded(root, child, excludes) {
				continue
			}
			search(root, child, depth+1)
		}
	}

	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		search(abs, abs, 0)
	}

	sort.Strings(repos)
	return repos
}

// skipDirs are never searched for nested checkouts.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	".repomesh":    {},
	".venv":        {},
	"vendor":       {},
}

func excluded(root, dir string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, rel+"/"); ok {
			return true
		}
	}
	return false
}
