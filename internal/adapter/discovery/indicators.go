// Package discovery decides which directories are repositories worth
// scanning: explicitly configured ones, git checkouts under roots, and
// heuristically detected projects.
package discovery

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"repomesh/internal/domain"
)

// indicator is one weighted piece of evidence that a directory holds a
// project. Files and Exts are checked against regular files, Dirs against
// directories (relative, may contain a slash).
type indicator struct {
	Type   string
	Files  []string
	Exts   []string
	Dirs   []string
	Weight float64
}

var indicators = []indicator{
	{Type: "nodejs", Files: []string{"package.json"}, Weight: 10},
	{Type: "nodejs", Files: []string{"yarn.lock"}, Weight: 8},
	{Type: "nodejs", Files: []string{"pnpm-lock.yaml"}, Weight: 8},
	{Type: "nodejs", Files: []string{"package-lock.json"}, Weight: 8},
	{Type: "nodejs", Dirs: []string{"node_modules"}, Weight: 6},

	{Type: "python", Files: []string{"pyproject.toml"}, Weight: 10},
	{Type: "python", Files: []string{"requirements.txt"}, Weight: 9},
	{Type: "python", Files: []string{"setup.py"}, Weight: 9},
	{Type: "python", Files: []string{"Pipfile"}, Weight: 8},
	{Type: "python", Files: []string{"poetry.lock"}, Weight: 8},
	{Type: "python", Files: []string{"conda.yaml", "environment.yml"}, Weight: 7},
	{Type: "python", Dirs: []string{"venv", ".venv", "__pycache__"}, Weight: 5},

	{Type: "go", Files: []string{"go.mod"}, Weight: 10},
	{Type: "go", Files: []string{"go.sum"}, Weight: 8},
	{Type: "go", Files: []string{"Gopkg.toml"}, Weight: 7},

	{Type: "java", Files: []string{"pom.xml"}, Weight: 10},
	{Type: "java", Files: []string{"build.gradle", "build.gradle.kts"}, Weight: 10},
	{Type: "java", Files: []string{"settings.gradle", "settings.gradle.kts"}, Weight: 8},
	{Type: "java", Files: []string{"gradlew"}, Weight: 7},
	{Type: "java", Dirs: []string{"src/main/java"}, Weight: 8},

	{Type: "csharp", Exts: []string{".csproj", ".sln"}, Weight: 10},
	{Type: "csharp", Files: []string{"packages.config"}, Weight: 7},
	{Type: "csharp", Dirs: []string{"bin", "obj"}, Weight: 5},

	{Type: "rust", Files: []string{"Cargo.toml"}, Weight: 10},
	{Type: "rust", Files: []string{"Cargo.lock"}, Weight: 8},
	{Type: "rust", Dirs: []string{"target"}, Weight: 6},

	{Type: "php", Files: []string{"composer.json"}, Weight: 10},
	{Type: "php", Files: []string{"composer.lock"}, Weight: 8},
	{Type: "php", Dirs: []string{"vendor"}, Weight: 6},

	{Type: "ruby", Files: []string{"Gemfile"}, Weight: 10},
	{Type: "ruby", Files: []string{"Gemfile.lock"}, Weight: 8},
	{Type: "ruby", Files: []string{".ruby-version"}, Weight: 6},

	{Type: "docker", Files: []string{"Dockerfile", "docker-compose.yml", "docker-compose.yaml"}, Weight: 8},
	{Type: "docker", Files: []string{".dockerignore"}, Weight: 5},

	{Type: "web", Files: []string{"index.html", "package.json"}, Weight: 6},
	{Type: "web", Dirs: []string{"public", "static", "assets"}, Weight: 4},

	{Type: "build", Files: []string{"Makefile", "CMakeLists.txt", "meson.build"}, Weight: 7},
	{Type: "build", Dirs: []string{".github/workflows"}, Weight: 6},

	{Type: "git", Dirs: []string{".git"}, Weight: 5},
}

const (
	readmeWeight  = 2
	licenseWeight = 1

	// fullScore is the raw weight that maps to 100% confidence.
	fullScore = 20
)

// Analyze scores dir as a project candidate. ok is false when dir cannot be
// read or carries no evidence at all.
func Analyze(dir string) (info domain.ProjectInfo, ok bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return info, false
	}

	files := make(map[string]struct{})
	exts := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, e := range entries {
		switch {
		case e.IsDir(), e.Name() == ".git":
			// Worktree checkouts carry a .git file instead of a directory.
			dirs[e.Name()] = struct{}{}
		case e.Type().IsRegular():
			files[e.Name()] = struct{}{}
			if ext := filepath.Ext(e.Name()); ext != "" {
				exts[strings.ToLower(ext)] = struct{}{}
			}
		}
	}

	hasDir := func(rel string) bool {
		if !strings.Contains(rel, "/") {
			_, ok := dirs[rel]
			return ok
		}
		st, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
		return err == nil && st.IsDir()
	}

	var total float64
	types := make(map[string]struct{})
	for _, ind := range indicators {
		hit := ""
		for _, f := range ind.Files {
			if _, ok := files[f]; ok {
				hit = f
				break
			}
		}
		if hit == "" {
			for _, x := range ind.Exts {
				if _, ok := exts[x]; ok {
					hit = "*" + x
					break
				}
			}
		}
		if hit == "" {
			for _, d := range ind.Dirs {
				if hasDir(d) {
					hit = d + "/"
					break
				}
			}
		}
		if hit == "" {
			continue
		}
		types[ind.Type] = struct{}{}
		info.Indicators = append(info.Indicators, ind.Type+":"+hit)
		total += ind.Weight
	}

	if hasAny(files, "README.md", "README.rst", "README.txt", "README") {
		total += readmeWeight
		info.Indicators = append(info.Indicators, "docs:README")
	}
	if hasAny(files, "LICENSE", "LICENSE.txt", "LICENSE.md", "MIT-LICENSE") {
		total += licenseWeight
		info.Indicators = append(info.Indicators, "legal:LICENSE")
	}

	if len(types) == 0 && total == 0 {
		return info, false
	}

	info.Path = dir
	info.Name = filepath.Base(dir)
	info.Confidence = math.Min(100, total/fullScore*100)
	_, info.IsGitRepo = dirs[".git"]
	for t := range types {
		info.Types = append(info.Types, t)
	}
	sort.Strings(info.Types)
	return info, true
}

func hasAny(set map[string]struct{}, names ...string) bool {
	for _, n := range names {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}
