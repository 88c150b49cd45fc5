package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"repomesh/internal/port"
)

// defaultSkipDirs are pruned regardless of caller patterns.
var defaultSkipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".repomesh":    {},
	"node_modules": {},
	"dist":         {},
	"build":        {},
	".venv":        {},
	".idea":        {},
	".vscode":      {},
	".next":        {},
	".turbo":       {},
	"target":       {},
	"bin":          {},
	"obj":          {},
	"__pycache__":  {},
}

var binaryExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".svg": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {}, ".tgz": {}, ".jar": {}, ".war": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".mp3": {}, ".mp4": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".class": {}, ".pyc": {}, ".o": {},
}

// WalkOptions configures a Walker.
type WalkOptions struct {
	Excludes         []string // doublestar globs matched against repo-relative paths
	Extensions       []string // allow-list; empty means every non-binary file
	MaxFiles         int
	MaxFileSize      int64
	RespectGitignore bool
}

type Walker struct {
	excludes    []string
	extensions  map[string]struct{}
	maxFiles    int
	maxFileSize int64
	gitignore   bool
}

func NewWalker(opts WalkOptions) *Walker {
	var exts map[string]struct{}
	if len(opts.Extensions) > 0 {
		exts = make(map[string]struct{}, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			exts[ext] = struct{}{}
		}
	}
	return &Walker{
		excludes:    opts.Excludes,
		extensions:  exts,
		maxFiles:    opts.MaxFiles,
		maxFileSize: opts.MaxFileSize,
		gitignore:   opts.RespectGitignore,
	}
}

var _ port.FileWalker = (*Walker)(nil)

// Walk returns the candidate files under root in depth-first lexical order.
// Unreadable entries are skipped.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var gi *ignore.GitIgnore
	if w.gitignore {
		gi = loadGitignore(root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := defaultSkipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if w.shouldExclude(relPath) || w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if w.shouldExclude(relPath) {
			return nil
		}
		if gi != nil && gi.MatchesPath(relPath) {
			return nil
		}
		if !w.shouldInclude(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
			return nil
		}

		files = append(files, port.FileInfo{
			Path:    path,
			RelPath: relPath,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})
		if w.maxFiles > 0 && len(files) >= w.maxFiles {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return files, err
	}

	return files, nil
}

func (w *Walker) shouldInclude(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if _, bin := binaryExts[ext]; bin {
		return false
	}
	if w.extensions == nil {
		return true
	}
	_, ok := w.extensions[ext]
	return ok
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
