package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func relPaths(t *testing.T, w *Walker, root string) []string {
	t.Helper()
	files, err := w.Walk(root)
	require.NoError(t, err)
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
		assert.True(t, filepath.IsAbs(f.Path), "expected absolute path, got %s", f.Path)
	}
	return out
}

func TestWalkDefaultExcludes(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "src/app.ts", "x")
	writeFile(t, dir, "node_modules/lib/index.js", "x")
	writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main")
	writeFile(t, dir, "dist/bundle.js", "x")
	writeFile(t, dir, "logo.png", "x")

	got := relPaths(t, NewWalker(WalkOptions{}), dir)
	assert.Equal(t, []string{"src/app.ts"}, got)
}

func TestWalkCallerExcludesAndAllowList(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "api/server.py", "x")
	writeFile(t, dir, "api/server_test.py", "x")
	writeFile(t, dir, "generated/client.ts", "x")
	writeFile(t, dir, "docs/readme.md", "x")
	writeFile(t, dir, "web/App.TSX", "x")

	w := NewWalker(WalkOptions{
		Excludes:   []string{"**/*_test.py", "generated/**"},
		Extensions: []string{".py", "ts", ".tsx"},
	})
	got := relPaths(t, w, dir)
	assert.Equal(t, []string{"api/server.py", "web/App.TSX"}, got)
}

func TestWalkOrderedDepthFirst(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "b.js", "x")
	writeFile(t, dir, "a/z.js", "x")
	writeFile(t, dir, "a/b/c.js", "x")

	got := relPaths(t, NewWalker(WalkOptions{}), dir)
	assert.Equal(t, []string{"a/b/c.js", "a/z.js", "b.js"}, got)
}

func TestWalkMaxFilesAndSize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "a.js", "x")
	writeFile(t, dir, "b.js", "xxxxxxxxxxxxxxxxxxxx")
	writeFile(t, dir, "c.js", "x")
	writeFile(t, dir, "d.js", "x")

	got := relPaths(t, NewWalker(WalkOptions{MaxFileSize: 10}), dir)
	assert.Equal(t, []string{"a.js", "c.js", "d.js"}, got)

	got = relPaths(t, NewWalker(WalkOptions{MaxFiles: 2}), dir)
	assert.Len(t, got, 2)
}

func TestWalkGitignore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "secrets/\n*.gen.ts\n")
	writeFile(t, dir, "secrets/keys.ts", "x")
	writeFile(t, dir, "api.gen.ts", "x")
	writeFile(t, dir, "api.ts", "x")

	got := relPaths(t, NewWalker(WalkOptions{RespectGitignore: true, Extensions: []string{".ts"}}), dir)
	assert.Equal(t, []string{"api.ts"}, got)

	got = relPaths(t, NewWalker(WalkOptions{Extensions: []string{".ts"}}), dir)
	assert.Len(t, got, 3)
}

func TestWalkMissingRoot(t *testing.T) {
	t.Parallel()

	files, err := NewWalker(WalkOptions{}).Walk(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, err)
	assert.Empty(t, files)
}
