package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	commitA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	commitB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func fakeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "refs", "heads"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "refs", "heads", "main"), []byte(commitA+"\n"), 0644))
	return dir
}

func TestWatcherReportsMovedHead(t *testing.T) {
	repo := fakeRepo(t)
	quiet := fakeRepo(t)

	w, err := NewWatcher([]Target{
		{RepoID: "svc", Path: repo},
		{RepoID: "quiet", Path: quiet},
		{RepoID: "plain", Path: t.TempDir()},
	}, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, w.Watching())
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(repo, ".git", "refs", "heads", "main"), []byte(commitB+"\n"), 0644))

	select {
	case ids := <-w.Changes:
		assert.Equal(t, []string{"svc"}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherIgnoresTouchWithoutMove(t *testing.T) {
	repo := fakeRepo(t)

	w, err := NewWatcher([]Target{{RepoID: "svc", Path: repo}}, 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(filepath.Join(repo, ".git", "refs", "heads", "main"), []byte(commitA+"\n"), 0644))

	select {
	case ids := <-w.Changes:
		t.Fatalf("unexpected change %v", ids)
	case <-time.After(300 * time.Millisecond):
	}

	w.Stop()
	_, open := <-w.Changes
	assert.False(t, open)
}
