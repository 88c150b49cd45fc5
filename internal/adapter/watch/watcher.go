// Package watch reports repositories whose head commit moved, using
// filesystem notifications on their git directories.
package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"repomesh/internal/adapter/git"
)

const DefaultDebounce = 500 * time.Millisecond

// Target is a repository to watch.
type Target struct {
	RepoID string
	Path   string
}

// Watcher emits batches of repository ids whose head commit changed.
type Watcher struct {
	Changes <-chan []string

	changes  chan []string
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	watcher  *fsnotify.Watcher
	debounce time.Duration

	dirs  map[string][]string // watched dir -> repo ids
	paths map[string]string   // repo id -> working copy
	heads map[string]string   // repo id -> last seen head
}

// NewWatcher records the current head of every target. Targets that are not
// git repositories are skipped.
func NewWatcher(targets []Target, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ch := make(chan []string, 4)
	w := &Watcher{
		Changes:  ch,
		changes:  ch,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
		debounce: debounce,
		dirs:     make(map[string][]string),
		paths:    make(map[string]string),
		heads:    make(map[string]string),
	}
	for _, t := range targets {
		dirs, err := git.RefDirs(t.Path)
		if err != nil {
			slog.Warn("watch.skip", "repo", t.RepoID, "error", err)
			continue
		}
		head, _ := git.HeadCommit(t.Path)
		w.paths[t.RepoID] = t.Path
		w.heads[t.RepoID] = head
		for _, d := range dirs {
			w.dirs[d] = append(w.dirs[d], t.RepoID)
		}
	}
	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	for dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		w.watcher.Close()
		<-w.done
		close(w.changes)
	})
}

// Watching returns the number of repositories being watched.
func (w *Watcher) Watching() int {
	return len(w.paths)
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if strings.HasSuffix(event.Name, ".lock") {
				continue
			}
			for _, id := range w.dirs[filepath.Dir(event.Name)] {
				pending[id] = time.Now()
			}
			if event.Has(fsnotify.Create) {
				w.follow(event.Name)
			}

		case <-ticker.C:
			now := time.Now()
			var moved []string
			for id, t := range pending {
				if now.Sub(t) < w.debounce {
					continue
				}
				delete(pending, id)
				if w.headMoved(id) {
					moved = append(moved, id)
				}
			}
			if len(moved) == 0 {
				continue
			}
			sort.Strings(moved)
			select {
			case w.changes <- moved:
			case <-w.stop:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Debug("watch.error", "error", err)
		}
	}
}

// follow starts watching a directory created under a watched refs directory,
// such as refs/heads/feature when the first feature/* branch is created.
func (w *Watcher) follow(name string) {
	ids := w.dirs[filepath.Dir(name)]
	if len(ids) == 0 || !strings.Contains(filepath.ToSlash(name), "/refs/heads/") {
		return
	}
	if _, watched := w.dirs[name]; watched {
		return
	}
	if info, err := os.Stat(name); err != nil || !info.IsDir() {
		return
	}
	if err := w.watcher.Add(name); err != nil {
		return
	}
	w.dirs[name] = ids
}

func (w *Watcher) headMoved(id string) bool {
	head, err := git.HeadCommit(w.paths[id])
	if err != nil || head == w.heads[id] {
		return false
	}
	slog.Debug("watch.head", "repo", id, "old", w.heads[id], "new", head)
	w.heads[id] = head
	return true
}
