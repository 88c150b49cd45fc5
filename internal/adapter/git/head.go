// Package git reads repository facts straight from the .git directory so a
// scan never depends on a git binary being installed.
package git

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotRepository is returned when path has no .git entry.
var ErrNotRepository = errors.New("git: not a repository")

// IsRepo reports whether path holds a .git directory or a .git worktree file.
func IsRepo(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// GitDir returns the git directory for the working copy at path, following
// the "gitdir:" indirection used by worktrees and submodules.
func GitDir(path string) (string, error) {
	dotGit := filepath.Join(path, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotRepository
		}
		return "", err
	}
	if info.IsDir() {
		return dotGit, nil
	}

	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("git: malformed .git file in %s", path)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(path, target)
	}
	return filepath.Clean(target), nil
}

// commonDir returns the directory holding refs and config. Linked worktrees
// keep HEAD locally and share everything else through "commondir".
func commonDir(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	dir := strings.TrimSpace(string(data))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(gitDir, dir)
	}
	return filepath.Clean(dir)
}

func readHead(path string) (gitDir, head string, err error) {
	gitDir, err = GitDir(path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", "", fmt.Errorf("git: read HEAD: %w", err)
	}
	return gitDir, strings.TrimSpace(string(data)), nil
}

// HeadCommit returns the commit HEAD points at. Symbolic refs are followed
// through loose refs and packed-refs. An unborn branch yields "".
func HeadCommit(path string) (string, error) {
	gitDir, head, err := readHead(path)
	if err != nil {
		return "", err
	}

	ref, symbolic := strings.CutPrefix(head, "ref:")
	if !symbolic {
		if isHash(head) {
			return head, nil
		}
		return "", fmt.Errorf("git: unrecognised HEAD %q", head)
	}
	ref = strings.TrimSpace(ref)

	for _, dir := range uniqueDirs(gitDir, commonDir(gitDir)) {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref)))
		if err == nil {
			if sha := strings.TrimSpace(string(data)); isHash(sha) {
				return sha, nil
			}
		}
	}

	sha, err := packedRef(commonDir(gitDir), ref)
	if err != nil {
		return "", err
	}
	return sha, nil
}

// Branch returns the short branch name HEAD points at, or "" when detached.
func Branch(path string) (string, error) {
	_, head, err := readHead(path)
	if err != nil {
		return "", err
	}
	ref, ok := strings.CutPrefix(head, "ref:")
	if !ok {
		return "", nil
	}
	return strings.TrimPrefix(strings.TrimSpace(ref), "refs/heads/"), nil
}

func packedRef(dir, ref string) (string, error) {
	f, err := os.Open(filepath.Join(dir, "packed-refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		sha, name, ok := strings.Cut(line, " ")
		if ok && name == ref && isHash(sha) {
			return sha, nil
		}
	}
	return "", scanner.Err()
}

// RemoteURL returns the url of the "origin" remote, or "" when none is set.
func RemoteURL(path string) (string, error) {
	gitDir, err := GitDir(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(filepath.Join(commonDir(gitDir), "config"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	inOrigin := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "[") {
			inOrigin = line == `[remote "origin"]`
			continue
		}
		if !inOrigin {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if ok && strings.TrimSpace(key) == "url" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", scanner.Err()
}

func isHash(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func uniqueDirs(a, b string) []string {
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}

// RefDirs returns the directories whose entries change when the head of the
// working copy at path moves: the git directory, the common directory, and
// every directory under refs/heads.
func RefDirs(path string) ([]string, error) {
	gitDir, err := GitDir(path)
	if err != nil {
		return nil, err
	}
	dirs := uniqueDirs(gitDir, commonDir(gitDir))
	heads := filepath.Join(commonDir(gitDir), "refs", "heads")
	filepath.WalkDir(heads, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	return dirs, nil
}
