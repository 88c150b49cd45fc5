// Package extractor recognises HTTP route declarations and outbound HTTP
// calls in source text with ordered, per-framework pattern rules.
package extractor

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"

	"repomesh/internal/domain"
)

const maxSnippet = 200

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(content string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (li lineIndex) line(offset int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > offset })
}

// snippet returns the trimmed source line containing offset.
func snippet(content string, offset int) string {
	start := strings.LastIndexByte(content[:offset], '\n') + 1
	end := strings.IndexByte(content[offset:], '\n')
	if end < 0 {
		end = len(content)
	} else {
		end += offset
	}
	s := strings.TrimSpace(content[start:end])
	if len(s) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

func hashID(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func ensureLeadingSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// toMethod upper-cases m and reports whether it is a known HTTP method.
func toMethod(m string) (string, bool) {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "ANY" {
		m = domain.MethodAll
	}
	return m, domain.IsHTTPMethod(m)
}

// splitURL separates an absolute URL into its path and the URL itself.
// Relative paths yield an empty url. Query strings and fragments are dropped
// from the path.
func splitURL(s string) (endpointPath, absURL string) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "://"); i > 0 && isScheme(s[:i]) {
		rest := stripQuery(s[i+3:])
		path := "/"
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		}
		return path, s
	}
	return ensureLeadingSlash(stripQuery(s)), ""
}

func isScheme(s string) bool {
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}

// joinPath joins a route prefix with a route path.
func joinPath(prefix, p string) string {
	prefix = strings.Trim(prefix, "/")
	p = strings.Trim(p, "/")
	switch {
	case prefix == "" && p == "":
		return "/"
	case prefix == "":
		return "/" + p
	case p == "":
		return "/" + prefix
	}
	return "/" + prefix + "/" + p
}
