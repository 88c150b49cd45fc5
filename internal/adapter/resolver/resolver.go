// Package resolver matches outbound usages to declared endpoints across
// repositories and aggregates the matches into weighted edges.
package resolver

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"repomesh/internal/domain"
)

// URLBase maps an absolute URL prefix, or a placeholder name, to a provider.
type URLBase struct {
	Name    string
	Repo    string
	BaseURL string
}

type Options struct {
	Bases         []URLBase
	Env           map[string]string // placeholder values, usually from env files
	PurposeLabels bool
}

// LoadEnvFiles reads dotenv files in order; later files override earlier
// ones. Unreadable files are reported and skipped.
func LoadEnvFiles(paths []string) (map[string]string, []string) {
	env := make(map[string]string)
	var warnings []string
	for _, p := range paths {
		values, err := godotenv.Read(p)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("env file %s: %v", p, err))
			continue
		}
		for k, v := range values {
			env[k] = v
		}
	}
	return env, warnings
}

// placeholder recognises ${process.env.NAME}, ${NAME}, process.env.NAME,
// $NAME and {NAME}. Unknown names are left untouched.
var placeholder = regexp.MustCompile(
	`\$\{\s*process\.env\.([A-Za-z_][A-Za-z0-9_]*)\s*\}` +
		`|\$\{([A-Za-z_][A-Za-z0-9_]*)\}` +
		`|process\.env\.([A-Za-z_][A-Za-z0-9_]*)` +
		`|\$([A-Za-z_][A-Za-z0-9_]*)` +
		`|\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type Resolver struct {
	opts        Options
	bases       []URLBase // longest BaseURL first
	byName      map[string]string
	byKey       map[string][]domain.Endpoint // method + " " + path
	byPath      map[string][]domain.Endpoint
	byCanonKey  map[string][]domain.Endpoint
	byCanonPath map[string][]domain.Endpoint
	bySegments  map[int][]template
}

type template struct {
	ep   domain.Endpoint
	segs []string
}

// New indexes endpoints for lookup. The order of endpoints does not matter.
func New(endpoints []domain.Endpoint, opts Options) *Resolver {
	r := &Resolver{
		opts:        opts,
		byName:      make(map[string]string),
		byKey:       make(map[string][]domain.Endpoint),
		byPath:      make(map[string][]domain.Endpoint),
		byCanonKey:  make(map[string][]domain.Endpoint),
		byCanonPath: make(map[string][]domain.Endpoint),
		bySegments:  make(map[int][]template),
	}

	for _, b := range opts.Bases {
		b.BaseURL = strings.TrimRight(strings.TrimSpace(b.BaseURL), "/")
		if b.BaseURL == "" {
			continue
		}
		r.bases = append(r.bases, b)
		if b.Name != "" {
			r.byName[b.Name] = b.BaseURL
		}
	}
	sort.SliceStable(r.bases, func(i, j int) bool {
		return len(r.bases[i].BaseURL) > len(r.bases[j].BaseURL)
	})

	sorted := append([]domain.Endpoint(nil), endpoints...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, ep := range sorted {
		canon := Canonicalize(ep.Path)
		r.byKey[ep.Method+" "+ep.Path] = append(r.byKey[ep.Method+" "+ep.Path], ep)
		r.byPath[ep.Path] = append(r.byPath[ep.Path], ep)
		r.byCanonKey[ep.Method+" "+canon] = append(r.byCanonKey[ep.Method+" "+canon], ep)
		r.byCanonPath[canon] = append(r.byCanonPath[canon], ep)
		segs := strings.Split(canon, "/")
		r.bySegments[len(segs)] = append(r.bySegments[len(segs)], template{ep: ep, segs: segs})
	}
	return r
}

// Match returns the single endpoint u resolves to. ok is false when nothing
// or more than one endpoint matches.
func (r *Resolver) Match(u domain.Usage) (domain.Endpoint, bool) {
	for _, c := range r.candidates(u) {
		if ep, ok := r.lookup(u.Method, c.path, c.repo); ok {
			return ep, true
		}
	}
	return r.lookup(u.Method, EnsureLeadingSlash(decode(u.EndpointPath)), "")
}

type candidate struct {
	path string
	repo string
}

// candidates lists the remainders left after stripping every matching URL
// base, most specific base first.
func (r *Resolver) candidates(u domain.Usage) []candidate {
	if len(r.bases) == 0 {
		return nil
	}
	fullURL := r.expand(u.URL)
	endpointPath := r.expand(u.EndpointPath)

	var out []candidate
	for _, b := range r.bases {
		if rest, ok := stripBase(fullURL, b.BaseURL); ok && fullURL != "" {
			if rest == "" {
				rest = u.EndpointPath
			}
			out = append(out, candidate{path: EnsureLeadingSlash(rest), repo: b.Repo})
		} else if rest, ok := stripBase(endpointPath, b.BaseURL); ok && endpointPath != "" {
			out = append(out, candidate{path: EnsureLeadingSlash(rest), repo: b.Repo})
		}
	}
	return out
}

// expand URL-decodes s and substitutes known placeholders. A placeholder that
// expands to an absolute URL at the start of a path loses the leading slash.
func (r *Resolver) expand(s string) string {
	if s == "" {
		return ""
	}
	s = decode(s)
	s = placeholder.ReplaceAllStringFunc(s, func(m string) string {
		groups := placeholder.FindStringSubmatch(m)
		for _, name := range groups[1:] {
			if name == "" {
				continue
			}
			if v, ok := r.byName[name]; ok {
				return v
			}
			if v, ok := r.opts.Env[name]; ok && v != "" {
				return strings.TrimRight(v, "/")
			}
			return m
		}
		return m
	})
	if trimmed := strings.TrimPrefix(s, "/"); strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return s
}

func stripBase(s, base string) (string, bool) {
	if !strings.HasPrefix(s, base) {
		return "", false
	}
	rest := s[len(base):]
	if rest != "" && rest[0] != '/' && rest[0] != '?' && rest[0] != '#' {
		// "http://svc:30010" must not match base "http://svc:3001".
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest, true
}

func decode(s string) string {
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// lookup tries exact, canonical and template matches in that order. The
// first tier with any candidate decides: one candidate matches, several are
// ambiguous.
func (r *Resolver) lookup(method, path, repo string) (domain.Endpoint, bool) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	canon := Canonicalize(path)

	var tiers [][]domain.Endpoint
	if method != "" {
		tiers = [][]domain.Endpoint{
			withAll(r.byKey, method, path),
			withAll(r.byCanonKey, method, canon),
		}
	} else {
		tiers = [][]domain.Endpoint{r.byPath[path], r.byCanonPath[canon]}
	}

	for _, tier := range tiers {
		matched := filterRepo(tier, repo)
		switch len(matched) {
		case 0:
			continue
		case 1:
			return matched[0], true
		default:
			return domain.Endpoint{}, false
		}
	}

	matched := filterRepo(r.templateMatches(method, canon), repo)
	if len(matched) == 1 {
		return matched[0], true
	}
	return domain.Endpoint{}, false
}

func withAll(index map[string][]domain.Endpoint, method, path string) []domain.Endpoint {
	if eps := index[method+" "+path]; len(eps) > 0 {
		return eps
	}
	return index[domain.MethodAll+" "+path]
}

// templateMatches returns the endpoints whose parameter segments accept the
// concrete segments of path, keeping only those with the most literal
// segments in common.
func (r *Resolver) templateMatches(method, canon string) []domain.Endpoint {
	segs := strings.Split(canon, "/")
	best := -1
	var out []domain.Endpoint
	for _, t := range r.bySegments[len(segs)] {
		if method != "" && t.ep.Method != method && t.ep.Method != domain.MethodAll {
			continue
		}
		score, ok := segmentScore(t.segs, segs)
		if !ok {
			continue
		}
		switch {
		case score > best:
			best = score
			out = []domain.Endpoint{t.ep}
		case score == best:
			out = append(out, t.ep)
		}
	}
	return out
}

func segmentScore(tmpl, segs []string) (int, bool) {
	score := 0
	for i, s := range tmpl {
		switch {
		case s == segs[i]:
			if s != ParamToken {
				score++
			}
		case s == ParamToken && segs[i] != "":
		default:
			return 0, false
		}
	}
	return score, true
}

func filterRepo(eps []domain.Endpoint, repo string) []domain.Endpoint {
	if repo == "" {
		return eps
	}
	var out []domain.Endpoint
	for _, ep := range eps {
		if ep.RepoID == repo {
			out = append(out, ep)
		}
	}
	return out
}

// Resolve matches every usage and aggregates the cross-repository matches
// into edges sorted by consumer, provider and label.
func Resolve(endpoints []domain.Endpoint, usages []domain.Usage, opts Options) []domain.CrossRepoEdge {
	r := New(endpoints, opts)

	sorted := append([]domain.Usage(nil), usages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	edges := make(map[string]*domain.CrossRepoEdge)
	var unresolved int
	for _, u := range sorted {
		ep, ok := r.Match(u)
		if !ok {
			unresolved++
			continue
		}
		if ep.RepoID == u.RepoID {
			continue
		}
		label := EdgeLabel(ep.Method, ep.Path, opts.PurposeLabels)
		key := u.RepoID + "|" + ep.RepoID + "|" + label
		e, ok := edges[key]
		if !ok {
			e = &domain.CrossRepoEdge{
				FromRepoID:  u.RepoID,
				ToRepoID:    ep.RepoID,
				Label:       label,
				EndpointIDs: []string{},
				UsageIDs:    []string{},
			}
			edges[key] = e
		}
		e.Count++
		e.EndpointIDs = appendUnique(e.EndpointIDs, ep.ID)
		e.UsageIDs = appendUnique(e.UsageIDs, u.ID)
	}

	out := make([]domain.CrossRepoEdge, 0, len(edges))
	for _, e := range edges {
		sort.Strings(e.EndpointIDs)
		sort.Strings(e.UsageIDs)
		out = append(out, *e)
	}
	SortEdges(out)

	slog.Debug("resolve.done", "usages", len(usages), "edges", len(out), "unresolved", unresolved)
	return out
}

// SortEdges orders edges by consumer, provider, then label.
func SortEdges(edges []domain.CrossRepoEdge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.FromRepoID != b.FromRepoID {
			return a.FromRepoID < b.FromRepoID
		}
		if a.ToRepoID != b.ToRepoID {
			return a.ToRepoID < b.ToRepoID
		}
		return a.Label < b.Label
	})
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
