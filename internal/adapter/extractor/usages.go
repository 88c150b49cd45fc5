package extractor

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"repomesh/internal/domain"
	"repomesh/internal/port"
)

// UsageHit is one outbound call found by a rule. Offset points at the URL
// literal, so a call split over several lines reports the line of its target.
type UsageHit struct {
	Offset int
	Method string
	Target string
	Tool   string
}

// UsageRule finds outbound HTTP calls in one file.
type UsageRule interface {
	Name() string
	FindUsages(f port.SourceFile) []UsageHit
}

type usagePattern struct {
	name string
	exts []string
	re   *regexp.Regexp
	hit  func(content string, loc []int) (UsageHit, bool)
}

func (r usagePattern) Name() string { return r.name }

func (r usagePattern) FindUsages(f port.SourceFile) []UsageHit {
	if !appliesTo(r.exts, f.RelFile) {
		return nil
	}
	var out []UsageHit
	for _, loc := range r.re.FindAllStringSubmatchIndex(f.Content, -1) {
		if h, ok := r.hit(f.Content, loc); ok {
			out = append(out, h)
		}
	}
	return out
}

var codeExts = func() []string {
	var all []string
	for _, exts := range [][]string{jsExts, pyExts, goExts, jvmExts, csExts, phpExts, rubyExts} {
		all = append(all, exts...)
	}
	return all
}()

// DefaultUsageRules returns the built-in rules in precedence order. The
// absolute-URL catch-all must stay last.
func DefaultUsageRules() []UsageRule {
	return []UsageRule{
		fetchRule,
		axiosVerbRule,
		axiosCallRule,
		axiosConfigRule,
		clientVerbRule,
		nodeHTTPRule,
		pythonClientRule,
		goClientRule,
		goNewRequestRule,
		restTemplateRule,
		webClientRule,
		absoluteURLRule,
	}
}

var optionMethod = regexp.MustCompile(`(?i)\bmethod\s*:\s*['"` + "`" + `]([A-Za-z]+)['"` + "`" + `]`)

// methodFromOptions returns the method named in an options object, or "".
func methodFromOptions(opts string) string {
	if m := optionMethod.FindStringSubmatch(opts); m != nil {
		if hm, ok := toMethod(m[1]); ok {
			return hm
		}
	}
	return ""
}

func verbMethod(verb string) string {
	m, _ := toMethod(verb)
	return m
}

var fetchRule = usagePattern{
	name: "fetch",
	exts: jsExts,
	re:   regexp.MustCompile(`\bfetch\s*\(\s*` + quoted + `(\s*,\s*\{[^)]*)?`),
	hit: func(c string, loc []int) (UsageHit, bool) {
		target, off, _ := literal(c, loc, 1)
		opts, _, _ := group(c, loc, 4)
		return UsageHit{Offset: off, Method: methodFromOptions(opts), Target: target, Tool: "fetch"}, true
	},
}

var axiosVerbRule = usagePattern{
	name: "axios-verb",
	exts: jsExts,
	re:   regexp.MustCompile(`\baxios\.(get|post|put|delete|patch|options|head)\s*(?:<[^>(]*>)?\s*\(\s*` + quoted),
	hit: func(c string, loc []int) (UsageHit, bool) {
		verb, _, _ := group(c, loc, 1)
		target, off, _ := literal(c, loc, 2)
		return UsageHit{Offset: off, Method: verbMethod(verb), Target: target, Tool: "axios"}, true
	},
}

var axiosCallRule = usagePattern{
	name: "axios-call",
	exts: jsExts,
	re:   regexp.MustCompile(`\baxios\s*\(\s*` + quoted + `(\s*,\s*\{[^)]*)?`),
	hit: func(c string, loc []int) (UsageHit, bool) {
		target, off, _ := literal(c, loc, 1)
		opts, _, _ := group(c, loc, 4)
		return UsageHit{Offset: off, Method: methodFromOptions(opts), Target: target, Tool: "axios"}, true
	},
}

var (
	configURL       = regexp.MustCompile(`\burl\s*:\s*` + quoted)
	axiosConfigRule = usagePattern{
		name: "axios-config",
		exts: jsExts,
		re:   regexp.MustCompile(`\baxios(?:\.request)?\s*\(\s*\{([^}]*)\}`),
		hit: func(c string, loc []int) (UsageHit, bool) {
			body, bodyOff, _ := group(c, loc, 1)
			m := configURL.FindStringSubmatchIndex(body)
			if m == nil {
				return UsageHit{}, false
			}
			target, off, _ := literal(body, m, 1)
			return UsageHit{Offset: bodyOff + off, Method: methodFromOptions(body), Target: target, Tool: "axios"}, true
		},
	}
)

var clientVerbRule = usagePattern{
	name: "http-client",
	exts: jsExts,
	re: regexp.MustCompile(`(?:\$http|\bthis\.(?:http|httpClient)|\b(?:httpClient|apiClient|api|client))` +
		`\.(get|post|put|delete|patch|head|options)\s*(?:<[^>(]*>)?\s*\(\s*` + quoted),
	hit: func(c string, loc []int) (UsageHit, bool) {
		verb, _, _ := group(c, loc, 1)
		target, off, _ := literal(c, loc, 2)
		return UsageHit{Offset: off, Method: verbMethod(verb), Target: target, Tool: "http-client"}, true
	},
}

var nodeHTTPRule = usagePattern{
	name: "node-http",
	exts: jsExts,
	re:   regexp.MustCompile(`\bhttps?\s*\.\s*(request|get)\s*\(\s*` + quoted),
	hit: func(c string, loc []int) (UsageHit, bool) {
		fn, _, _ := group(c, loc, 1)
		target, off, _ := literal(c, loc, 2)
		method := ""
		if fn == "get" {
			method = domain.MethodGet
		}
		return UsageHit{Offset: off, Method: method, Target: target, Tool: "http"}, true
	},
}

var pythonClientRule = usagePattern{
	name: "python-client",
	exts: pyExts,
	re: regexp.MustCompile(`\b(requests|httpx|session|self\.session|client|self\.client)` +
		`\.(get|post|put|delete|patch|options|head)\s*\(\s*[fFrR]?` + quoted),
	hit: func(c string, loc []int) (UsageHit, bool) {
		obj, _, _ := group(c, loc, 1)
		verb, _, _ := group(c, loc, 2)
		target, off, _ := literal(c, loc, 3)
		tool := "requests"
		if obj == "httpx" || strings.HasSuffix(obj, "client") {
			tool = "httpx"
		}
		return UsageHit{Offset: off, Method: verbMethod(verb), Target: target, Tool: tool}, true
	},
}

var goClientRule = usagePattern{
	name: "go-client",
	exts: goExts,
	re:   regexp.MustCompile(`\b(?:http|http\.DefaultClient|\w*[cC]lient)\.(Get|Post|Head|PostForm)\s*\(\s*` + quoted),
	hit: func(c string, loc []int) (UsageHit, bool) {
		fn, _, _ := group(c, loc, 1)
		target, off, _ := literal(c, loc, 2)
		if fn == "PostForm" {
			fn = "Post"
		}
		return UsageHit{Offset: off, Method: verbMethod(fn), Target: target, Tool: "net/http"}, true
	},
}

var goNewRequestRule = usagePattern{
	name: "go-newrequest",
	exts: goExts,
	re: regexp.MustCompile(`\bhttp\.NewRequest(?:WithContext)?\s*\(\s*(?:[\w.()]+\s*,\s*)?` +
		`(?:"([A-Za-z]+)"|http\.Method(\w+))\s*,\s*` + quoted),
	hit: func(c string, loc []int) (UsageHit, bool) {
		method, _, ok := group(c, loc, 1)
		if !ok {
			method, _, _ = group(c, loc, 2)
		}
		target, off, _ := literal(c, loc, 3)
		return UsageHit{Offset: off, Method: verbMethod(method), Target: target, Tool: "net/http"}, true
	},
}

var restTemplateMethods = map[string]string{
	"getForObject":    domain.MethodGet,
	"getForEntity":    domain.MethodGet,
	"postForObject":   domain.MethodPost,
	"postForEntity":   domain.MethodPost,
	"postForLocation": domain.MethodPost,
	"patchForObject":  domain.MethodPatch,
	"put":             domain.MethodPut,
	"delete":          domain.MethodDelete,
}

var restTemplateRule = usagePattern{
	name: "resttemplate",
	exts: jvmExts,
	re: regexp.MustCompile(`\b\w*[rR]estTemplate\s*\.\s*(getForObject|getForEntity|postForObject|postForEntity|postForLocation|` +
		`patchForObject|put|delete|exchange)\s*\(\s*"([^"]*)"(?:\s*,\s*HttpMethod\.([A-Z]+))?`),
	hit: func(c string, loc []int) (UsageHit, bool) {
		fn, _, _ := group(c, loc, 1)
		target, off, _ := group(c, loc, 2)
		method := restTemplateMethods[fn]
		if fn == "exchange" {
			m, _, _ := group(c, loc, 3)
			method = verbMethod(m)
		}
		return UsageHit{Offset: off, Method: method, Target: target, Tool: "resttemplate"}, true
	},
}

var webClientRule = usagePattern{
	name: "webclient",
	exts: jvmExts,
	re: regexp.MustCompile(`\.(?:(get|post|put|delete|patch|head|options)\(\)|method\(\s*HttpMethod\.([A-Z]+)\s*\))` +
		`\s*\.uri\(\s*"([^"]*)"`),
	hit: func(c string, loc []int) (UsageHit, bool) {
		verb, _, ok := group(c, loc, 1)
		if !ok {
			verb, _, _ = group(c, loc, 2)
		}
		target, off, _ := group(c, loc, 3)
		return UsageHit{Offset: off, Method: verbMethod(verb), Target: target, Tool: "webclient"}, true
	},
}

var (
	versionSegment  = regexp.MustCompile(`^v\d+(?:\.\d+)?$`)
	apiSegments     = map[string]struct{}{"api": {}, "apis": {}, "rest": {}, "graphql": {}, "rpc": {}}
	absoluteURLRule = usagePattern{
		name: "url",
		exts: codeExts,
		re:   regexp.MustCompile(`['"` + "`" + `](https?://[^'"` + "`" + `\s]+)['"` + "`" + `]`),
		hit: func(c string, loc []int) (UsageHit, bool) {
			target, off, _ := group(c, loc, 1)
			if !looksLikeAPI(target) {
				return UsageHit{}, false
			}
			return UsageHit{Offset: off, Target: target, Tool: "url"}, true
		},
	}
)

// looksLikeAPI keeps absolute URLs that carry a version segment, an api-style
// segment, a path parameter, or a non-default port.
func looksLikeAPI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	if p := u.Port(); p != "" && p != "80" && p != "443" {
		return true
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		if versionSegment.MatchString(seg) || isParam(seg) {
			return true
		}
		if _, ok := apiSegments[strings.ToLower(seg)]; ok {
			return true
		}
	}
	return false
}

func isParam(seg string) bool {
	return strings.HasPrefix(seg, ":") ||
		strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") ||
		strings.HasPrefix(seg, "${") && strings.HasSuffix(seg, "}")
}

// ExtractUsagesWith runs rules over f and converts the hits to usages. Hits
// are de-duplicated by line, endpoint path and method; the first rule wins,
// and a hit without a method counts as a duplicate of any hit on the same
// line and path.
func ExtractUsagesWith(rules []UsageRule, f port.SourceFile) []domain.Usage {
	lines := newLineIndex(f.Content)
	seen := make(map[string]map[string]bool) // line|path -> methods
	relFile := path.Clean(strings.ReplaceAll(f.RelFile, "\\", "/"))

	var out []domain.Usage
	for _, rule := range rules {
		for _, hit := range rule.FindUsages(f) {
			target := strings.TrimSpace(hit.Target)
			if target == "" {
				continue
			}
			line := lines.line(hit.Offset)
			endpointPath, absURL := splitURL(target)
			key := strconv.Itoa(line) + "|" + endpointPath
			methods := seen[key]
			if methods != nil && (hit.Method == "" || methods[hit.Method] || methods[""]) {
				continue
			}
			if methods == nil {
				methods = make(map[string]bool)
				seen[key] = methods
			}
			methods[hit.Method] = true

			methodKey := hit.Method
			if methodKey == "" {
				methodKey = "UNK"
			}
			out = append(out, domain.Usage{
				ID:           hashID(f.RepoID, hit.Tool, endpointPath, relFile, strconv.Itoa(line), methodKey),
				RepoID:       f.RepoID,
				File:         f.Path,
				RelFile:      relFile,
				Line:         line,
				Method:       hit.Method,
				EndpointPath: endpointPath,
				URL:          absURL,
				Snippet:      snippet(f.Content, hit.Offset),
				Tool:         hit.Tool,
			})
		}
	}
	return out
}
