package extractor

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"repomesh/internal/domain"
	"repomesh/internal/port"
)

// EndpointHit is one route declaration found by a rule. Line is derived from
// Offset when zero.
type EndpointHit struct {
	Offset     int
	Line       int
	Methods    []string
	Path       string
	Framework  string
	SourceType string
}

// EndpointRule finds route declarations in one file.
type EndpointRule interface {
	Name() string
	FindEndpoints(f port.SourceFile) []EndpointHit
}

// patternRule is a regular expression plus the strategy turning each match
// into hits.
type patternRule struct {
	name string
	exts []string
	re   *regexp.Regexp
	hits func(content string, loc []int) []EndpointHit
}

func (r patternRule) Name() string { return r.name }

func (r patternRule) FindEndpoints(f port.SourceFile) []EndpointHit {
	if !appliesTo(r.exts, f.RelFile) {
		return nil
	}
	var out []EndpointHit
	for _, loc := range r.re.FindAllStringSubmatchIndex(f.Content, -1) {
		out = append(out, r.hits(f.Content, loc)...)
	}
	return out
}

func single(offset int, method, p, framework string) []EndpointHit {
	m, ok := toMethod(method)
	if !ok {
		return nil
	}
	return []EndpointHit{{Offset: offset, Methods: []string{m}, Path: p, Framework: framework}}
}

// DefaultEndpointRules returns the built-in rules in precedence order.
func DefaultEndpointRules() []EndpointRule {
	return []EndpointRule{
		fastAPIRule,
		flaskRule,
		nestRule,
		springMappingRule,
		springRequestMappingRule,
		aspNetRule,
		goMuxRule,
		gorillaRule,
		laravelRule,
		verbFirstRule,
		objectCallRule,
		OpenAPIRule{},
	}
}

var fastAPIRule = patternRule{
	name: "fastapi",
	exts: pyExts,
	re:   regexp.MustCompile(`@([A-Za-z_]\w*)\.(get|post|put|delete|patch|options|head)\s*\(\s*` + quoted),
	hits: func(c string, loc []int) []EndpointHit {
		verb, _, _ := group(c, loc, 2)
		p, _, _ := literal(c, loc, 3)
		return single(loc[0], verb, p, "fastapi")
	},
}

var flaskRule = patternRule{
	name: "flask",
	exts: pyExts,
	re: regexp.MustCompile(`@([A-Za-z_]\w*)\.route\s*\(\s*` + quoted +
		`(?:\s*,\s*methods\s*=\s*[\[(]([^\])]*)[\])])?`),
	hits: func(c string, loc []int) []EndpointHit {
		p, _, _ := literal(c, loc, 2)
		methods := []string{domain.MethodGet}
		if raw, _, ok := group(c, loc, 5); ok {
			if listed := methodList(raw); len(listed) > 0 {
				methods = listed
			}
		}
		return []EndpointHit{{Offset: loc[0], Methods: methods, Path: p, Framework: "flask"}}
	},
}

var (
	nestController = regexp.MustCompile(`@Controller\s*\(\s*(?:` + quoted + `)?`)
	nestRule       = patternRule{
		name: "nestjs",
		exts: []string{".ts", ".js"},
		re:   regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Options|Head|All)\s*\(\s*(?:` + quoted + `)?\s*\)`),
		hits: func(c string, loc []int) []EndpointHit {
			verb, _, _ := group(c, loc, 1)
			p, _, _ := literal(c, loc, 2)
			prefix := lastPrefix(nestController, c, loc[0], func(m []int) string {
				s, _, _ := literal(c, m, 1)
				return s
			})
			return single(loc[0], verb, joinPath(prefix, p), "nestjs")
		},
	}
)

var (
	springClassMapping = regexp.MustCompile(`@RequestMapping\s*\(([^)]*)\)\s*(?:@\w+(?:\([^)]*\))?\s*)*(?:(?:public|final|abstract|open|internal)\s+)*class\b`)
	springMappingRule  = patternRule{
		name: "spring",
		exts: jvmExts,
		re:   regexp.MustCompile(`@(Get|Post|Put|Delete|Patch)Mapping\b(?:\s*\(([^)]*)\))?`),
		hits: func(c string, loc []int) []EndpointHit {
			verb, _, _ := group(c, loc, 1)
			args, _, _ := group(c, loc, 2)
			return single(loc[0], verb, joinPath(springPrefix(c, loc[0]), stringArg(args)), "spring")
		},
	}
	springRequestMappingRule = patternRule{
		name: "spring-requestmapping",
		exts: jvmExts,
		re:   regexp.MustCompile(`@RequestMapping\s*\(([^)]*)\)`),
		hits: func(c string, loc []int) []EndpointHit {
			args, _, _ := group(c, loc, 1)
			methods := methodList(args)
			if len(methods) == 0 {
				return nil
			}
			p := joinPath(springPrefix(c, loc[0]), stringArg(args))
			return []EndpointHit{{Offset: loc[0], Methods: methods, Path: p, Framework: "spring"}}
		},
	}
)

func springPrefix(c string, offset int) string {
	return lastPrefix(springClassMapping, c, offset, func(m []int) string {
		args, _, _ := group(c, m, 1)
		if len(methodList(args)) > 0 {
			return ""
		}
		return stringArg(args)
	})
}

// stringArg returns the path of an annotation's argument list: the value or
// path attribute, else a leading bare string.
func stringArg(args string) string {
	if m := namedPathArg.FindStringSubmatch(args); m != nil {
		return m[1]
	}
	trimmed := strings.TrimLeft(strings.TrimSpace(args), "{ ")
	if strings.HasPrefix(trimmed, `"`) {
		if m := firstString.FindStringSubmatch(trimmed); m != nil {
			return m[1]
		}
	}
	return ""
}

var (
	aspNetRoute = regexp.MustCompile(`\[Route\s*\(\s*"([^"]*)"\s*\)\]\s*(?:\[[^\]]*\]\s*)*(?:(?:public|internal|sealed|abstract|partial)\s+)*class\s+(\w+)`)
	aspNetRule  = patternRule{
		name: "aspnet",
		exts: csExts,
		re:   regexp.MustCompile(`\[Http(Get|Post|Put|Delete|Patch|Head|Options)(?:\s*\(\s*"([^"]*)"[^)]*\))?\s*\]`),
		hits: func(c string, loc []int) []EndpointHit {
			verb, _, _ := group(c, loc, 1)
			p, _, _ := group(c, loc, 2)
			if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "~/") {
				return single(loc[0], verb, ensureLeadingSlash(strings.TrimPrefix(p, "~")), "aspnet")
			}
			prefix := lastPrefix(aspNetRoute, c, loc[0], func(m []int) string {
				route, _, _ := group(c, m, 1)
				class, _, _ := group(c, m, 2)
				name := strings.ToLower(strings.TrimSuffix(class, "Controller"))
				return strings.ReplaceAll(route, "[controller]", name)
			})
			return single(loc[0], verb, joinPath(prefix, p), "aspnet")
		},
	}
)

var goMuxRule = patternRule{
	name: "net/http",
	exts: goExts,
	re:   regexp.MustCompile(`\.(?:HandleFunc|Handle)\s*\(\s*"(GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\s+([^"\s]+)"`),
	hits: func(c string, loc []int) []EndpointHit {
		verb, _, _ := group(c, loc, 1)
		p, _, _ := group(c, loc, 2)
		// A host may precede the path: "GET api.example.com/items".
		if i := strings.IndexByte(p, '/'); i > 0 {
			p = p[i:]
		}
		return single(loc[0], verb, p, "net/http")
	},
}

var gorillaRule = patternRule{
	name: "gorilla",
	exts: goExts,
	re:   regexp.MustCompile(`\.(?:HandleFunc|Handle|Path)\s*\(\s*"(/[^"]*)"[^\n]*?\.Methods\s*\(([^)]*)\)`),
	hits: func(c string, loc []int) []EndpointHit {
		p, _, _ := group(c, loc, 1)
		raw, _, _ := group(c, loc, 2)
		methods := methodList(raw)
		if len(methods) == 0 {
			return nil
		}
		return []EndpointHit{{Offset: loc[0], Methods: methods, Path: p, Framework: "gorilla/mux"}}
	},
}

var laravelRule = patternRule{
	name: "laravel",
	exts: phpExts,
	re:   regexp.MustCompile(`Route::(get|post|put|delete|patch|options|any)\s*\(\s*` + quoted),
	hits: func(c string, loc []int) []EndpointHit {
		verb, _, _ := group(c, loc, 1)
		p, _, _ := literal(c, loc, 2)
		return single(loc[0], verb, p, "laravel")
	},
}

var verbFirstRule = patternRule{
	name: "sinatra",
	exts: rubyExts,
	re:   regexp.MustCompile(`(?m)^[ \t]*(get|post|put|delete|patch|options|head)[ \t(]+` + quoted),
	hits: func(c string, loc []int) []EndpointHit {
		verb, _, _ := group(c, loc, 1)
		p, off, _ := literal(c, loc, 2)
		return single(off, verb, p, "sinatra")
	},
}

// clientObjects are receivers whose verb calls are outbound requests, not
// route registrations.
var clientObjects = map[string]struct{}{
	"axios": {}, "requests": {}, "httpx": {}, "http": {}, "https": {},
	"client": {}, "httpClient": {}, "HttpClient": {}, "api": {}, "apiClient": {},
	"session": {}, "fetch": {}, "restTemplate": {}, "webClient": {}, "superagent": {},
	"got": {}, "ky": {}, "request": {}, "$http": {}, "resp": {}, "res": {}, "req": {},
	"params": {}, "headers": {}, "searchParams": {}, "query": {}, "cache": {},
	"map": {}, "store": {}, "localStorage": {}, "sessionStorage": {}, "config": {},
}

var objectCallRule = patternRule{
	name: "object-call",
	exts: serverExts,
	re: regexp.MustCompile(`\b([A-Za-z_$][\w$]*)\.(get|post|put|delete|patch|options|head|all|` +
		`GET|POST|PUT|DELETE|PATCH|OPTIONS|HEAD|Any|Get|Post|Put|Delete|Patch|Options|Head|All)\s*\(\s*` + quoted),
	hits: func(c string, loc []int) []EndpointHit {
		obj, _, _ := group(c, loc, 1)
		verb, _, _ := group(c, loc, 2)
		p, _, _ := literal(c, loc, 3)
		if _, client := clientObjects[obj]; client {
			return nil
		}
		if !strings.HasPrefix(p, "/") || strings.Contains(p, "://") || strings.Contains(p, "${") {
			return nil
		}
		return single(loc[0], verb, p, objectFramework(obj, verb))
	},
}

func objectFramework(obj, verb string) string {
	switch {
	case obj == "fastify":
		return "fastify"
	case verb == strings.ToUpper(verb):
		return "gin"
	case verb[0] >= 'A' && verb[0] <= 'Z':
		return "chi"
	case obj == "app" || obj == "router" || obj == "server":
		return "express"
	}
	return "unknown"
}

// lastPrefix returns the prefix captured by the last match of re that ends
// before offset.
func lastPrefix(re *regexp.Regexp, content string, offset int, extract func(loc []int) string) string {
	prefix := ""
	for _, m := range re.FindAllStringSubmatchIndex(content[:offset], -1) {
		prefix = extract(m)
	}
	return prefix
}

// ExtractEndpointsWith runs rules over f and converts the hits to endpoints.
// Hits are de-duplicated by method, path and line; the first rule wins.
func ExtractEndpointsWith(rules []EndpointRule, f port.SourceFile, feature string) []domain.Endpoint {
	lines := newLineIndex(f.Content)
	seen := make(map[string]struct{})
	relFile := path.Clean(strings.ReplaceAll(f.RelFile, "\\", "/"))

	var out []domain.Endpoint
	for _, rule := range rules {
		for _, hit := range rule.FindEndpoints(f) {
			line := hit.Line
			if line == 0 {
				line = lines.line(hit.Offset)
			}
			p := ensureLeadingSlash(strings.TrimSpace(hit.Path))
			source := hit.SourceType
			if source == "" {
				source = domain.SourceCode
			}
			for _, method := range hit.Methods {
				key := method + "|" + p + "|" + strconv.Itoa(line)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, domain.Endpoint{
					ID:         hashID(f.RepoID, hit.Framework, method, p, relFile, strconv.Itoa(line)),
					RepoID:     f.RepoID,
					Feature:    feature,
					Method:     method,
					Path:       p,
					Framework:  hit.Framework,
					File:       f.Path,
					RelFile:    relFile,
					Line:       line,
					SourceType: source,
				})
			}
		}
	}
	return out
}
