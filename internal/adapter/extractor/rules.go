package extractor

import (
	"path"
	"regexp"
	"strings"
)

// quoted matches a single-, double- or backtick-quoted literal and captures
// its body in exactly one of three groups.
const quoted = `(?:'([^'\n]*)'|"([^"\n]*)"|` + "`([^`]*)`)"

var (
	jsExts     = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"}
	pyExts     = []string{".py"}
	goExts     = []string{".go"}
	jvmExts    = []string{".java", ".kt"}
	csExts     = []string{".cs"}
	phpExts    = []string{".php"}
	rubyExts   = []string{".rb"}
	serverExts = append(append([]string{}, jsExts...), goExts...)
)

// appliesTo reports whether relFile has one of exts. No exts means any file.
func appliesTo(exts []string, relFile string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(relFile))
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

// group returns submatch n of a FindAllStringSubmatchIndex result and its
// offset; ok is false when the group did not participate.
func group(content string, loc []int, n int) (s string, offset int, ok bool) {
	if 2*n+1 >= len(loc) || loc[2*n] < 0 {
		return "", -1, false
	}
	return content[loc[2*n]:loc[2*n+1]], loc[2*n], true
}

// literal returns the first participating group among the three groups
// starting at n, as produced by quoted.
func literal(content string, loc []int, n int) (s string, offset int, ok bool) {
	for i := n; i < n+3; i++ {
		if s, off, ok := group(content, loc, i); ok {
			return s, off, true
		}
	}
	return "", -1, false
}

var (
	quotedMethod = regexp.MustCompile(`['"]([A-Za-z]+)['"]`)
	goMethodRef  = regexp.MustCompile(`http\.Method([A-Za-z]+)`)
	springMethod = regexp.MustCompile(`RequestMethod\.([A-Z]+)`)
	firstString  = regexp.MustCompile(`"([^"]*)"`)
	namedPathArg = regexp.MustCompile(`\b(?:value|path)\s*=\s*\{?\s*"([^"]*)"`)
)

// methodList collects the HTTP methods named in a raw argument list such as
// ['GET', "POST"] or http.MethodGet, http.MethodPost.
func methodList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(m string) {
		if hm, ok := toMethod(m); ok {
			if _, dup := seen[hm]; !dup {
				seen[hm] = struct{}{}
				out = append(out, hm)
			}
		}
	}
	for _, m := range quotedMethod.FindAllStringSubmatch(raw, -1) {
		add(m[1])
	}
	for _, m := range goMethodRef.FindAllStringSubmatch(raw, -1) {
		add(m[1])
	}
	for _, m := range springMethod.FindAllStringSubmatch(raw, -1) {
		add(m[1])
	}
	return out
}
