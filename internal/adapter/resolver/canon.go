package resolver

import (
	"strings"
)

// ParamToken replaces every parameter segment in a canonical path.
const ParamToken = ":"

// Canonicalize normalises a path template so that differently spelled
// parameters compare equal: {id}, :id, ${id}, <id> and <int:id> all become
// ParamToken. Other segments are kept verbatim. Canonicalize is idempotent.
func Canonicalize(p string) string {
	segs := strings.Split(EnsureLeadingSlash(p), "/")
	for i, seg := range segs {
		if IsParamSegment(seg) {
			segs[i] = ParamToken
		}
	}
	return strings.Join(segs, "/")
}

// IsParamSegment reports whether one path segment is a parameter placeholder.
func IsParamSegment(seg string) bool {
	switch {
	case seg == "":
		return false
	case seg[0] == ':':
		return true
	case len(seg) > 2 && seg[0] == '{' && seg[len(seg)-1] == '}':
		return !strings.ContainsAny(seg[1:len(seg)-1], "{}")
	case len(seg) > 3 && strings.HasPrefix(seg, "${") && seg[len(seg)-1] == '}':
		return !strings.ContainsAny(seg[2:len(seg)-1], "{}")
	case len(seg) > 2 && seg[0] == '<' && seg[len(seg)-1] == '>':
		return !strings.ContainsAny(seg[1:len(seg)-1], "<>")
	}
	return false
}

func EnsureLeadingSlash(p string) string {
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}
