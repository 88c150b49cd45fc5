// Package graph renders the cross-repository edges of an index as text
// graph descriptions.
package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"repomesh/internal/domain"
)

// Output formats.
const (
	FormatMermaid = "mermaid"
	FormatDOT     = "dot"
)

// Render returns the graph of ix in format; an empty format means mermaid.
func Render(ix *domain.Index, format string) (string, error) {
	switch strings.ToLower(format) {
	case "", FormatMermaid:
		return Mermaid(ix), nil
	case FormatDOT, "graphviz":
		return DOT(ix), nil
	}
	return "", fmt.Errorf("unknown graph format %q (want %s or %s)", format, FormatMermaid, FormatDOT)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func sanitizeID(id string) string {
	return "R_" + unsafeChars.ReplaceAllString(id, "_")
}

// node is a repository with its sanitized identifier.
type node struct {
	id    string
	label string
}

// nodes assigns identifiers in repository-id order. Repositories whose ids
// sanitize to an identifier already taken get the first free numeric suffix.
func nodes(ix *domain.Index) (map[string]node, []string) {
	ids := make([]string, 0, len(ix.Repos))
	for id := range ix.Repos {
		ids = append(ids, id)
	}
	for _, e := range ix.Edges {
		for _, id := range []string{e.FromRepoID, e.ToRepoID} {
			if _, ok := ix.Repos[id]; !ok {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)

	out := make(map[string]node, len(ids))
	used := make(map[string]bool)
	var order []string
	for _, id := range ids {
		if _, done := out[id]; done {
			continue
		}
		base := sanitizeID(id)
		safe := base
		for n := 2; used[safe]; n++ {
			safe = base + "_" + strconv.Itoa(n)
		}
		used[safe] = true
		label := id
		if r, ok := ix.Repos[id]; ok && r.Name != "" {
			label = r.Name
		}
		out[id] = node{id: safe, label: label}
		order = append(order, id)
	}
	return out, order
}

func edgeLabel(e domain.CrossRepoEdge) string {
	return fmt.Sprintf("%s (%d)", e.Label, e.Count)
}

// Mermaid renders a left-to-right flowchart. Every repository is a node,
// including ones without edges.
func Mermaid(ix *domain.Index) string {
	ns, order := nodes(ix)
	var b strings.Builder
	b.WriteString("graph LR\n")
	for _, id := range order {
		n := ns[id]
		fmt.Fprintf(&b, "  %s[\"%s\"]\n", n.id, mermaidEscape(n.label))
	}
	for _, e := range ix.Edges {
		fmt.Fprintf(&b, "  %s -- \"%s\" --> %s\n", ns[e.FromRepoID].id, mermaidEscape(edgeLabel(e)), ns[e.ToRepoID].id)
	}
	return b.String()
}

func mermaidEscape(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

// DOT renders a Graphviz digraph.
func DOT(ix *domain.Index) string {
	ns, order := nodes(ix)
	var b strings.Builder
	b.WriteString("digraph repomesh {\n  rankdir=LR;\n  node [shape=box];\n")
	for _, id := range order {
		n := ns[id]
		fmt.Fprintf(&b, "  %s [label=%s];\n", n.id, dotQuote(n.label))
	}
	for _, e := range ix.Edges {
		fmt.Fprintf(&b, "  %s -> %s [label=%s];\n", ns[e.FromRepoID].id, ns[e.ToRepoID].id, dotQuote(edgeLabel(e)))
	}
	b.WriteString("}\n")
	return b.String()
}

func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
