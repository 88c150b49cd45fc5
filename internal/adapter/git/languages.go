package git

import (
	"path/filepath"
	"sort"
	"strings"
)

var extLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".cs":    "csharp",
	".rb":    "ruby",
	".php":   "php",
	".rs":    "rust",
	".scala": "scala",
	".swift": "swift",
}

// DetectLanguages maps file paths to the sorted set of source languages they
// are written in. Data files (json, yaml) do not count.
func DetectLanguages(paths []string) []string {
	seen := make(map[string]struct{})
	for _, p := range paths {
		if lang, ok := extLanguages[strings.ToLower(filepath.Ext(p))]; ok {
			seen[lang] = struct{}{}
		}
	}

	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
