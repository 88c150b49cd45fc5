package extractor

import (
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"

	"repomesh/internal/domain"
	"repomesh/internal/port"
)

// FeatureRule labels the endpoints of files matching Include and none of
// Exclude. Patterns are doublestar globs over repository-relative paths.
type FeatureRule struct {
	Name    string
	Include []string
	Exclude []string
}

// FeatureMatcher returns the first feature whose globs match a file.
type FeatureMatcher struct {
	rules []FeatureRule
}

func NewFeatureMatcher(rules []FeatureRule) *FeatureMatcher {
	valid := make([]FeatureRule, 0, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			continue
		}
		if bad := firstInvalid(r.Include, r.Exclude); bad != "" {
			slog.Warn("feature.bad_pattern", "feature", r.Name, "pattern", bad)
			continue
		}
		valid = append(valid, r)
	}
	return &FeatureMatcher{rules: valid}
}

func firstInvalid(lists ...[]string) string {
	for _, l := range lists {
		for _, p := range l {
			if !doublestar.ValidatePattern(p) {
				return p
			}
		}
	}
	return ""
}

// Match returns the feature name for relFile, or "".
func (m *FeatureMatcher) Match(relFile string) string {
	if m == nil {
		return ""
	}
	for _, r := range m.rules {
		if matchAny(r.Include, relFile) && !matchAny(r.Exclude, relFile) {
			return r.Name
		}
	}
	return ""
}

func matchAny(patterns []string, relFile string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, relFile); ok {
			return true
		}
	}
	return false
}

// Extractor applies the endpoint and usage rule tables to source files.
type Extractor struct {
	endpointRules []EndpointRule
	usageRules    []UsageRule
	features      *FeatureMatcher
}

var (
	_ port.EndpointExtractor = (*Extractor)(nil)
	_ port.UsageExtractor    = (*Extractor)(nil)
)

// New returns an Extractor with the built-in rule tables.
func New(features []FeatureRule) *Extractor {
	return &Extractor{
		endpointRules: DefaultEndpointRules(),
		usageRules:    DefaultUsageRules(),
		features:      NewFeatureMatcher(features),
	}
}

func (e *Extractor) ExtractEndpoints(f port.SourceFile) []domain.Endpoint {
	return ExtractEndpointsWith(e.endpointRules, f, e.features.Match(f.RelFile))
}

func (e *Extractor) ExtractUsages(f port.SourceFile) []domain.Usage {
	return ExtractUsagesWith(e.usageRules, f)
}
