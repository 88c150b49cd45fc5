package port

import "repomesh/internal/domain"

// SourceFile is one file handed to the extractors.
type SourceFile struct {
	RepoID  string
	Path    string // absolute
	RelFile string // slash-separated, relative to the repository root
	Content string
}

// EndpointExtractor finds declared server routes in a file.
type EndpointExtractor interface {
	ExtractEndpoints(f SourceFile) []domain.Endpoint
}

// UsageExtractor finds outbound HTTP calls in a file.
type UsageExtractor interface {
	ExtractUsages(f SourceFile) []domain.Usage
}
