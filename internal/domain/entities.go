package domain

import "time"

// IndexVersion is the persisted index format version.
const IndexVersion = 1

// HTTP methods recognised by the extractors.
const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodPatch   = "PATCH"
	MethodHead    = "HEAD"
	MethodOptions = "OPTIONS"
	MethodAll     = "ALL"
)

var httpMethods = map[string]struct{}{
	MethodGet: {}, MethodPost: {}, MethodPut: {}, MethodDelete: {},
	MethodPatch: {}, MethodHead: {}, MethodOptions: {}, MethodAll: {},
}

// IsHTTPMethod reports whether m (already upper-cased) is a known method.
func IsHTTPMethod(m string) bool {
	_, ok := httpMethods[m]
	return ok
}

type Repository struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Path              string   `json:"path"`
	RemoteURL         string   `json:"remoteUrl,omitempty"`
	Branch            string   `json:"branch,omitempty"`
	HeadCommit        string   `json:"headCommit,omitempty"`
	DetectedLanguages []string `json:"detectedLanguages"`
}

// Source types for endpoints.
const (
	SourceCode    = "code"
	SourceOpenAPI = "openapi"
)

type Endpoint struct {
	ID         string `json:"id"`
	RepoID     string `json:"repoId"`
	Feature    string `json:"feature,omitempty"`
	Method     string `json:"method"`
	Path       string `json:"path"`
	Framework  string `json:"framework"`
	File       string `json:"file"`
	RelFile    string `json:"relFile"`
	Line       int    `json:"line"`
	SourceType string `json:"sourceType"`
}

// Usage is one outbound HTTP call site. Method is empty when it could not be
// determined statically.
type Usage struct {
	ID           string `json:"id"`
	RepoID       string `json:"repoId"`
	File         string `json:"file"`
	RelFile      string `json:"relFile"`
	Line         int    `json:"line"`
	Method       string `json:"method,omitempty"`
	EndpointPath string `json:"endpointPath"`
	URL          string `json:"url,omitempty"`
	Snippet      string `json:"snippet,omitempty"`
	Tool         string `json:"tool"`
}

type CrossRepoEdge struct {
	FromRepoID  string   `json:"fromRepoId"`
	ToRepoID    string   `json:"toRepoId"`
	Label       string   `json:"label"`
	Count       int      `json:"count"`
	EndpointIDs []string `json:"endpointIds"`
	UsageIDs    []string `json:"usageIds"`
}

type ScanStats struct {
	ReposScanned   int   `json:"reposScanned"`
	FilesScanned   int   `json:"filesScanned"`
	EndpointsFound int   `json:"endpointsFound"`
	UsagesFound    int   `json:"usagesFound"`
	DurationMs     int64 `json:"durationMs"`
}

// Index is the persisted snapshot of one workspace.
type Index struct {
	Version    int                   `json:"version"`
	CreatedAt  time.Time             `json:"createdAt"`
	UpdatedAt  time.Time             `json:"updatedAt"`
	ConfigHash string                `json:"configHash"`
	Repos      map[string]Repository `json:"repos"`
	Endpoints  map[string]Endpoint   `json:"endpoints"`
	Usages     map[string]Usage      `json:"usages"`
	Edges      []CrossRepoEdge       `json:"edges"`
	ScanStats  ScanStats             `json:"scanStats"`
}

// NewIndex returns an empty index with initialised maps.
func NewIndex(configHash string, now time.Time) *Index {
	return &Index{
		Version:    IndexVersion,
		CreatedAt:  now,
		UpdatedAt:  now,
		ConfigHash: configHash,
		Repos:      make(map[string]Repository),
		Endpoints:  make(map[string]Endpoint),
		Usages:     make(map[string]Usage),
		Edges:      []CrossRepoEdge{},
	}
}

// EndpointsForRepo returns the endpoints owned by repoID.
func (ix *Index) EndpointsForRepo(repoID string) []Endpoint {
	var out []Endpoint
	for _, ep := range ix.Endpoints {
		if ep.RepoID == repoID {
			out = append(out, ep)
		}
	}
	return out
}

// UsagesForRepo returns the usages owned by repoID.
func (ix *Index) UsagesForRepo(repoID string) []Usage {
	var out []Usage
	for _, u := range ix.Usages {
		if u.RepoID == repoID {
			out = append(out, u)
		}
	}
	return out
}

type ScanSummary struct {
	ReposDiscovered int      `json:"reposDiscovered"`
	ReposScanned    int      `json:"reposScanned"`
	FilesScanned    int      `json:"filesScanned"`
	EndpointsFound  int      `json:"endpointsFound"`
	UsagesFound     int      `json:"usagesFound"`
	DurationMs      int64    `json:"durationMs"`
	ChangedRepos    []string `json:"changedRepos"`
	Warnings        []string `json:"warnings,omitempty"`
}

// Change types reported by change detection.
const (
	ChangeNew      = "new"
	ChangeModified = "modified"
	ChangeDeleted  = "deleted"
)

type RepoChangeDetail struct {
	RepoID     string `json:"repoId"`
	ChangeType string `json:"changeType"`
	OldCommit  string `json:"oldCommit,omitempty"`
	NewCommit  string `json:"newCommit,omitempty"`
}

type ChangeDetectionResult struct {
	HasChanges    bool               `json:"hasChanges"`
	ChangedRepos  []string           `json:"changedRepos"`
	NewRepos      []string           `json:"newRepos"`
	DeletedRepos  []string           `json:"deletedRepos"`
	ChangeDetails []RepoChangeDetail `json:"changeDetails"`
}

// ProjectInfo is one auto-discovered project candidate.
type ProjectInfo struct {
	Path       string   `json:"path"`
	Name       string   `json:"name"`
	Types      []string `json:"types"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators"`
	IsGitRepo  bool     `json:"isGitRepo"`
}

// RepoTarget is a repository selected for scanning before its facts are read.
type RepoTarget struct {
	Name       string
	Path       string
	RemoteURL  string
	Branch     string
	Explicit   bool
	Confidence float64
}
