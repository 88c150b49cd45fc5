package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNoRepositories is returned by Validate when nothing could ever be scanned.
var ErrNoRepositories = errors.New("config: no repositories, roots or workspace roots configured")

// Config holds all configuration consumed by the scan engine.
type Config struct {
	Repos                 []RepoConfig        `yaml:"repos"`
	Roots                 []string            `yaml:"roots"`
	AutoDiscovery         AutoDiscoveryConfig `yaml:"auto_discovery"`
	ExcludeGlobs          []string            `yaml:"exclude_globs"`
	IncludeFileExtensions []string            `yaml:"include_file_extensions"`
	URLBases              []URLBaseConfig     `yaml:"url_bases"`
	EnvFiles              []string            `yaml:"env_files"`
	FeatureGlobs          []FeatureGlobConfig `yaml:"feature_globs"`
	IndexPath             string              `yaml:"index_path"`
	Scan                  ScanConfig          `yaml:"scan"`
	Cache                 CacheConfig         `yaml:"cache"`
	Graph                 GraphConfig         `yaml:"graph"`
	Enhance               EnhanceConfig       `yaml:"enhance"`
	Logging               LoggingConfig       `yaml:"logging"`

	// baseDir is the directory relative paths were resolved against.
	baseDir string
}

// RepoConfig is an explicitly configured repository.
type RepoConfig struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

// AutoDiscoveryConfig controls heuristic project discovery.
type AutoDiscoveryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxDepth        int      `yaml:"max_depth"`
	MinConfidence   float64  `yaml:"min_confidence"`
	HighConfidence  float64  `yaml:"high_confidence"` // no descent below projects above this
	IncludeHidden   bool     `yaml:"include_hidden"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	WorkspaceRoots  []string `yaml:"workspace_roots"`
}

// URLBaseConfig maps a URL prefix (or placeholder name) to a provider repo.
type URLBaseConfig struct {
	Name    string `yaml:"name,omitempty"`
	Repo    string `yaml:"repo,omitempty"`
	BaseURL string `yaml:"base_url"`
}

// FeatureGlobConfig labels endpoints by file path.
type FeatureGlobConfig struct {
	Name    string   `yaml:"name"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// ScanConfig holds scan execution limits.
type ScanConfig struct {
	Workers          int   `yaml:"workers"`
	MaxFiles         int   `yaml:"max_files"`     // per repository, 0 = unlimited
	MaxFileSize      int64 `yaml:"max_file_size"` // bytes, 0 = unlimited
	RespectGitignore bool  `yaml:"respect_gitignore"`
}

// CacheConfig holds per-file extraction cache configuration.
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	MemoryEntries int    `yaml:"memory_entries"`
}

// GraphConfig holds graph labelling and export configuration.
type GraphConfig struct {
	PurposeLabels bool   `yaml:"purpose_labels"`
	Format        string `yaml:"format"` // "mermaid", "dot"
}

// EnhanceConfig is the explicit switch for the optional relationship
// enhancement layer. The engine only records it.
type EnhanceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json"
}

// DefaultIncludeExtensions is the extension allow-list used when none is set.
var DefaultIncludeExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
	".py", ".go", ".java", ".kt", ".cs", ".rb", ".php",
	".json", ".yaml", ".yml",
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AutoDiscovery: AutoDiscoveryConfig{
			Enabled:        false,
			MaxDepth:       3,
			MinConfidence:  25,
			HighConfidence: 70,
			ExcludePatterns: []string{
				"**/node_modules/**", "**/.git/**", "**/dist/**", "**/build/**",
				"**/target/**", "**/.venv/**", "**/venv/**", "**/__pycache__/**",
				"**/bin/**", "**/obj/**",
			},
		},
		IncludeFileExtensions: append([]string(nil), DefaultIncludeExtensions...),
		IndexPath:             filepath.Join(".repomesh", "index.json"),
		Scan: ScanConfig{
			Workers:          4,
			MaxFileSize:      1_000_000,
			RespectGitignore: false,
		},
		Cache: CacheConfig{
			Enabled:       true,
			Path:          filepath.Join(".repomesh", "cache.db"),
			MemoryEntries: 4096,
		},
		Graph: GraphConfig{
			Format: "mermaid",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults
// rooted at the file's directory.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return load(abs, filepath.Dir(abs))
}

func load(path, baseDir string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.Resolve(baseDir)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Resolve(baseDir)
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for repomesh.yaml,
// then .repomesh/config.yaml). Relative paths resolve against dir.
func LoadFromDir(dir string) (*Config, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	for _, candidate := range []string{
		filepath.Join(abs, "repomesh.yaml"),
		filepath.Join(abs, ".repomesh", "config.yaml"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return load(candidate, abs)
		}
	}

	cfg := DefaultConfig()
	cfg.Resolve(abs)
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BaseDir returns the directory relative paths are resolved against.
func (c *Config) BaseDir() string {
	return c.baseDir
}

// Resolve makes every relative path absolute against baseDir and fills in
// defaults that depend on it.
func (c *Config) Resolve(baseDir string) {
	c.baseDir = baseDir
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}

	for i := range c.Repos {
		c.Repos[i].Path = abs(c.Repos[i].Path)
	}
	for i := range c.Roots {
		c.Roots[i] = abs(c.Roots[i])
	}
	for i := range c.AutoDiscovery.WorkspaceRoots {
		c.AutoDiscovery.WorkspaceRoots[i] = abs(c.AutoDiscovery.WorkspaceRoots[i])
	}
	for i := range c.EnvFiles {
		c.EnvFiles[i] = abs(c.EnvFiles[i])
	}
	if len(c.IncludeFileExtensions) == 0 {
		c.IncludeFileExtensions = append([]string(nil), DefaultIncludeExtensions...)
	}
	if len(c.Repos) == 0 && len(c.Roots) == 0 && len(c.AutoDiscovery.WorkspaceRoots) == 0 {
		c.Roots = []string{baseDir}
	}
	c.IndexPath = abs(c.IndexPath)
	c.Cache.Path = abs(c.Cache.Path)
}

// WorkspaceRoots returns the roots auto-discovery searches.
func (c *Config) WorkspaceRoots() []string {
	if len(c.AutoDiscovery.WorkspaceRoots) > 0 {
		return c.AutoDiscovery.WorkspaceRoots
	}
	if len(c.Roots) > 0 {
		return c.Roots
	}
	if c.baseDir != "" {
		return []string{c.baseDir}
	}
	return nil
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config: %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Validate checks the configuration shape. It is the only point at which a
// scan refuses to start.
func (c *Config) Validate() error {
	if len(c.Repos) == 0 && len(c.Roots) == 0 && len(c.AutoDiscovery.WorkspaceRoots) == 0 {
		return ErrNoRepositories
	}
	for i, r := range c.Repos {
		if strings.TrimSpace(r.Path) == "" {
			return &ValidationError{Field: fmt.Sprintf("repos[%d].path", i), Reason: "path is required"}
		}
	}
	for i, b := range c.URLBases {
		if strings.TrimSpace(b.BaseURL) == "" {
			return &ValidationError{Field: fmt.Sprintf("url_bases[%d].base_url", i), Reason: "base_url is required"}
		}
	}
	for i, fg := range c.FeatureGlobs {
		if fg.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("feature_globs[%d].name", i), Reason: "name is required"}
		}
		if len(fg.Include) == 0 {
			return &ValidationError{Field: fmt.Sprintf("feature_globs[%d].include", i), Value: fg.Name, Reason: "at least one include glob is required"}
		}
	}
	if c.AutoDiscovery.MinConfidence < 0 || c.AutoDiscovery.MinConfidence > 100 {
		return &ValidationError{Field: "auto_discovery.min_confidence", Value: fmt.Sprint(c.AutoDiscovery.MinConfidence), Reason: "must be within 0-100"}
	}
	if c.AutoDiscovery.HighConfidence < 0 || c.AutoDiscovery.HighConfidence > 100 {
		return &ValidationError{Field: "auto_discovery.high_confidence", Value: fmt.Sprint(c.AutoDiscovery.HighConfidence), Reason: "must be within 0-100"}
	}
	if c.Scan.Workers < 0 {
		return &ValidationError{Field: "scan.workers", Value: fmt.Sprint(c.Scan.Workers), Reason: "must not be negative"}
	}
	switch c.Graph.Format {
	case "", "mermaid", "dot":
	default:
		return &ValidationError{Field: "graph.format", Value: c.Graph.Format, Reason: "must be mermaid or dot"}
	}
	if strings.TrimSpace(c.IndexPath) == "" {
		return &ValidationError{Field: "index_path", Reason: "index path is required"}
	}
	return nil
}

// Hash returns a short hash of the scan-relevant configuration. Indexes built
// under a different hash are not compared against.
func (c *Config) Hash() string {
	relevant := struct {
		Repos        []RepoConfig        `json:"repos"`
		Roots        []string            `json:"roots"`
		Discovery    AutoDiscoveryConfig `json:"discovery"`
		Excludes     []string            `json:"excludes"`
		Extensions   []string            `json:"extensions"`
		URLBases     []URLBaseConfig     `json:"url_bases"`
		EnvFiles     []string            `json:"env_files"`
		FeatureGlobs []FeatureGlobConfig `json:"feature_globs"`
		MaxFiles     int                 `json:"max_files"`
		MaxFileSize  int64               `json:"max_file_size"`
		Gitignore    bool                `json:"gitignore"`
		Purpose      bool                `json:"purpose"`
	}{
		Repos:        c.Repos,
		Roots:        c.Roots,
		Discovery:    c.AutoDiscovery,
		Excludes:     c.ExcludeGlobs,
		Extensions:   c.IncludeFileExtensions,
		URLBases:     c.URLBases,
		EnvFiles:     c.EnvFiles,
		FeatureGlobs: c.FeatureGlobs,
		MaxFiles:     c.Scan.MaxFiles,
		MaxFileSize:  c.Scan.MaxFileSize,
		Gitignore:    c.Scan.RespectGitignore,
		Purpose:      c.Graph.PurposeLabels,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// EnsureStateDir ensures the directory holding the index exists.
func (c *Config) EnsureStateDir() error {
	return os.MkdirAll(filepath.Dir(c.IndexPath), 0755)
}
