package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.AutoDiscovery.MaxDepth != 3 {
		t.Errorf("expected MaxDepth=3, got %d", cfg.AutoDiscovery.MaxDepth)
	}
	if cfg.AutoDiscovery.MinConfidence != 25 {
		t.Errorf("expected MinConfidence=25, got %f", cfg.AutoDiscovery.MinConfidence)
	}
	if cfg.AutoDiscovery.HighConfidence != 70 {
		t.Errorf("expected HighConfidence=70, got %f", cfg.AutoDiscovery.HighConfidence)
	}
	if cfg.Scan.Workers != 4 {
		t.Errorf("expected Workers=4, got %d", cfg.Scan.Workers)
	}
	if cfg.Graph.Format != "mermaid" {
		t.Errorf("expected Format=mermaid, got %s", cfg.Graph.Format)
	}
	if len(cfg.IncludeFileExtensions) == 0 {
		t.Error("expected default include extensions")
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/repomesh.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "/nonexistent/path" {
		t.Errorf("expected roots to default to config dir, got %v", cfg.Roots)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "repomesh.yaml")

	content := `
repos:
  - name: users
    path: services/users
  - name: orders
    path: /abs/orders
url_bases:
  - base_url: http://users:3001
    repo: users
  - name: ORDERS_URL
    base_url: http://orders:3002
    repo: orders
scan:
  workers: 2
index_path: out/index.json
graph:
  purpose_labels: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Repos) != 2 {
		t.Fatalf("expected 2 repos, got %d", len(cfg.Repos))
	}
	if cfg.Repos[0].Path != filepath.Join(tmpDir, "services", "users") {
		t.Errorf("expected relative repo path resolved, got %s", cfg.Repos[0].Path)
	}
	if cfg.Repos[1].Path != "/abs/orders" {
		t.Errorf("expected absolute repo path untouched, got %s", cfg.Repos[1].Path)
	}
	if len(cfg.Roots) != 0 {
		t.Errorf("expected no default roots when repos are explicit, got %v", cfg.Roots)
	}
	if cfg.URLBases[1].Name != "ORDERS_URL" {
		t.Errorf("expected url base name ORDERS_URL, got %s", cfg.URLBases[1].Name)
	}
	if cfg.Scan.Workers != 2 {
		t.Errorf("expected Workers=2, got %d", cfg.Scan.Workers)
	}
	if cfg.IndexPath != filepath.Join(tmpDir, "out", "index.json") {
		t.Errorf("unexpected index path %s", cfg.IndexPath)
	}
	if !cfg.Graph.PurposeLabels {
		t.Error("expected purpose labels enabled")
	}
	// Unset sections keep their defaults.
	if cfg.AutoDiscovery.MaxDepth != 3 {
		t.Errorf("expected default MaxDepth=3, got %d", cfg.AutoDiscovery.MaxDepth)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "repomesh.yaml")
	if err := os.WriteFile(configPath, []byte("repos: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".repomesh"), 0755); err != nil {
		t.Fatal(err)
	}
	content := `
roots:
  - workspace
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".repomesh", "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Roots) != 1 || cfg.Roots[0] != filepath.Join(tmpDir, "workspace") {
		t.Errorf("expected root resolved against workspace dir, got %v", cfg.Roots)
	}
	if cfg.IndexPath != filepath.Join(tmpDir, ".repomesh", "index.json") {
		t.Errorf("unexpected index path %s", cfg.IndexPath)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrNoRepositories) {
		t.Errorf("expected ErrNoRepositories, got %v", err)
	}

	cfg.Resolve(t.TempDir())
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected resolved defaults to validate, got %v", err)
	}

	cfg.URLBases = []URLBaseConfig{{Repo: "users"}}
	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "url_bases[0].base_url" {
		t.Errorf("unexpected field %s", verr.Field)
	}

	cfg.URLBases = nil
	cfg.Graph.Format = "png"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported graph format")
	}
}

func TestHash_StableAndSensitive(t *testing.T) {
	a := DefaultConfig()
	a.Resolve("/ws")
	b := DefaultConfig()
	b.Resolve("/ws")

	if a.Hash() != b.Hash() {
		t.Error("expected identical configs to hash equally")
	}

	b.URLBases = []URLBaseConfig{{BaseURL: "http://svc:3001"}}
	if a.Hash() == b.Hash() {
		t.Error("expected url base change to alter the hash")
	}

	c := DefaultConfig()
	c.Resolve("/ws")
	c.Logging.Level = "debug"
	if a.Hash() != c.Hash() {
		t.Error("expected logging level not to affect the hash")
	}
}
