package discovery

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
)

var (
	npmScope    = regexp.MustCompile(`^@[^/]+/`)
	unsafeIDRun = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)
)

type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// ManifestName returns the project name declared by the first manifest found
// in dir, or "" when none declares one. Unparseable manifests are ignored.
func ManifestName(dir string) string {
	for _, lookup := range []func(string) string{
		packageJSONName,
		pyprojectName,
		cargoName,
		goModName,
	} {
		if name := strings.TrimSpace(lookup(dir)); name != "" {
			return name
		}
	}
	return ""
}

func packageJSONName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return npmScope.ReplaceAllString(pkg.Name, "")
}

func pyprojectName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return ""
	}
	var py pyproject
	if err := toml.Unmarshal(data, &py); err != nil {
		return ""
	}
	if py.Project.Name != "" {
		return py.Project.Name
	}
	return py.Tool.Poetry.Name
}

func cargoName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return ""
	}
	var cargo cargoManifest
	if err := toml.Unmarshal(data, &cargo); err != nil {
		return ""
	}
	return cargo.Package.Name
}

func goModName(dir string) string {
	p := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(p)
	if err != nil {
		return ""
	}
	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return ""
	}
	// Major version suffixes (/v2) are not names.
	name := path.Base(modPath)
	if len(name) > 1 && name[0] == 'v' && strings.Trim(name[1:], "0123456789") == "" {
		name = path.Base(path.Dir(modPath))
	}
	return name
}

// SanitizeID maps a repository name to its identifier charset.
func SanitizeID(name string) string {
	return unsafeIDRun.ReplaceAllString(strings.TrimSpace(name), "_")
}
