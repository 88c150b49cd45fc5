package extractor

import (
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"repomesh/internal/domain"
	"repomesh/internal/port"
)

var openAPIExts = []string{".json", ".yaml", ".yml"}

// OpenAPIRule reads the paths object of OpenAPI 3 and Swagger 2 documents,
// JSON or YAML. Each operation is reported at the line of its path key.
// Documents that fail to parse are treated as non-matching.
type OpenAPIRule struct{}

func (OpenAPIRule) Name() string { return "openapi" }

func (OpenAPIRule) FindEndpoints(f port.SourceFile) []EndpointHit {
	if !appliesTo(openAPIExts, f.RelFile) || !strings.Contains(f.Content, "paths") {
		return nil
	}

	content := f.Content
	if strings.EqualFold(path.Ext(f.RelFile), ".json") {
		// Raw tabs in JSON are always insignificant whitespace; YAML rejects
		// some of them.
		content = strings.ReplaceAll(content, "\t", " ")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	if mappingValue(root, "openapi") == nil && mappingValue(root, "swagger") == nil {
		return nil
	}
	paths := mappingValue(root, "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return nil
	}

	basePath := ""
	if bp := mappingValue(root, "basePath"); bp != nil && bp.Kind == yaml.ScalarNode {
		basePath = bp.Value
	}

	var out []EndpointHit
	for i := 0; i+1 < len(paths.Content); i += 2 {
		key, ops := paths.Content[i], paths.Content[i+1]
		if ops.Kind != yaml.MappingNode {
			continue
		}
		p := joinPath(basePath, key.Value)
		for j := 0; j+1 < len(ops.Content); j += 2 {
			method, ok := toMethod(ops.Content[j].Value)
			if !ok || method == domain.MethodAll {
				continue
			}
			out = append(out, EndpointHit{
				Line:       key.Line,
				Methods:    []string{method},
				Path:       p,
				Framework:  "openapi",
				SourceType: domain.SourceOpenAPI,
			})
		}
	}
	return out
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
