package document

import (
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	oaserrors "github.com/jacoelho/openapi/errors"
)

var supportedExtensions = map[string]struct{}{
	".json": {},
	".yaml": {},
	".yml":  {},
}

// SupportedExtension reports whether the location names a decodable format.
func SupportedExtension(location string) bool {
	_, ok := supportedExtensions[strings.ToLower(path.Ext(location))]
	return ok
}

// Decode parses YAML or JSON document bytes into a generic tree. YAML is a
// superset of JSON, so a single decoder covers both formats.
func Decode(data []byte, id ID) (any, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, oaserrors.NewResolutionf(oaserrors.ErrInvalidSyntax, "", string(id),
			"decode document: %v", err)
	}
	return normalize(root), nil
}

// normalize rewrites yaml.v3 map keys to strings so pointer navigation and
// schema parsing see one map shape regardless of the source format.
func normalize(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for key, value := range v {
			v[key] = normalize(value)
		}
		return v
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			name, ok := key.(string)
			if !ok {
				continue
			}
			out[name] = normalize(value)
		}
		return out
	case []any:
		for i, value := range v {
			v[i] = normalize(value)
		}
		return v
	default:
		return v
	}
}
