package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/registry"
)

const (
	schemeFile   = "file:"
	schemeOCI    = "oci:"
	schemeWazero = "wazero:"
)

// Loader resolves definition files into flat definitions and runtime
// features. The zero value is usable; oci: URIs then fail at load time.
type Loader struct {
	// Fetch retrieves the binary behind an oci: URI. Nil leaves the
	// scheme recognized but unavailable.
	Fetch func(uri string) ([]byte, error)
}

type tomlFile struct {
	Components []tomlComponent `toml:"component"`
}

type tomlComponent struct {
	Name    string         `toml:"name"`
	URI     string         `toml:"uri"`
	Enables string         `toml:"enables"`
	Expects []string       `toml:"expects"`
	Exposed bool           `toml:"exposed"`
	Config  map[string]any `toml:"config"`
}

// Load reads a TOML definition file. Relative file: URIs resolve
// against the file's directory.
func (l *Loader) Load(path string) ([]registry.Definition, []registry.RuntimeFeature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read definitions")
	}
	return l.Parse(data, filepath.Dir(path))
}

// Parse decodes TOML definition data. baseDir anchors relative paths.
func (l *Loader) Parse(data []byte, baseDir string) ([]registry.Definition, []registry.RuntimeFeature, error) {
	var f tomlFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, nil, errors.Wrap(errors.PhaseLoad, errors.KindMalformedInput, err, "parse definitions")
	}

	seen := make(map[string]bool, len(f.Components))
	var defs []registry.Definition
	var features []registry.RuntimeFeature

	for _, c := range f.Components {
		if c.Name == "" {
			return nil, nil, errors.InvalidData(errors.PhaseLoad, nil, "component definition without a name")
		}
		if seen[c.Name] {
			return nil, nil, errors.Duplicate(errors.PhaseLoad, "definition", c.Name)
		}
		seen[c.Name] = true

		scope, err := registry.ParseScope(c.Enables)
		if err != nil {
			return nil, nil, err
		}

		if strings.HasPrefix(c.URI, schemeWazero) {
			feature, err := runtimeFeature(c, scope)
			if err != nil {
				return nil, nil, err
			}
			features = append(features, feature)
			continue
		}

		bytes, err := l.loadBytes(c.URI, baseDir)
		if err != nil {
			return nil, nil, err
		}
		defs = append(defs, registry.Definition{
			Name:    c.Name,
			URI:     c.URI,
			Enables: scope,
			Expects: c.Expects,
			Exposed: c.Exposed,
			Config:  c.Config,
			Bytes:   bytes,
		})
	}

	Logger().Info("definitions loaded",
		zap.Int("components", len(defs)),
		zap.Int("features", len(features)))

	return defs, features, nil
}

// ImplicitDefinition wraps a bare component binary path in an exposed
// definition named after the file stem.
func (l *Loader) ImplicitDefinition(path string) (registry.Definition, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return registry.Definition{}, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read component")
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return registry.Definition{
		Name:    stem,
		URI:     path,
		Enables: registry.ScopeNone,
		Exposed: true,
		Bytes:   bytes,
	}, nil
}

// runtimeFeature validates a wazero: definition. Engine capabilities
// have no binary and no package identity, so scoped visibility and
// configuration are both definition errors.
func runtimeFeature(c tomlComponent, scope registry.VisibilityScope) (registry.RuntimeFeature, error) {
	if scope == registry.ScopePackage || scope == registry.ScopeNamespace {
		return registry.RuntimeFeature{}, errors.InvalidScope(c.Name,
			"engine capabilities have no package identity, scope "+scope.String()+" cannot apply")
	}
	if c.Config != nil {
		return registry.RuntimeFeature{}, errors.InvalidData(errors.PhaseLoad, nil,
			"engine capability "+c.Name+" cannot declare configuration")
	}
	if len(c.Expects) > 0 {
		return registry.RuntimeFeature{}, errors.InvalidData(errors.PhaseLoad, nil,
			"engine capability "+c.Name+" cannot declare expectations")
	}
	ifaces, ok := registry.FeatureInterfaces(c.URI)
	if !ok {
		return registry.RuntimeFeature{}, errors.NotFound(errors.PhaseLoad, "engine capability", c.URI)
	}
	return registry.RuntimeFeature{
		Name:       c.Name,
		URI:        c.URI,
		Enables:    scope,
		Interfaces: ifaces,
	}, nil
}

func (l *Loader) loadBytes(uri, baseDir string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, schemeOCI):
		if l.Fetch == nil {
			return nil, errors.Unsupported(errors.PhaseLoad, "oci fetch is not configured for "+uri)
		}
		bytes, err := l.Fetch(uri)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "fetch "+uri)
		}
		return bytes, nil

	case strings.HasPrefix(uri, schemeFile):
		return readRelative(strings.TrimPrefix(uri, schemeFile), baseDir)

	case uri == "":
		return nil, errors.InvalidData(errors.PhaseLoad, nil, "component definition without a uri")

	default:
		return readRelative(uri, baseDir)
	}
}

func readRelative(path, baseDir string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindNotFound, err, "read component")
	}
	return bytes, nil
}
