package registry

import (
	"sort"
)

// Registries is the immutable output of a registry build: the exposed
// component specs and the runtime feature catalogue. Rebuilding means
// constructing a fresh value; nothing here mutates after Build returns.
type Registries struct {
	components map[string]*ComponentSpec
	features   map[string]RuntimeFeature
}

// Component looks up an exposed component spec by definition name.
func (r *Registries) Component(name string) (*ComponentSpec, bool) {
	spec, ok := r.components[name]
	return spec, ok
}

// Components returns all exposed specs sorted by name.
func (r *Registries) Components() []*ComponentSpec {
	out := make([]*ComponentSpec, 0, len(r.components))
	for _, spec := range r.components {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Feature looks up a runtime feature by definition name.
func (r *Registries) Feature(name string) (RuntimeFeature, bool) {
	f, ok := r.features[name]
	return f, ok
}

// Features returns all runtime features sorted by name.
func (r *Registries) Features() []RuntimeFeature {
	out := make([]RuntimeFeature, 0, len(r.features))
	for _, f := range r.features {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FeatureURIs resolves feature names to their engine-native URIs,
// skipping names the catalogue does not know.
func (r *Registries) FeatureURIs(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if f, ok := r.features[name]; ok {
			out = append(out, f.URI)
		}
	}
	return out
}
