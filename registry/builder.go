package registry

import (
	"go.uber.org/zap"

	"github.com/wippyai/component-host/component"
	"github.com/wippyai/component-host/compose"
	"github.com/wippyai/component-host/errors"
)

// Reflector discovers a binary's interface surface.
type Reflector func(data []byte, withFunctions bool) (*component.Reflection, error)

// Composer resolves a socket's imports with a plug's exports.
type Composer func(socketBytes, plugBytes []byte) ([]byte, error)

// ConfigSynthesizer builds a configuration-provider binary.
type ConfigSynthesizer func(values map[string]any) ([]byte, error)

// Builder constructs registries from flat definitions. The collaborators
// are plain function fields so tests can substitute them.
type Builder struct {
	Reflect    Reflector
	Plug       Composer
	Synthesize ConfigSynthesizer
}

// NewBuilder returns a builder wired to the real reflector and composer.
func NewBuilder() *Builder {
	return &Builder{
		Reflect:    component.Reflect,
		Plug:       compose.Plug,
		Synthesize: compose.SynthesizeConfig,
	}
}

// outcome classifies one processing attempt.
type outcome int

const (
	outcomeResolved outcome = iota
	outcomeDeferred
	outcomeFatal
)

// buildState is the mutable state of one registry build.
type buildState struct {
	features map[string]RuntimeFeature
	// enabling holds every resolved component with enables != none,
	// regardless of exposure; resolution looks dependencies up here.
	enabling map[string]*ComponentSpec
	// exposed is the final component registry content.
	exposed map[string]*ComponentSpec
	// resolved tracks every resolved definition name, so a dependency on
	// a scope-forbidden or non-enabling definition is recognized as
	// definitely unavailable rather than deferred forever.
	resolved map[string]bool
}

// Build consumes the definitions and runtime features and produces the
// immutable registries.
//
// Definitions are processed through a retry queue: a definition whose
// dependency is not yet present is pushed back and retried later. Total
// attempts are bounded by the square of the initial queue length, and a
// full pass of consecutive deferrals means no further progress is
// possible. At that point remaining exposed definitions are dropped with
// a warning while remaining unexposed ones abort the build, since they
// exist only to enable others.
func (b *Builder) Build(defs []Definition, features []RuntimeFeature) (*Registries, error) {
	st := &buildState{
		features: make(map[string]RuntimeFeature, len(features)),
		enabling: make(map[string]*ComponentSpec),
		exposed:  make(map[string]*ComponentSpec),
		resolved: make(map[string]bool),
	}

	seen := make(map[string]bool, len(defs)+len(features))
	for _, f := range features {
		if seen[f.Name] {
			return nil, errors.Duplicate(errors.PhaseResolve, "definition", f.Name)
		}
		seen[f.Name] = true
		st.features[f.Name] = f
	}
	for _, d := range defs {
		if seen[d.Name] {
			return nil, errors.Duplicate(errors.PhaseResolve, "definition", d.Name)
		}
		seen[d.Name] = true
	}

	pending := make([]Definition, len(defs))
	copy(pending, defs)

	lastReason := make(map[string]error, len(pending))
	maxAttempts := len(pending) * len(pending)
	attempts := 0
	consecutiveDeferrals := 0

	for len(pending) > 0 {
		if consecutiveDeferrals >= len(pending) || (attempts >= maxAttempts && maxAttempts > 0) {
			if err := b.settleStalled(st, pending, lastReason); err != nil {
				return nil, err
			}
			break
		}

		d := pending[0]
		pending = pending[1:]
		attempts++

		res, spec, err := b.process(st, d)
		switch res {
		case outcomeResolved:
			consecutiveDeferrals = 0
			st.resolved[d.Name] = true
			if spec.Enables != ScopeNone {
				st.enabling[d.Name] = spec
			}
			if spec.Exposed {
				st.exposed[d.Name] = spec
			}
			Logger().Info("resolved component",
				zap.String("name", d.Name),
				zap.Bool("exposed", spec.Exposed),
				zap.Strings("runtime_features", spec.RuntimeFeatures))

		case outcomeDeferred:
			consecutiveDeferrals++
			lastReason[d.Name] = err
			pending = append(pending, d)

		case outcomeFatal:
			if !d.Exposed {
				return nil, errors.NewBuildError([]errors.UnresolvedDefinition{
					{Name: d.Name, Reason: err},
				})
			}
			consecutiveDeferrals = 0
			Logger().Warn("skipping broken exposed definition",
				zap.String("name", d.Name),
				zap.Error(err))
		}
	}

	return &Registries{components: st.exposed, features: st.features}, nil
}

// settleStalled partitions definitions that made no progress: exposed
// ones degrade to a warning, unexposed ones fail the build together.
func (b *Builder) settleStalled(st *buildState, pending []Definition, lastReason map[string]error) error {
	var unresolved []errors.UnresolvedDefinition
	for _, d := range pending {
		reason := lastReason[d.Name]
		if reason == nil {
			reason = errors.New(errors.PhaseResolve, errors.KindUnresolvedDep).
				Detail("no progress after retry budget").
				Build()
		}
		if d.Exposed {
			Logger().Warn("dropping unresolvable exposed definition",
				zap.String("name", d.Name),
				zap.Error(reason))
			continue
		}
		unresolved = append(unresolved, errors.UnresolvedDefinition{Name: d.Name, Reason: reason})
	}
	if len(unresolved) > 0 {
		return errors.NewBuildError(unresolved)
	}
	return nil
}

// process attempts one definition. It reflects the binary, resolves the
// declared dependencies under scope rules, folds in configuration and
// dependency binaries, and validates the surviving import set against
// the accumulated runtime features.
func (b *Builder) process(st *buildState, d Definition) (outcome, *ComponentSpec, error) {
	refl, err := b.Reflect(d.Bytes, d.Exposed)
	if err != nil {
		return outcomeFatal, nil, err
	}

	req := RequesterAttrs{
		Namespace: refl.Metadata.Namespace,
		Package:   refl.Metadata.Package,
		Exposed:   d.Exposed,
	}

	var depSpecs []*ComponentSpec
	var featureNames []string
	for _, name := range d.Expects {
		if spec, ok := st.enabling[name]; ok {
			if !spec.Enables.Permits(req, DefinerAttrs{Namespace: spec.Namespace, Package: spec.Package}) {
				return outcomeFatal, nil, errors.New(errors.PhaseResolve, errors.KindUnresolvedDep).
					Component(d.Name).
					Detail("dependency %q is not visible to this component (scope %s)", name, spec.Enables).
					Build()
			}
			depSpecs = append(depSpecs, spec)
			continue
		}
		if f, ok := st.features[name]; ok {
			if !f.Enables.Permits(req, DefinerAttrs{}) {
				return outcomeFatal, nil, errors.New(errors.PhaseResolve, errors.KindUnresolvedDep).
					Component(d.Name).
					Detail("runtime feature %q is not visible to this component (scope %s)", name, f.Enables).
					Build()
			}
			featureNames = append(featureNames, name)
			continue
		}
		if st.resolved[name] {
			// The dependency was built but never registered as enabling,
			// so it can never serve anyone.
			return outcomeFatal, nil, errors.New(errors.PhaseResolve, errors.KindUnresolvedDep).
				Component(d.Name).
				Detail("dependency %q does not enable other components", name).
				Build()
		}
		return outcomeDeferred, nil, errors.New(errors.PhaseResolve, errors.KindUnresolvedDep).
			Component(d.Name).
			Detail("dependency %q is not available yet", name).
			Build()
	}

	bytes := d.Bytes
	pendingImports := make(map[string]bool, len(refl.Imports))
	for _, imp := range refl.Imports {
		pendingImports[imp] = true
	}

	if d.Config != nil {
		if pendingImports[compose.ConfigInterface] {
			provider, err := b.Synthesize(d.Config)
			if err != nil {
				return outcomeFatal, nil, err
			}
			bytes, err = b.Plug(bytes, provider)
			if err != nil {
				return outcomeFatal, nil, err
			}
			delete(pendingImports, compose.ConfigInterface)
		} else {
			Logger().Warn("configuration declared but component imports no configuration store",
				zap.String("name", d.Name))
		}
	}

	for _, dep := range depSpecs {
		bytes, err = b.Plug(bytes, dep.Bytes)
		if err != nil {
			return outcomeFatal, nil, err
		}
		for _, exp := range dep.Exports {
			delete(pendingImports, exp)
		}
		featureNames = append(featureNames, dep.RuntimeFeatures...)
	}
	featureNames = dedupe(featureNames)

	covered := make(map[string]bool)
	for _, fname := range featureNames {
		if f, ok := st.features[fname]; ok {
			for _, iface := range f.Interfaces {
				covered[iface] = true
			}
		}
	}
	for imp := range pendingImports {
		if !covered[imp] {
			return outcomeFatal, nil, errors.CapabilityViolation(d.Name, imp)
		}
	}

	imports := make([]string, 0, len(pendingImports))
	for _, imp := range refl.Imports {
		if pendingImports[imp] {
			imports = append(imports, imp)
		}
	}

	spec := &ComponentSpec{
		Name:            d.Name,
		Namespace:       refl.Metadata.Namespace,
		Package:         refl.Metadata.Package,
		Bytes:           bytes,
		Imports:         imports,
		Exports:         refl.Exports,
		RuntimeFeatures: featureNames,
		Functions:       refl.Functions,
		Enables:         d.Enables,
		Exposed:         d.Exposed,
	}
	return outcomeResolved, spec, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
