package registry

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/wippyai/component-host/component"
	"github.com/wippyai/component-host/compose"
	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/schema"
)

// fakeWorld describes what the stub reflector reports for one binary.
type fakeWorld struct {
	imports []string
	exports []string
	meta    component.Metadata
}

// testBuilder wires a Builder against in-memory worlds keyed by the
// binary content. Plugging returns the socket unchanged; the builder's
// own set arithmetic tracks import removal.
func testBuilder(t *testing.T, worlds map[string]fakeWorld) (*Builder, *[]string) {
	t.Helper()
	var plugged []string

	b := &Builder{
		Reflect: func(data []byte, withFunctions bool) (*component.Reflection, error) {
			w, ok := worlds[string(data)]
			if !ok {
				return nil, errors.MalformedInput(errors.PhaseReflect, "unknown binary "+string(data))
			}
			r := &component.Reflection{
				Metadata: w.meta,
				Imports:  w.imports,
				Exports:  w.exports,
			}
			if withFunctions {
				r.Functions = map[string]schema.Function{}
				for _, exp := range w.exports {
					r.Functions[exp+"#run"] = schema.Function{Name: "run"}
				}
			}
			return r, nil
		},
		Plug: func(socket, plug []byte) ([]byte, error) {
			plugged = append(plugged, string(plug))
			return socket, nil
		},
		Synthesize: func(values map[string]any) ([]byte, error) {
			return []byte("provider"), nil
		},
	}
	return b, &plugged
}

func httpFeature(scope VisibilityScope) RuntimeFeature {
	ifaces, _ := FeatureInterfaces("wazero:http")
	return RuntimeFeature{Name: "http", URI: "wazero:http", Enables: scope, Interfaces: ifaces}
}

func TestBuildSingleComponent(t *testing.T) {
	b, _ := testBuilder(t, map[string]fakeWorld{
		"calc": {
			imports: []string{"wasi:http/outgoing-handler@0.2.0"},
			exports: []string{"docs:calc/ops@1.0.0"},
			meta:    component.Metadata{Namespace: "docs", Package: "calc"},
		},
	})

	regs, err := b.Build([]Definition{{
		Name:    "calc",
		Expects: []string{"http"},
		Exposed: true,
		Bytes:   []byte("calc"),
	}}, []RuntimeFeature{httpFeature(ScopeAny)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	spec, ok := regs.Component("calc")
	if !ok {
		t.Fatal("calc missing from registry")
	}
	if !reflect.DeepEqual(spec.RuntimeFeatures, []string{"http"}) {
		t.Errorf("runtime features = %v", spec.RuntimeFeatures)
	}
	if !reflect.DeepEqual(spec.Imports, []string{"wasi:http/outgoing-handler@0.2.0"}) {
		t.Errorf("imports = %v", spec.Imports)
	}
	if len(spec.Functions) == 0 {
		t.Error("exposed spec has no functions")
	}
	if _, ok := regs.Feature("http"); !ok {
		t.Error("http feature missing from registry")
	}
}

func TestBuildRetriesOutOfOrderDependency(t *testing.T) {
	worlds := map[string]fakeWorld{
		"app": {
			imports: []string{"docs:lib/api@1.0.0"},
			exports: []string{"docs:app/main@1.0.0"},
			meta:    component.Metadata{Namespace: "docs", Package: "app"},
		},
		"lib": {
			exports: []string{"docs:lib/api@1.0.0"},
			meta:    component.Metadata{Namespace: "docs", Package: "lib"},
		},
	}
	b, plugged := testBuilder(t, worlds)

	// app precedes its dependency, forcing one deferral round.
	regs, err := b.Build([]Definition{
		{Name: "app", Expects: []string{"lib"}, Exposed: true, Bytes: []byte("app")},
		{Name: "lib", Enables: ScopeAny, Bytes: []byte("lib")},
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	spec, ok := regs.Component("app")
	if !ok {
		t.Fatal("app missing from registry")
	}
	if len(spec.Imports) != 0 {
		t.Errorf("imports = %v, dependency export must be consumed", spec.Imports)
	}
	if !reflect.DeepEqual(*plugged, []string{"lib"}) {
		t.Errorf("plugged = %v, want the dependency binary", *plugged)
	}
	if _, ok := regs.Component("lib"); ok {
		t.Error("unexposed dependency leaked into the component registry")
	}
}

func TestBuildScopeEnforcement(t *testing.T) {
	tests := []struct {
		name      string
		depScope  VisibilityScope
		reqExp    bool
		wantBuilt bool
		wantAbort bool
	}{
		{"exposed scope serves exposed", ScopeExposed, true, true, false},
		{"exposed scope blocks unexposed", ScopeExposed, false, false, true},
		{"unexposed scope serves unexposed", ScopeUnexposed, false, true, false},
		{"unexposed scope blocks exposed", ScopeUnexposed, true, false, false},
		{"any serves exposed", ScopeAny, true, true, false},
		{"any serves unexposed", ScopeAny, false, true, false},
		{"none blocks everyone", ScopeNone, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			worlds := map[string]fakeWorld{
				"app": {
					imports: []string{"docs:lib/api@1.0.0"},
					meta:    component.Metadata{Namespace: "docs", Package: "app"},
				},
				"lib": {
					exports: []string{"docs:lib/api@1.0.0"},
					meta:    component.Metadata{Namespace: "docs", Package: "lib"},
				},
			}
			b, _ := testBuilder(t, worlds)

			// The requester carries enables != none so an abort is
			// always on the unexposed path when the scope blocks it.
			reqEnables := ScopeNone
			if !tt.reqExp {
				reqEnables = ScopeAny
			}
			regs, err := b.Build([]Definition{
				{Name: "lib", Enables: tt.depScope, Bytes: []byte("lib")},
				{Name: "app", Expects: []string{"lib"}, Exposed: tt.reqExp, Enables: reqEnables, Bytes: []byte("app")},
			}, nil)

			if tt.wantAbort {
				var be *errors.BuildError
				if !stderrors.As(err, &be) {
					t.Fatalf("err = %v, want build abort", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			_, built := regs.Component("app")
			if tt.reqExp && built != tt.wantBuilt {
				t.Errorf("app built = %v, want %v", built, tt.wantBuilt)
			}
		})
	}
}

func TestBuildPartialFailureAsymmetry(t *testing.T) {
	worlds := map[string]fakeWorld{
		"good":   {exports: []string{"docs:good/api@1.0.0"}},
		"broken": {imports: []string{"other:x/y@1.0.0"}},
	}

	// An exposed definition with an unsatisfiable dependency is skipped
	// and the rest of the build succeeds.
	b, _ := testBuilder(t, worlds)
	regs, err := b.Build([]Definition{
		{Name: "good", Exposed: true, Bytes: []byte("good")},
		{Name: "broken", Exposed: true, Expects: []string{"missing"}, Bytes: []byte("broken")},
	}, nil)
	if err != nil {
		t.Fatalf("Build with broken exposed: %v", err)
	}
	if _, ok := regs.Component("good"); !ok {
		t.Error("good missing from registry")
	}
	if _, ok := regs.Component("broken"); ok {
		t.Error("broken definition leaked into registry")
	}

	// The same failure on an unexposed definition aborts the whole
	// build, naming the unexposed definition.
	b, _ = testBuilder(t, worlds)
	_, err = b.Build([]Definition{
		{Name: "good", Exposed: true, Bytes: []byte("good")},
		{Name: "broken", Expects: []string{"missing"}, Bytes: []byte("broken")},
	}, nil)
	var be *errors.BuildError
	if !stderrors.As(err, &be) {
		t.Fatalf("err = %v, want aggregated build error", err)
	}
	if len(be.Unresolved) != 1 || be.Unresolved[0].Name != "broken" {
		t.Errorf("unresolved = %+v", be.Unresolved)
	}
}

func TestBuildDependencyCycleAborts(t *testing.T) {
	worlds := map[string]fakeWorld{
		"a": {exports: []string{"docs:a/api@1.0.0"}},
		"b": {exports: []string{"docs:b/api@1.0.0"}},
	}
	b, _ := testBuilder(t, worlds)

	_, err := b.Build([]Definition{
		{Name: "a", Enables: ScopeAny, Expects: []string{"b"}, Bytes: []byte("a")},
		{Name: "b", Enables: ScopeAny, Expects: []string{"a"}, Bytes: []byte("b")},
	}, nil)

	var be *errors.BuildError
	if !stderrors.As(err, &be) {
		t.Fatalf("err = %v, want aggregated build error for a cycle", err)
	}
	if len(be.Unresolved) != 2 {
		t.Errorf("unresolved = %+v, want both cycle members", be.Unresolved)
	}
}

func TestBuildConfigComposition(t *testing.T) {
	worlds := map[string]fakeWorld{
		"app": {
			imports: []string{compose.ConfigInterface},
			exports: []string{"docs:app/main@1.0.0"},
		},
	}
	b, plugged := testBuilder(t, worlds)

	regs, err := b.Build([]Definition{{
		Name:    "app",
		Exposed: true,
		Config:  map[string]any{"mode": "fast"},
		Bytes:   []byte("app"),
	}}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	spec, _ := regs.Component("app")
	if len(spec.Imports) != 0 {
		t.Errorf("imports = %v, config import must be stripped", spec.Imports)
	}
	if !reflect.DeepEqual(*plugged, []string{"provider"}) {
		t.Errorf("plugged = %v, want the synthesized provider", *plugged)
	}
}

func TestBuildConfigWithoutImportIsWarning(t *testing.T) {
	worlds := map[string]fakeWorld{
		"app": {exports: []string{"docs:app/main@1.0.0"}},
	}
	b, plugged := testBuilder(t, worlds)

	regs, err := b.Build([]Definition{{
		Name:    "app",
		Exposed: true,
		Config:  map[string]any{"unused": "x"},
		Bytes:   []byte("app"),
	}}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := regs.Component("app"); !ok {
		t.Error("app missing, unused config must not be fatal")
	}
	if len(*plugged) != 0 {
		t.Errorf("plugged = %v, nothing should be composed", *plugged)
	}
}

func TestBuildUncoveredImportFails(t *testing.T) {
	worlds := map[string]fakeWorld{
		"app": {imports: []string{"wasi:sockets/tcp@0.2.0"}},
	}

	// Exposed: dropped with a warning.
	b, _ := testBuilder(t, worlds)
	regs, err := b.Build([]Definition{
		{Name: "app", Exposed: true, Expects: []string{"http"}, Bytes: []byte("app")},
	}, []RuntimeFeature{httpFeature(ScopeAny)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := regs.Component("app"); ok {
		t.Error("spec with uncovered import was stored")
	}

	// Unexposed: fatal to the build.
	b, _ = testBuilder(t, worlds)
	_, err = b.Build([]Definition{
		{Name: "app", Enables: ScopeAny, Expects: []string{"http"}, Bytes: []byte("app")},
	}, []RuntimeFeature{httpFeature(ScopeAny)})
	var be *errors.BuildError
	if !stderrors.As(err, &be) {
		t.Fatalf("err = %v, want build abort", err)
	}
	if !errors.IsKind(be.Unresolved[0].Reason, errors.KindCapabilityViolation) {
		t.Errorf("reason = %v, want capability violation", be.Unresolved[0].Reason)
	}
}

func TestBuildTransitiveFeatureAccumulation(t *testing.T) {
	worlds := map[string]fakeWorld{
		"lib": {
			imports: []string{"wasi:http/outgoing-handler@0.2.0"},
			exports: []string{"docs:lib/api@1.0.0"},
		},
		"app": {
			imports: []string{"docs:lib/api@1.0.0"},
			exports: []string{"docs:app/main@1.0.0"},
		},
	}
	b, _ := testBuilder(t, worlds)

	regs, err := b.Build([]Definition{
		{Name: "lib", Enables: ScopeAny, Expects: []string{"http"}, Bytes: []byte("lib")},
		{Name: "app", Exposed: true, Expects: []string{"lib"}, Bytes: []byte("app")},
	}, []RuntimeFeature{httpFeature(ScopeAny)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	spec, _ := regs.Component("app")
	if !reflect.DeepEqual(spec.RuntimeFeatures, []string{"http"}) {
		t.Errorf("runtime features = %v, want the dependency's feature inherited", spec.RuntimeFeatures)
	}
}

func TestBuildDuplicateNames(t *testing.T) {
	b, _ := testBuilder(t, map[string]fakeWorld{"x": {}})

	_, err := b.Build([]Definition{
		{Name: "x", Bytes: []byte("x")},
		{Name: "x", Bytes: []byte("x")},
	}, nil)
	if !errors.IsKind(err, errors.KindDuplicate) {
		t.Errorf("err = %v, want duplicate", err)
	}

	_, err = b.Build([]Definition{{Name: "http", Bytes: []byte("x")}},
		[]RuntimeFeature{httpFeature(ScopeAny)})
	if !errors.IsKind(err, errors.KindDuplicate) {
		t.Errorf("feature/definition collision: err = %v, want duplicate", err)
	}
}

func TestBuildMalformedBinary(t *testing.T) {
	b, _ := testBuilder(t, map[string]fakeWorld{})

	// Exposed: skipped.
	regs, err := b.Build([]Definition{{Name: "junk", Exposed: true, Bytes: []byte("junk")}}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(regs.Components()) != 0 {
		t.Error("malformed exposed definition was stored")
	}

	// Unexposed: fatal.
	_, err = b.Build([]Definition{{Name: "junk", Bytes: []byte("junk")}}, nil)
	var be *errors.BuildError
	if !stderrors.As(err, &be) {
		t.Fatalf("err = %v, want build abort", err)
	}
}
