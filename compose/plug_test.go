package compose

import (
	"reflect"
	"testing"

	"github.com/wippyai/component-host/component"
	"github.com/wippyai/component-host/errors"
)

const httpInterface = "wasi:http/outgoing-handler@0.2.0"

// socketFixture imports the configuration store plus an HTTP interface
// and exports one interface of its own.
func socketFixture(t *testing.T) []byte {
	t.Helper()
	e := component.NewEncoder()
	e.EmptyInstanceType()
	e.ImportInstance(ConfigInterface, 0)
	e.ImportInstance(httpInterface, 0)
	e.InlineInstance(nil)
	e.Export("docs:calc/ops@1.0.0", component.SortInstance, 2)
	return e.Bytes()
}

func TestPlugRemovesSatisfiedImport(t *testing.T) {
	provider, err := SynthesizeConfig(map[string]any{"mode": "fast"})
	if err != nil {
		t.Fatalf("SynthesizeConfig: %v", err)
	}

	out, err := Plug(socketFixture(t), provider)
	if err != nil {
		t.Fatalf("Plug: %v", err)
	}

	r, err := component.Reflect(out, false)
	if err != nil {
		t.Fatalf("Reflect composed output: %v", err)
	}
	if !reflect.DeepEqual(r.Imports, []string{httpInterface}) {
		t.Errorf("imports = %v, want only %q", r.Imports, httpInterface)
	}
	if !reflect.DeepEqual(r.Exports, []string{"docs:calc/ops@1.0.0"}) {
		t.Errorf("exports = %v", r.Exports)
	}

	table, err := ConfigTable(out)
	if err != nil {
		t.Fatalf("ConfigTable: %v", err)
	}
	if table["mode"] != "fast" {
		t.Errorf("configuration lost through composition: %v", table)
	}
}

func TestPlugEmptyConfigOnlyRemovesConfigImport(t *testing.T) {
	provider, err := SynthesizeConfig(nil)
	if err != nil {
		t.Fatalf("SynthesizeConfig(empty): %v", err)
	}

	before, err := component.Reflect(socketFixture(t), false)
	if err != nil {
		t.Fatalf("Reflect socket: %v", err)
	}

	out, err := Plug(socketFixture(t), provider)
	if err != nil {
		t.Fatalf("Plug with empty configuration: %v", err)
	}
	after, err := component.Reflect(out, false)
	if err != nil {
		t.Fatalf("Reflect composed output: %v", err)
	}

	want := make([]string, 0, len(before.Imports))
	for _, imp := range before.Imports {
		if imp != ConfigInterface {
			want = append(want, imp)
		}
	}
	if !reflect.DeepEqual(after.Imports, want) {
		t.Errorf("imports = %v, want %v", after.Imports, want)
	}
	if !reflect.DeepEqual(after.Exports, before.Exports) {
		t.Errorf("exports changed: %v -> %v", before.Exports, after.Exports)
	}
}

func TestPlugNoMatchFails(t *testing.T) {
	e := component.NewEncoder()
	e.InlineInstance(nil)
	e.Export("other:pkg/unrelated@1.0.0", component.SortInstance, 0)

	_, err := Plug(socketFixture(t), e.Bytes())
	if !errors.IsKind(err, errors.KindMalformedInput) {
		t.Errorf("err = %v, want malformed input when nothing matches", err)
	}
}

func TestPlugSortMismatchFails(t *testing.T) {
	e := component.NewEncoder()
	e.Export(ConfigInterface, component.SortFunc, 0)

	_, err := Plug(socketFixture(t), e.Bytes())
	if !errors.IsKind(err, errors.KindTypeMismatch) {
		t.Errorf("err = %v, want type mismatch for shape disagreement", err)
	}
}

func TestPlugRejectsMalformedInputs(t *testing.T) {
	garbage := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	if _, err := Plug(garbage, socketFixture(t)); !errors.IsKind(err, errors.KindMalformedInput) {
		t.Errorf("bad socket: err = %v", err)
	}
	if _, err := Plug(socketFixture(t), garbage); !errors.IsKind(err, errors.KindMalformedInput) {
		t.Errorf("bad plug: err = %v", err)
	}
}

func TestPlugChainsTransitively(t *testing.T) {
	// middle imports config, exports an interface; top imports that
	// interface. Plugging bottom-up must leave only the HTTP import.
	provider, err := SynthesizeConfig(map[string]any{"retries": 3})
	if err != nil {
		t.Fatalf("SynthesizeConfig: %v", err)
	}

	middle := component.NewEncoder()
	middle.EmptyInstanceType()
	middle.ImportInstance(ConfigInterface, 0)
	middle.InlineInstance(nil)
	middle.Export("docs:store/kv@1.0.0", component.SortInstance, 1)

	top := component.NewEncoder()
	top.EmptyInstanceType()
	top.ImportInstance("docs:store/kv@1.0.0", 0)
	top.ImportInstance(httpInterface, 0)
	top.InlineInstance(nil)
	top.Export("docs:app/api@1.0.0", component.SortInstance, 2)

	middleOut, err := Plug(middle.Bytes(), provider)
	if err != nil {
		t.Fatalf("Plug middle: %v", err)
	}
	topOut, err := Plug(top.Bytes(), middleOut)
	if err != nil {
		t.Fatalf("Plug top: %v", err)
	}

	r, err := component.Reflect(topOut, false)
	if err != nil {
		t.Fatalf("Reflect: %v", err)
	}
	if !reflect.DeepEqual(r.Imports, []string{httpInterface}) {
		t.Errorf("imports = %v", r.Imports)
	}
	if !reflect.DeepEqual(r.Exports, []string{"docs:app/api@1.0.0"}) {
		t.Errorf("exports = %v", r.Exports)
	}

	table, err := ConfigTable(topOut)
	if err != nil {
		t.Fatalf("ConfigTable: %v", err)
	}
	if table["retries"] != "3" {
		t.Errorf("configuration lost through two levels of composition: %v", table)
	}
}
