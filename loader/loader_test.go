package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/registry"
)

var componentPreamble = []byte{0x00, 0x61, 0x73, 0x6D, 0x0D, 0x00, 0x01, 0x00}

func writeComponent(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, componentPreamble, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestParseDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "calc.wasm")

	data := []byte(`
[[component]]
name = "calc"
uri = "file:calc.wasm"
enables = "namespace"
expects = ["http"]
exposed = true
[component.config]
endpoint = "https://example.com"
retries = 3

[[component]]
name = "http"
uri = "wazero:http"
enables = "any"
`)

	var l Loader
	defs, features, err := l.Parse(data, dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(defs) != 1 {
		t.Fatalf("definitions = %d, want 1", len(defs))
	}
	d := defs[0]
	if d.Name != "calc" || !d.Exposed || d.Enables != registry.ScopeNamespace {
		t.Errorf("definition = %+v", d)
	}
	if !reflect.DeepEqual(d.Expects, []string{"http"}) {
		t.Errorf("expects = %v", d.Expects)
	}
	if d.Config["endpoint"] != "https://example.com" || d.Config["retries"] != int64(3) {
		t.Errorf("config = %v", d.Config)
	}
	if len(d.Bytes) == 0 {
		t.Error("binary not loaded")
	}

	if len(features) != 1 {
		t.Fatalf("features = %d, want 1", len(features))
	}
	f := features[0]
	if f.Name != "http" || f.URI != "wazero:http" || f.Enables != registry.ScopeAny {
		t.Errorf("feature = %+v", f)
	}
	if len(f.Interfaces) == 0 {
		t.Error("feature carries no interfaces")
	}
}

func TestParseDefaultScopeIsNone(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "calc.wasm")

	var l Loader
	defs, _, err := l.Parse([]byte("[[component]]\nname = \"calc\"\nuri = \"calc.wasm\"\n"), dir)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if defs[0].Enables != registry.ScopeNone {
		t.Errorf("enables = %v, want none", defs[0].Enables)
	}
	if defs[0].Config != nil {
		t.Error("undeclared configuration must stay nil")
	}
}

func TestParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "calc.wasm")

	tests := []struct {
		name string
		data string
		kind errors.Kind
	}{
		{
			"duplicate names",
			"[[component]]\nname = \"a\"\nuri = \"calc.wasm\"\n[[component]]\nname = \"a\"\nuri = \"calc.wasm\"\n",
			errors.KindDuplicate,
		},
		{
			"missing name",
			"[[component]]\nuri = \"calc.wasm\"\n",
			errors.KindInvalidData,
		},
		{
			"missing uri",
			"[[component]]\nname = \"a\"\n",
			errors.KindInvalidData,
		},
		{
			"unknown scope",
			"[[component]]\nname = \"a\"\nuri = \"calc.wasm\"\nenables = \"global\"\n",
			errors.KindInvalidScope,
		},
		{
			"package scope on engine capability",
			"[[component]]\nname = \"h\"\nuri = \"wazero:http\"\nenables = \"package\"\n",
			errors.KindInvalidScope,
		},
		{
			"config on engine capability",
			"[[component]]\nname = \"h\"\nuri = \"wazero:http\"\n[component.config]\nk = \"v\"\n",
			errors.KindInvalidData,
		},
		{
			"unknown engine capability",
			"[[component]]\nname = \"h\"\nuri = \"wazero:telepathy\"\n",
			errors.KindNotFound,
		},
		{
			"missing binary",
			"[[component]]\nname = \"a\"\nuri = \"absent.wasm\"\n",
			errors.KindNotFound,
		},
		{
			"unconfigured oci fetch",
			"[[component]]\nname = \"a\"\nuri = \"oci:registry.example.com/calc:1.0\"\n",
			errors.KindUnsupported,
		},
		{
			"malformed toml",
			"[[component\n",
			errors.KindMalformedInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Loader
			_, _, err := l.Parse([]byte(tt.data), dir)
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestParseOCIUsesFetcher(t *testing.T) {
	l := Loader{Fetch: func(uri string) ([]byte, error) {
		if uri != "oci:registry.example.com/calc:1.0" {
			return nil, fmt.Errorf("unexpected uri %q", uri)
		}
		return componentPreamble, nil
	}}

	defs, _, err := l.Parse([]byte(
		"[[component]]\nname = \"a\"\nuri = \"oci:registry.example.com/calc:1.0\"\n"), ".")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(defs[0].Bytes) == 0 {
		t.Error("fetched binary not attached")
	}
}

func TestLoadResolvesRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "calc.wasm")
	defsPath := filepath.Join(dir, "host.toml")
	if err := os.WriteFile(defsPath, []byte(
		"[[component]]\nname = \"calc\"\nuri = \"file:calc.wasm\"\n"), 0o644); err != nil {
		t.Fatalf("write defs: %v", err)
	}

	var l Loader
	defs, _, err := l.Load(defsPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs) != 1 || len(defs[0].Bytes) == 0 {
		t.Errorf("binary not resolved relative to the definition file")
	}
}

func TestImplicitDefinition(t *testing.T) {
	dir := t.TempDir()
	path := writeComponent(t, dir, "adder.wasm")

	var l Loader
	d, err := l.ImplicitDefinition(path)
	if err != nil {
		t.Fatalf("ImplicitDefinition: %v", err)
	}
	if d.Name != "adder" || !d.Exposed || d.Enables != registry.ScopeNone {
		t.Errorf("definition = %+v", d)
	}
	if len(d.Bytes) == 0 {
		t.Error("binary not loaded")
	}
}
