package registry

import (
	"testing"
)

func TestFeatureInterfaces(t *testing.T) {
	http, ok := FeatureInterfaces("wazero:http")
	if !ok {
		t.Fatal("wazero:http unknown")
	}
	if len(http) != 2 || http[0] != "wasi:http/outgoing-handler@0.2.0" {
		t.Errorf("wazero:http = %v", http)
	}

	if _, ok := FeatureInterfaces("wazero:gpu"); ok {
		t.Error("unknown feature URI accepted")
	}
	if _, ok := FeatureInterfaces("http"); ok {
		t.Error("bare name accepted as feature URI")
	}
}

func TestWasip2BundleSupersetOfIO(t *testing.T) {
	full, ok := FeatureInterfaces("wazero:wasip2")
	if !ok {
		t.Fatal("wazero:wasip2 unknown")
	}
	io, _ := FeatureInterfaces("wazero:io")

	set := make(map[string]bool, len(full))
	for _, iface := range full {
		set[iface] = true
	}
	for _, iface := range io {
		if !set[iface] {
			t.Errorf("wasip2 bundle missing %q", iface)
		}
	}
	for _, iface := range []string{"wasi:cli/environment@0.2.0", "wasi:random/random@0.2.0", "wasi:filesystem/types@0.2.0"} {
		if !set[iface] {
			t.Errorf("wasip2 bundle missing %q", iface)
		}
	}
}
