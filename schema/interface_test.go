package schema

import "testing"

func TestParseInterface(t *testing.T) {
	tests := []struct {
		input   string
		want    Interface
		wantErr bool
	}{
		{
			input: "wasi:http/outgoing-handler@0.2.0",
			want:  Interface{Namespace: "wasi", Package: "http", Name: "outgoing-handler", Version: "0.2.0"},
		},
		{
			input: "example:calc/add",
			want:  Interface{Namespace: "example", Package: "calc", Name: "add"},
		},
		{
			input: "ns:pkg/iface@1.0.0-rc.1",
			want:  Interface{Namespace: "ns", Package: "pkg", Name: "iface", Version: "1.0.0-rc.1"},
		},
		{input: "no-namespace/iface", wantErr: true},
		{input: "ns:no-interface", wantErr: true},
		{input: "ns:pkg/", wantErr: true},
		{input: ":pkg/iface", wantErr: true},
		{input: "ns:/iface", wantErr: true},
		{input: "ns:pkg/iface@", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterface(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseInterface(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInterface(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseInterface(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInterfaceRoundTrip(t *testing.T) {
	ids := []string{
		"wasi:config/store@0.2.0-draft",
		"example:calc/add",
		"wasi:io/streams@0.2.0",
	}
	for _, id := range ids {
		parsed, err := ParseInterface(id)
		if err != nil {
			t.Fatalf("ParseInterface(%q): %v", id, err)
		}
		if parsed.String() != id {
			t.Errorf("round trip %q = %q", id, parsed.String())
		}
	}
}
