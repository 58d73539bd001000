package registry

import (
	"github.com/wippyai/component-host/schema"
)

// Definition is one flat component definition as the loader produced it.
// Definitions are consumed once by the builder.
type Definition struct {
	Name    string
	URI     string
	Enables VisibilityScope
	Expects []string
	Exposed bool
	// Config holds declared configuration values; nil means no
	// configuration was declared, an empty non-nil map declares an empty
	// configuration.
	Config map[string]any
	// Bytes is the component binary loaded from URI.
	Bytes []byte
}

// RuntimeFeature is a capability implemented by the execution engine
// itself. It has no binary; it contributes a fixed set of interfaces.
type RuntimeFeature struct {
	Name       string
	URI        string
	Enables    VisibilityScope
	Interfaces []string
}

// ComponentSpec is a fully composed, fully validated component held for
// the process lifetime. Bytes are immutable after construction; every
// invocation instantiates a fresh engine instance from them.
type ComponentSpec struct {
	Name      string
	Namespace string
	Package   string
	Bytes     []byte
	Imports   []string
	Exports   []string
	// RuntimeFeatures names the features this component and its composed
	// dependencies require at invocation time.
	RuntimeFeatures []string
	// Functions maps qualified function keys to their descriptions.
	// Populated only for exposed components.
	Functions map[string]schema.Function
	Enables   VisibilityScope
	Exposed   bool
}
