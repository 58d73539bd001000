package schema

import (
	"strings"

	"github.com/wippyai/component-host/errors"
)

// Interface is the parsed form of a component interface identifier
// "namespace:package/name[@version]".
type Interface struct {
	Namespace string
	Package   string
	Name      string
	Version   string
}

// ParseInterface parses and validates an interface identifier string.
// Malformed identifiers are rejected here, not deferred to resolution.
func ParseInterface(id string) (Interface, error) {
	ns, rest, ok := strings.Cut(id, ":")
	if !ok {
		return Interface{}, errors.InvalidData(errors.PhaseReflect, nil,
			"interface identifier "+quote(id)+" missing namespace separator ':'")
	}
	pkg, name, ok := strings.Cut(rest, "/")
	if !ok {
		return Interface{}, errors.InvalidData(errors.PhaseReflect, nil,
			"interface identifier "+quote(id)+" missing package separator '/'")
	}
	var version string
	if at := strings.LastIndexByte(name, '@'); at >= 0 {
		version = name[at+1:]
		name = name[:at]
		if version == "" {
			return Interface{}, errors.InvalidData(errors.PhaseReflect, nil,
				"interface identifier "+quote(id)+" has empty version")
		}
	}
	if ns == "" || pkg == "" || name == "" {
		return Interface{}, errors.InvalidData(errors.PhaseReflect, nil,
			"interface identifier "+quote(id)+" has empty segment")
	}
	if strings.ContainsAny(ns, ":/@") || strings.ContainsAny(pkg, ":/@") || strings.ContainsAny(name, ":/@") {
		return Interface{}, errors.InvalidData(errors.PhaseReflect, nil,
			"interface identifier "+quote(id)+" has malformed segment")
	}
	return Interface{Namespace: ns, Package: pkg, Name: name, Version: version}, nil
}

func quote(s string) string {
	return "\"" + s + "\""
}

// String renders the canonical identifier form.
func (i Interface) String() string {
	var b strings.Builder
	b.WriteString(i.Namespace)
	b.WriteByte(':')
	b.WriteString(i.Package)
	b.WriteByte('/')
	b.WriteString(i.Name)
	if i.Version != "" {
		b.WriteByte('@')
		b.WriteString(i.Version)
	}
	return b.String()
}

// Equal reports whether two identifiers are exactly equal, version included.
func (i Interface) Equal(other Interface) bool {
	return i == other
}
