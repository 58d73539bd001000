package registry

import (
	"github.com/wippyai/component-host/errors"
)

// VisibilityScope governs which requesting definitions may use a
// definition as a dependency.
type VisibilityScope int

const (
	// ScopeNone makes a definition unusable as a dependency.
	ScopeNone VisibilityScope = iota
	// ScopePackage limits use to requesters in the same namespace:package.
	ScopePackage
	// ScopeNamespace limits use to requesters in the same namespace.
	ScopeNamespace
	// ScopeUnexposed limits use to requesters that are not exposed.
	ScopeUnexposed
	// ScopeExposed limits use to requesters that are exposed.
	ScopeExposed
	// ScopeAny permits any requester.
	ScopeAny
)

var scopeNames = map[VisibilityScope]string{
	ScopeNone:      "none",
	ScopePackage:   "package",
	ScopeNamespace: "namespace",
	ScopeUnexposed: "unexposed",
	ScopeExposed:   "exposed",
	ScopeAny:       "any",
}

func (s VisibilityScope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseScope parses a scope keyword. The empty string means none.
func ParseScope(s string) (VisibilityScope, error) {
	switch s {
	case "", "none":
		return ScopeNone, nil
	case "package":
		return ScopePackage, nil
	case "namespace":
		return ScopeNamespace, nil
	case "unexposed":
		return ScopeUnexposed, nil
	case "exposed":
		return ScopeExposed, nil
	case "any":
		return ScopeAny, nil
	default:
		return ScopeNone, errors.InvalidScope("", "unknown visibility scope \""+s+"\"")
	}
}

// RequesterAttrs are the attributes of the definition asking for a
// dependency.
type RequesterAttrs struct {
	Namespace string
	Package   string
	Exposed   bool
}

// DefinerAttrs are the attributes of the definition being asked for.
// Runtime features carry no package identity.
type DefinerAttrs struct {
	Namespace string
	Package   string
}

// Permits reports whether a definer with this scope may serve the given
// requester.
func (s VisibilityScope) Permits(req RequesterAttrs, def DefinerAttrs) bool {
	switch s {
	case ScopeNone:
		return false
	case ScopePackage:
		return def.Namespace != "" && def.Package != "" &&
			req.Namespace == def.Namespace && req.Package == def.Package
	case ScopeNamespace:
		return def.Namespace != "" && req.Namespace == def.Namespace
	case ScopeUnexposed:
		return !req.Exposed
	case ScopeExposed:
		return req.Exposed
	case ScopeAny:
		return true
	default:
		return false
	}
}
