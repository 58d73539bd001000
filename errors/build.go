package errors

import (
	"fmt"
	"strings"
)

// UnresolvedDefinition records one definition that could not be resolved
// during a registry build, with the last failure observed for it.
type UnresolvedDefinition struct {
	Name   string
	Reason error
}

// BuildError is returned when a registry build aborts because required
// infrastructure definitions could not be resolved.
type BuildError struct {
	Unresolved []UnresolvedDefinition
}

// NewBuildError creates an aggregated build failure.
func NewBuildError(unresolved []UnresolvedDefinition) *BuildError {
	return &BuildError{Unresolved: unresolved}
}

func (e *BuildError) Error() string {
	if len(e.Unresolved) == 0 {
		return "[resolve] unresolved_dependency: no definitions specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("registry build failed, %d definition(s) unresolved:", len(e.Unresolved)))
	for _, u := range e.Unresolved {
		b.WriteString("\n  ")
		b.WriteString(u.Name)
		if u.Reason != nil {
			b.WriteString(": ")
			b.WriteString(u.Reason.Error())
		}
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *BuildError) Is(target error) bool {
	_, ok := target.(*BuildError)
	return ok
}
