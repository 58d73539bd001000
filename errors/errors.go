package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the pipeline the error occurred
type Phase string

const (
	PhaseReflect Phase = "reflect" // binary interface reflection
	PhaseCompose Phase = "compose" // static composition
	PhaseResolve Phase = "resolve" // registry dependency resolution
	PhaseInvoke  Phase = "invoke"  // function invocation
	PhaseLoad    Phase = "load"    // definition loading
	PhaseConfig  Phase = "config"  // config component synthesis
	PhaseEncode  Phase = "encode"  // JSON to interface value
	PhaseDecode  Phase = "decode"  // interface value to JSON
)

// Kind categorizes the error
type Kind string

const (
	KindMalformedInput      Kind = "malformed_input"
	KindUnresolvedDep       Kind = "unresolved_dependency"
	KindCapabilityViolation Kind = "capability_violation"
	KindCallFailure         Kind = "call_failure"
	KindConfigError         Kind = "config_error"
	KindTypeMismatch        Kind = "type_mismatch"
	KindArityMismatch       Kind = "arity_mismatch"
	KindNotFound            Kind = "not_found"
	KindUnsupported         Kind = "unsupported"
	KindInvalidData         Kind = "invalid_data"
	KindFieldMissing        Kind = "field_missing"
	KindFieldUnknown        Kind = "field_unknown"
	KindInvalidScope        Kind = "invalid_scope"
	KindDuplicate           Kind = "duplicate"
	KindInstantiation       Kind = "instantiation"
	KindGuestError          Kind = "guest_error"
)

// Error is the structured error type used throughout the host
type Error struct {
	Value     any
	Cause     error
	Phase     Phase
	Kind      Kind
	JSONType  string
	WitType   string
	Detail    string
	Path      []string
	Component string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Component != "" {
		b.WriteString(" in ")
		b.WriteString(e.Component)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.JSONType != "" || e.WitType != "" {
		b.WriteString(": ")
		if e.JSONType != "" && e.WitType != "" {
			b.WriteString("JSON ")
			b.WriteString(e.JSONType)
			b.WriteString(" against WIT ")
			b.WriteString(e.WitType)
		} else if e.JSONType != "" {
			b.WriteString("JSON ")
			b.WriteString(e.JSONType)
		} else {
			b.WriteString("WIT ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.JSONType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Component sets the component name the error belongs to
func (b *Builder) Component(name string) *Builder {
	b.err.Component = name
	return b
}

// JSONType sets the JSON type name of the offending value
func (b *Builder) JSONType(t string) *Builder {
	b.err.JSONType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// MalformedInput creates a malformed binary/input error
func MalformedInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMalformedInput,
		Detail: detail,
	}
}

// TypeMismatch creates a marshaling type mismatch error
func TypeMismatch(phase Phase, path []string, jsonType, witType string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindTypeMismatch,
		Path:     path,
		JSONType: jsonType,
		WitType:  witType,
	}
}

// ArityMismatch creates an argument count error
func ArityMismatch(expected, got int) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindArityMismatch,
		Detail: fmt.Sprintf("expected %d arguments, got %d", expected, got),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Unsupported creates an unsupported type/operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// FieldMissing creates a missing required field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// FieldUnknown creates an unexpected field error
func FieldUnknown(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// CapabilityViolation creates an uncovered import error
func CapabilityViolation(component, iface string) *Error {
	return &Error{
		Phase:     PhaseResolve,
		Kind:      KindCapabilityViolation,
		Component: component,
		Detail:    fmt.Sprintf("requested capabilities do not cover import %q", iface),
	}
}

// ConfigValue creates an unrepresentable config value error
func ConfigValue(key, detail string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindConfigError,
		Path:   []string{key},
		Detail: detail,
	}
}

// InvalidScope creates a visibility scope error
func InvalidScope(component, detail string) *Error {
	return &Error{
		Phase:     PhaseLoad,
		Kind:      KindInvalidScope,
		Component: component,
		Detail:    detail,
	}
}

// Duplicate creates a duplicate name error
func Duplicate(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Detail: fmt.Sprintf("duplicate %s %q", what, name),
	}
}

// Instantiation creates an instantiation error
func Instantiation(component string, cause error) *Error {
	return &Error{
		Phase:     PhaseInvoke,
		Kind:      KindInstantiation,
		Component: component,
		Detail:    "instantiate component",
		Cause:     cause,
	}
}

// GuestError creates a failed-call error carrying the guest's error payload
func GuestError(function string, payload string) *Error {
	detail := fmt.Sprintf("function %q returned an error", function)
	if payload != "" {
		detail = fmt.Sprintf("function %q returned an error: %s", function, payload)
	}
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindGuestError,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
