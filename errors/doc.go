// Package errors provides structured error types for the component host.
//
// Errors carry a Phase (where in the pipeline they occurred) and a Kind
// (what went wrong), plus optional context such as the component name,
// a value path, and the JSON/WIT types involved in a marshaling failure.
//
// The taxonomy separates errors by blast radius: malformed_input,
// capability_violation and config_error are fatal to the one definition
// involved; unresolved_dependency is retried and then escalated;
// call_failure kinds (arity_mismatch, not_found, type_mismatch,
// guest_error) surface to the caller without affecting other calls.
package errors
