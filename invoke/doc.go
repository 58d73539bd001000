// Package invoke executes component functions. It marshals JSON
// arguments into the engine's native value representation, runs the call
// on a fresh isolated instance scoped to the component's resolved
// runtime features, and marshals the native result back to JSON. Both
// directions are driven entirely by the JSON-Schema-shaped descriptors
// the reflector produced.
package invoke
