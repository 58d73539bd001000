// Package component decodes WebAssembly Component Model binaries and
// reflects their interface surface.
//
// Reflect turns a component binary into the list of imported and exported
// interface identifiers plus, on request, a schema description of every
// exported function. The decoder parses the component sections needed for
// that: types, imports, exports, aliases, canonical lifts and instances.
// It does not execute anything; execution belongs to the engine package.
package component
