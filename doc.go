// Package componenthost turns WebAssembly components into a served tool
// surface.
//
// The host reflects component binaries into interface descriptions,
// composes them statically against each other and against synthesized
// configuration, validates the result under scoped visibility rules,
// and serves the exposed functions as MCP tools whose inputs and
// outputs are plain JSON.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	component-host/      Root package documentation
//	├── schema/          Interface identifiers and JSON-shaped value descriptors
//	├── component/       Component binary decoding, reflection, and encoding
//	├── compose/         Static plug-into-socket composition and config synthesis
//	├── registry/        Flat definitions, scope rules, and the registry builder
//	├── invoke/          JSON <-> native marshaling and function invocation
//	├── engine/          Execution on the wasm-runtime interpreter
//	├── loader/          TOML definition files and binary resolution
//	├── server/          MCP tool mapping and the stdio transport
//	├── errors/          Structured error types shared by every phase
//	└── cmd/hostd/       The host daemon entry point
//
// # Quick Start
//
// Serve a single component:
//
//	hostd calc.wasm
//
// Or drive a full definition file:
//
//	hostd -defs host.toml -log dev
//
// Each definition names a binary, the scope it enables for other
// components, the dependencies it expects, and optional configuration.
// The registry builder resolves definitions in dependency order,
// composes configuration providers and dependency binaries into each
// socket, and keeps only fully linked components.
//
// # Invocation
//
// Every call instantiates a fresh engine instance, so component state
// never leaks between calls. Arguments arrive as JSON, are checked
// against the reflected parameter schemas, and results travel back as
// JSON; a result-typed return with a populated error side fails the
// call with the guest's payload.
package componenthost
