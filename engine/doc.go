// Package engine executes component binaries on the wasm-runtime
// interpreter and implements the invoke.Engine contract.
//
// Every instantiation builds an isolated runtime: WASI hosts are
// registered only for the interfaces implied by the requested runtime
// features, a synthesized configuration table travels with the binary
// and is served as the wasi:config store, and composed containers are
// split back into their member components, which are instantiated in
// dependency order and linked through host function bridges.
package engine
