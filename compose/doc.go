// Package compose statically links component binaries. Plug resolves a
// socket component's imports with a plug component's exports and emits a
// single self-contained binary; SynthesizeConfig builds a minimal
// configuration-provider component from a key/value map so components can
// receive their configuration through ordinary composition.
package compose
