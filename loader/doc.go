// Package loader reads flat component definitions from TOML files and
// resolves their binaries. Definitions with a wazero: URI name engine
// capabilities and become runtime features; file: URIs and bare paths
// load component binaries from disk; oci: URIs are delegated to an
// optional fetcher. The loader validates names and scopes, nothing
// more; dependency resolution belongs to the registry builder.
package loader
