// Package server exposes the functions of exposed components as MCP
// tools over stdio. The mapper turns every function description into a
// tool definition whose input schema comes straight from the reflected
// parameter schemas; the handler marshals tool arguments through the
// invoker and wraps results for text transport.
package server
