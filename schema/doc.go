// Package schema defines the portable interface description model shared
// by the reflector, the registry builder, the invoker and the transport
// layer.
//
// An Interface is the parsed form of a "namespace:package/name[@version]"
// identifier. A Function describes one exported function with its
// parameters and result as JSON-Schema-like Value descriptors, produced
// from WIT types by FromWIT. Value is immutable once produced and is the
// only contract the invoker and the transport wrapper depend on.
package schema
