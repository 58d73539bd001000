package registry

// Static catalogue of engine-native capabilities. Each well-known
// "wazero:" URI implies a fixed set of interface identifiers; this is
// configuration data the host ships, not logic.

var wasip2CLI = []string{
	"wasi:cli/environment@0.2.0",
	"wasi:cli/exit@0.2.0",
	"wasi:cli/stdin@0.2.0",
	"wasi:cli/stdout@0.2.0",
	"wasi:cli/stderr@0.2.0",
	"wasi:cli/terminal-input@0.2.0",
	"wasi:cli/terminal-output@0.2.0",
	"wasi:cli/terminal-stdin@0.2.0",
	"wasi:cli/terminal-stdout@0.2.0",
	"wasi:cli/terminal-stderr@0.2.0",
}

var ioInterfaces = []string{
	"wasi:io/error@0.2.0",
	"wasi:io/poll@0.2.0",
	"wasi:io/streams@0.2.0",
}

var socketInterfaces = []string{
	"wasi:sockets/instance-network@0.2.0",
	"wasi:sockets/network@0.2.0",
	"wasi:sockets/tcp@0.2.0",
	"wasi:sockets/tcp-create-socket@0.2.0",
	"wasi:sockets/udp@0.2.0",
	"wasi:sockets/udp-create-socket@0.2.0",
}

var featureTable = map[string][]string{
	"wazero:http": {
		"wasi:http/outgoing-handler@0.2.0",
		"wasi:http/types@0.2.0",
	},
	"wazero:io":                   ioInterfaces,
	"wazero:inherit-network":      socketInterfaces,
	"wazero:allow-ip-name-lookup": {"wasi:sockets/ip-name-lookup@0.2.0"},
	"wazero:wasip2": joinInterfaces(
		wasip2CLI,
		[]string{
			"wasi:clocks/monotonic-clock@0.2.0",
			"wasi:clocks/wall-clock@0.2.0",
			"wasi:filesystem/preopens@0.2.0",
			"wasi:filesystem/types@0.2.0",
		},
		ioInterfaces,
		[]string{
			"wasi:random/random@0.2.0",
			"wasi:random/insecure@0.2.0",
			"wasi:random/insecure-seed@0.2.0",
		},
		socketInterfaces,
		[]string{"wasi:sockets/ip-name-lookup@0.2.0"},
	),
}

// FeatureInterfaces returns the fixed interface set implied by an
// engine-native URI, or false for unknown URIs.
func FeatureInterfaces(uri string) ([]string, bool) {
	ifaces, ok := featureTable[uri]
	return ifaces, ok
}

func joinInterfaces(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
