package engine

import (
	"strings"

	"github.com/wippyai/wasm-runtime/runtime"
	"github.com/wippyai/wasm-runtime/wasi/preview2"
	"github.com/wippyai/wasm-runtime/wasi/preview2/cli"
	"github.com/wippyai/wasm-runtime/wasi/preview2/clocks"
	"github.com/wippyai/wasm-runtime/wasi/preview2/filesystem"
	"github.com/wippyai/wasm-runtime/wasi/preview2/http"
	wasiio "github.com/wippyai/wasm-runtime/wasi/preview2/io"
	"github.com/wippyai/wasm-runtime/wasi/preview2/random"
	"github.com/wippyai/wasm-runtime/wasi/preview2/sockets"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/registry"
)

// allowedInterfaces expands engine-native feature URIs into the set of
// unversioned interface identifiers an instance may link against.
// Unknown URIs contribute nothing; the registry validated them already.
func allowedInterfaces(featureURIs []string) map[string]bool {
	allowed := make(map[string]bool)
	for _, uri := range featureURIs {
		ifaces, ok := registry.FeatureInterfaces(uri)
		if !ok {
			continue
		}
		for _, id := range ifaces {
			allowed[baseInterface(id)] = true
		}
	}
	return allowed
}

// baseInterface strips the version suffix from an interface identifier.
func baseInterface(id string) string {
	if at := strings.LastIndexByte(id, '@'); at >= 0 {
		return id[:at]
	}
	return id
}

// registerWASI registers the WASI preview2 hosts whose interfaces the
// feature set allows. Hosts outside the set are never registered, so an
// instance without the matching feature cannot link them.
func registerWASI(rt *runtime.Runtime, wasi *preview2.WASI, allowed map[string]bool) error {
	resources := wasi.Resources()
	ioHost := wasiio.NewHost(resources)

	hosts := []struct {
		base string
		host runtime.Host
	}{
		{"wasi:io/error", ioHost.Error},
		{"wasi:io/poll", ioHost.Poll},
		{"wasi:io/streams", ioHost.Streams},
		{"wasi:clocks/monotonic-clock", clocks.NewMonotonicClockHost(resources)},
		{"wasi:clocks/wall-clock", clocks.NewWallClockHost()},
		{"wasi:random/random", random.NewSecureRandomHost()},
		{"wasi:random/insecure", random.NewInsecureRandomHost()},
		{"wasi:random/insecure-seed", random.NewInsecureSeedHost()},
		{"wasi:cli/environment", cli.NewEnvironmentHost(wasi.Env(), wasi.Args(), wasi.Cwd())},
		{"wasi:cli/exit", cli.NewExitHost()},
		{"wasi:cli/stdin", cli.NewStdioHost(resources, wasi.Stdin(), wasi.StdoutResource(), wasi.StderrResource())},
		{"wasi:cli/stdout", cli.NewStdoutHost(resources, wasi.StdoutResource())},
		{"wasi:cli/stderr", cli.NewStderrHost(resources, wasi.StderrResource())},
		{"wasi:cli/terminal-stdin", cli.NewTerminalStdinHost()},
		{"wasi:cli/terminal-stdout", cli.NewTerminalStdoutHost()},
		{"wasi:cli/terminal-stderr", cli.NewTerminalStderrHost()},
		{"wasi:filesystem/types", filesystem.NewTypesHost(resources)},
		{"wasi:filesystem/preopens", filesystem.NewPreopensHost(resources, wasi.Preopens())},
		{"wasi:sockets/instance-network", sockets.NewInstanceNetworkHost(resources)},
		{"wasi:sockets/tcp-create-socket", sockets.NewTCPCreateSocketHost(resources)},
		{"wasi:sockets/tcp", sockets.NewTCPHost(resources)},
		{"wasi:sockets/udp-create-socket", sockets.NewUDPCreateSocketHost(resources)},
		{"wasi:sockets/udp", sockets.NewUDPHost(resources)},
		{"wasi:sockets/ip-name-lookup", sockets.NewIPNameLookupHost(resources)},
		{"wasi:http/types", http.NewTypesHost(resources)},
		{"wasi:http/outgoing-handler", http.NewOutgoingHandlerHost(resources)},
	}

	for _, h := range hosts {
		if !allowed[h.base] {
			continue
		}
		if err := rt.RegisterHost(h.host); err != nil {
			return errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err,
				"register "+h.base)
		}
	}
	return nil
}
