package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/component-host/component"
	"github.com/wippyai/component-host/compose"
	"github.com/wippyai/component-host/engine"
	"github.com/wippyai/component-host/invoke"
	"github.com/wippyai/component-host/loader"
	"github.com/wippyai/component-host/registry"
	"github.com/wippyai/component-host/server"
)

const version = "0.1.0"

func main() {
	var (
		defsFile = flag.String("defs", "", "Path to a TOML definition file")
		logMode  = flag.String("log", "off", "Logging mode: dev, prod, off")
		envVars  = flag.String("env", "", "Environment variables for components (KEY=VAL,KEY2=VAL2)")
		preopens = flag.String("preopens", "", "Preopened directories (/host:/guest,/host2:/guest2)")
	)
	flag.Parse()

	if *defsFile == "" && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: hostd -defs <file.toml> [-log dev|prod|off]")
		fmt.Fprintln(os.Stderr, "       hostd <component.wasm> [more.wasm ...]")
		os.Exit(1)
	}

	if err := run(*defsFile, flag.Args(), *logMode, *envVars, *preopens); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(defsFile string, wasmPaths []string, logMode, envStr, preopensStr string) error {
	log, err := buildLogger(logMode)
	if err != nil {
		return err
	}
	defer log.Sync()
	setLoggers(log)

	var l loader.Loader
	var defs []registry.Definition
	var features []registry.RuntimeFeature

	if defsFile != "" {
		defs, features, err = l.Load(defsFile)
		if err != nil {
			return err
		}
	}
	for _, path := range wasmPaths {
		d, err := l.ImplicitDefinition(path)
		if err != nil {
			return err
		}
		defs = append(defs, d)
	}

	regs, err := registry.NewBuilder().Build(defs, features)
	if err != nil {
		return err
	}
	if len(regs.Components()) == 0 {
		return fmt.Errorf("no exposed components to serve")
	}

	eng := engine.New(engine.Options{
		Env:      parsePairs(envStr, "="),
		Preopens: parsePairs(preopensStr, ":"),
	})

	srv, err := server.New("component-host", version, invoke.New(eng), regs)
	if err != nil {
		return err
	}

	log.Info("serving components over stdio",
		zap.Int("components", len(regs.Components())))
	return srv.ServeStdio()
}

// buildLogger builds the process logger. Logging defaults to off so the
// stdio transport stays clean unless explicitly requested.
func buildLogger(mode string) (*zap.Logger, error) {
	switch mode {
	case "dev":
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	case "off", "":
		return zap.NewNop(), nil
	}
	return nil, fmt.Errorf("unknown log mode %q", mode)
}

func setLoggers(log *zap.Logger) {
	component.SetLogger(log.Named("component"))
	compose.SetLogger(log.Named("compose"))
	registry.SetLogger(log.Named("registry"))
	invoke.SetLogger(log.Named("invoke"))
	engine.SetLogger(log.Named("engine"))
	loader.SetLogger(log.Named("loader"))
	server.SetLogger(log.Named("server"))
}

// parsePairs splits "a<sep>b,c<sep>d" option strings into a map.
func parsePairs(s, sep string) map[string]string {
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, kv := range strings.Split(s, ",") {
		parts := strings.SplitN(kv, sep, 2)
		if len(parts) == 2 {
			out[parts[0]] = parts[1]
		}
	}
	return out
}
