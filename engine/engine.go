package engine

import (
	"context"

	"github.com/wippyai/wasm-runtime/runtime"
	"github.com/wippyai/wasm-runtime/wasi/preview2"
	"go.uber.org/zap"

	"github.com/wippyai/component-host/compose"
	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/invoke"
)

// Options configure the ambient environment every instance sees.
type Options struct {
	Env      map[string]string
	Args     []string
	Cwd      string
	Preopens map[string]string
}

// Engine instantiates component binaries on the wasm-runtime
// interpreter. It is safe for concurrent use; every Instantiate call
// builds a fresh runtime with its own WASI state and resource table.
type Engine struct {
	opts Options
}

var _ invoke.Engine = (*Engine)(nil)

// New returns an engine with the given ambient options.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Instantiate prepares one isolated instance of a component binary.
// The linkable host surface is exactly the union of interfaces implied
// by featureURIs, plus the configuration store when the binary carries
// a synthesized configuration table.
func (e *Engine) Instantiate(ctx context.Context, bytes []byte, featureURIs []string) (invoke.Instance, error) {
	rt, err := runtime.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err, "create runtime")
	}

	wasi := preview2.New().
		WithEnv(e.opts.Env).
		WithArgs(e.opts.Args).
		WithCwd(e.opts.Cwd).
		WithPreopens(e.opts.Preopens)

	inst := &instance{rt: rt, wasi: wasi}

	if err := registerWASI(rt, wasi, allowedInterfaces(featureURIs)); err != nil {
		inst.Close(ctx)
		return nil, err
	}

	table, err := compose.ConfigTable(bytes)
	if err != nil {
		inst.Close(ctx)
		return nil, err
	}
	if table != nil {
		if err := rt.RegisterHost(newConfigStore(table)); err != nil {
			inst.Close(ctx)
			return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err,
				"register configuration store")
		}
	}

	stages, err := compositionStages(bytes)
	if err != nil {
		inst.Close(ctx)
		return nil, err
	}

	for _, stage := range stages[:len(stages)-1] {
		up, err := bridgeStage(ctx, rt, stage)
		if err != nil {
			inst.Close(ctx)
			return nil, err
		}
		inst.upstream = append(inst.upstream, up)
	}

	target := stages[len(stages)-1]
	mod, err := rt.LoadComponent(ctx, target)
	if err != nil {
		inst.Close(ctx)
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err, "load component")
	}
	inner, err := mod.Instantiate(ctx)
	if err != nil {
		inst.Close(ctx)
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err, "instantiate component")
	}
	inst.inner = inner

	Logger().Debug("component instantiated",
		zap.Int("stages", len(stages)),
		zap.Bool("config", table != nil),
		zap.Strings("features", featureURIs))

	return inst, nil
}

// instance wraps the target runtime instance together with the bridged
// upstream instances keeping its imports alive.
type instance struct {
	rt       *runtime.Runtime
	wasi     *preview2.WASI
	inner    *runtime.Instance
	upstream []*runtime.Instance
}

func (i *instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	return i.inner.Call(ctx, name, args...)
}

// Close releases the instance, its upstream bridges in reverse
// instantiation order, and the backing runtime.
func (i *instance) Close(ctx context.Context) error {
	var first error
	if i.inner != nil {
		first = i.inner.Close(ctx)
	}
	for n := len(i.upstream) - 1; n >= 0; n-- {
		if err := i.upstream[n].Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	i.wasi.Close()
	if err := i.rt.Close(ctx); err != nil && first == nil {
		first = err
	}
	return first
}
