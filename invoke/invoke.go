package invoke

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/registry"
	"github.com/wippyai/component-host/schema"
)

// Instance is one isolated instantiation of a component.
type Instance interface {
	// Call runs an exported function by its qualified key and returns the
	// native result value. The call may suspend on asynchronous host
	// operations; it returns once the guest completes.
	Call(ctx context.Context, name string, args ...any) (any, error)
	Close(ctx context.Context) error
}

// Engine instantiates component binaries. Implementations must be safe
// for concurrent use; each Instantiate call yields fresh isolated state.
type Engine interface {
	// Instantiate prepares an instance whose linkable host interfaces are
	// exactly those implied by the given engine-native feature URIs.
	Instantiate(ctx context.Context, bytes []byte, featureURIs []string) (Instance, error)
}

// Invoker executes component functions through an Engine.
type Invoker struct {
	engine Engine
}

// New returns an invoker backed by the given engine.
func New(engine Engine) *Invoker {
	return &Invoker{engine: engine}
}

// Invoke runs one function of a composed component spec. Arguments
// arrive as raw JSON in declared parameter order; the result is the
// function's return value encoded as JSON, null for void functions.
// A populated error side of a result-typed return fails the call with
// the marshaled error payload.
func (inv *Invoker) Invoke(ctx context.Context, spec *registry.ComponentSpec, regs *registry.Registries, fn schema.Function, args []json.RawMessage) (json.RawMessage, error) {
	if spec.Functions != nil {
		if _, ok := spec.Functions[fn.Key()]; !ok {
			return nil, errors.NotFound(errors.PhaseInvoke, "function", fn.Key())
		}
	}
	if len(args) != len(fn.Params) {
		return nil, errors.ArityMismatch(len(fn.Params), len(args))
	}

	native := make([]any, len(args))
	for i, p := range fn.Params {
		var decoded any
		if err := json.Unmarshal(args[i], &decoded); err != nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
				Path(p.Name).
				Cause(err).
				Detail("argument is not valid JSON").
				Build()
		}
		converted, err := fromJSON(decoded, p.Schema, []string{p.Name})
		if err != nil {
			return nil, err
		}
		native[i] = converted
	}

	inst, err := inv.engine.Instantiate(ctx, spec.Bytes, regs.FeatureURIs(spec.RuntimeFeatures))
	if err != nil {
		return nil, errors.Instantiation(spec.Name, err)
	}
	defer inst.Close(ctx)

	result, err := inst.Call(ctx, fn.Key(), native...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindCallFailure, err,
			"call "+fn.Key())
	}

	Logger().Debug("function call completed",
		zap.String("component", spec.Name),
		zap.String("function", fn.Key()))

	encoded, err := inv.encodeResult(result, fn)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInvalidData, err, "encode result")
	}
	return raw, nil
}

// encodeResult maps the native return value onto the declared result
// schema. Void functions yield null. An error-carrying union with a
// populated error payload fails the call; multiple native result slots
// are reconstructed positionally against an object-shaped result schema.
func (inv *Invoker) encodeResult(result any, fn schema.Function) (any, error) {
	if fn.Result == nil || result == nil {
		return nil, nil
	}

	if fn.Result.IsResultSchema() {
		return inv.encodeResultUnion(result, fn)
	}

	if slots, ok := result.([]any); ok && fn.Result.IsObject() {
		return reconstructSlots(slots, fn.Result)
	}

	return toJSON(result, fn.Result, nil)
}

func (inv *Invoker) encodeResultUnion(result any, fn schema.Function) (any, error) {
	obj, ok := result.(map[string]any)
	if !ok {
		// The engine already unwrapped the success side.
		okSchema, _ := fn.Result.ResultSides()
		return toJSON(result, okSchema, nil)
	}

	okSchema, errSchema := fn.Result.ResultSides()
	for _, key := range []string{"err", "error"} {
		payload, has := obj[key]
		if !has {
			continue
		}
		if payload == nil {
			return nil, errors.GuestError(fn.Key(), "")
		}
		converted, err := toJSON(payload, errSchema, []string{"error"})
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(converted)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInvalidData, err, "encode error payload")
		}
		return nil, errors.GuestError(fn.Key(), string(encoded))
	}

	if payload, has := obj["ok"]; has {
		if okSchema != nil && okSchema.Type == "null" {
			return nil, nil
		}
		return toJSON(payload, okSchema, []string{"ok"})
	}

	return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
		Detail("result union carries neither ok nor error side").
		Build()
}

// reconstructSlots zips decomposed result slots with the declared
// properties of an object-shaped result schema, in declaration order.
func reconstructSlots(slots []any, s *schema.Value) (any, error) {
	if len(slots) != len(s.Properties) {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
			Detail("engine returned %d result slots, schema declares %d fields", len(slots), len(s.Properties)).
			Build()
	}
	out := make(map[string]any, len(slots))
	for i, p := range s.Properties {
		converted, err := toJSON(slots[i], p.Schema, []string{p.Name})
		if err != nil {
			return nil, err
		}
		out[p.Name] = converted
	}
	return out, nil
}
