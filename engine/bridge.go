package engine

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/wippyai/wasm-runtime/runtime"
	"go.uber.org/zap"

	"github.com/wippyai/component-host/component"
	"github.com/wippyai/component-host/compose"
	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/schema"
)

// compositionStages flattens a composed container into the member
// component binaries in dependency order. The last stage is the call
// target; every earlier stage is an upstream provider whose exports are
// bridged into the later stages' imports. A plain component yields a
// single stage. Synthesized configuration providers carry no code and
// are dropped; the configuration store host serves their table.
func compositionStages(data []byte) ([][]byte, error) {
	c, err := component.Decode(data)
	if err != nil {
		return nil, errors.MalformedInput(errors.PhaseInvoke, "decode component: "+err.Error())
	}
	if len(c.Nested) == 0 {
		return [][]byte{data}, nil
	}

	var stages [][]byte
	for _, entry := range c.Instances {
		if entry.Kind != component.InstanceInstantiate {
			continue
		}
		if int(entry.ComponentIdx) >= len(c.Nested) {
			return nil, errors.MalformedInput(errors.PhaseInvoke,
				"instantiation references a missing nested component")
		}
		sub, err := compositionStages(c.Nested[entry.ComponentIdx])
		if err != nil {
			return nil, err
		}
		for _, stage := range sub {
			virtual, err := isConfigProvider(stage)
			if err != nil {
				return nil, err
			}
			if virtual {
				continue
			}
			stages = append(stages, stage)
		}
	}

	if len(stages) == 0 {
		return nil, errors.MalformedInput(errors.PhaseInvoke,
			"container instantiates no executable component")
	}
	return stages, nil
}

// isConfigProvider reports whether a flattened stage is a synthesized
// configuration provider: a codeless component whose only payload is
// the embedded configuration table.
func isConfigProvider(stage []byte) (bool, error) {
	c, err := component.Decode(stage)
	if err != nil {
		return false, errors.MalformedInput(errors.PhaseInvoke, "decode component: "+err.Error())
	}
	if len(c.CoreModules) > 0 || len(c.Nested) > 0 {
		return false, nil
	}
	table, err := compose.ConfigTable(stage)
	if err != nil {
		return false, err
	}
	return table != nil, nil
}

// bridgeStage instantiates an upstream provider and registers its
// exported functions as host functions, making them linkable by the
// stages instantiated after it.
func bridgeStage(ctx context.Context, rt *runtime.Runtime, stage []byte) (*runtime.Instance, error) {
	refl, err := component.Reflect(stage, true)
	if err != nil {
		return nil, err
	}

	mod, err := rt.LoadComponent(ctx, stage)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err, "load upstream component")
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err, "instantiate upstream component")
	}

	for key, fn := range refl.Functions {
		if fn.Interface == (schema.Interface{}) {
			Logger().Warn("upstream component exports a bare function, not bridgeable",
				zap.String("function", key))
			continue
		}
		handler, err := bridgeHandler(inst, fn)
		if err != nil {
			inst.Close(ctx)
			return nil, err
		}
		if err := rt.RegisterFunc(fn.Interface.String(), fn.Name, handler); err != nil {
			inst.Close(ctx)
			return nil, errors.Wrap(errors.PhaseInvoke, errors.KindInstantiation, err, "bridge "+key)
		}
	}
	return inst, nil
}

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()

// bridgeHandler builds a typed host function that forwards calls into
// an upstream instance. The signature is reconstructed from the
// function description so the runtime can derive its wire types.
func bridgeHandler(inst *runtime.Instance, fn schema.Function) (any, error) {
	in := []reflect.Type{ctxType}
	for _, p := range fn.Params {
		t, err := nativeGoType(p.Schema)
		if err != nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindUnsupported).
				Path(fn.Key(), p.Name).
				Cause(err).
				Detail("parameter type cannot cross a composition bridge").
				Build()
		}
		in = append(in, t)
	}

	var out []reflect.Type
	if fn.Result != nil {
		t, err := nativeGoType(fn.Result)
		if err != nil {
			return nil, errors.New(errors.PhaseInvoke, errors.KindUnsupported).
				Path(fn.Key()).
				Cause(err).
				Detail("result type cannot cross a composition bridge").
				Build()
		}
		out = append(out, t)
	}

	key := fn.Key()
	impl := func(args []reflect.Value) []reflect.Value {
		callCtx := args[0].Interface().(context.Context)
		native := make([]any, 0, len(args)-1)
		for _, a := range args[1:] {
			native = append(native, a.Interface())
		}

		res, err := inst.Call(callCtx, key, native...)
		if err != nil {
			Logger().Error("bridged call failed",
				zap.String("function", key),
				zap.Error(err))
		}
		if len(out) == 0 {
			return nil
		}
		rv := reflect.Zero(out[0])
		if err == nil && res != nil {
			if v := reflect.ValueOf(res); v.Type().ConvertibleTo(out[0]) {
				rv = v.Convert(out[0])
			}
		}
		return []reflect.Value{rv}
	}

	return reflect.MakeFunc(reflect.FuncOf(in, out, false), impl).Interface(), nil
}

// nativeGoType maps a schema descriptor onto the Go type the runtime's
// type mapper understands. Compound shapes without a stable Go mapping
// (records, variants, results) cannot cross a bridge.
func nativeGoType(s *schema.Value) (reflect.Type, error) {
	if s == nil {
		return nil, fmt.Errorf("missing schema")
	}

	if s.IsOptionSchema() {
		inner, err := nativeGoType(s.OptionInner())
		if err != nil {
			return nil, err
		}
		return reflect.PointerTo(inner), nil
	}

	switch s.Type {
	case "boolean":
		return reflect.TypeOf(false), nil
	case "number":
		return numericGoType(s), nil
	case "string":
		return reflect.TypeOf(""), nil
	case "array":
		if s.IsTupleSchema() {
			return nil, fmt.Errorf("tuple types are not bridgeable")
		}
		elem, err := nativeGoType(s.Items)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	}
	return nil, fmt.Errorf("schema shape %q is not bridgeable", s.Type)
}

// numericGoType recovers the integer width from the schema bounds.
// Unbounded numbers are floats.
func numericGoType(s *schema.Value) reflect.Type {
	if s.Minimum == nil || s.Maximum == nil {
		return reflect.TypeOf(float64(0))
	}
	min, max := *s.Minimum, *s.Maximum
	switch {
	case min == 0 && max == math.MaxUint8:
		return reflect.TypeOf(uint8(0))
	case min == 0 && max == math.MaxUint16:
		return reflect.TypeOf(uint16(0))
	case min == 0 && max == math.MaxUint32:
		return reflect.TypeOf(uint32(0))
	case min == 0 && max == math.MaxUint64:
		return reflect.TypeOf(uint64(0))
	case min == math.MinInt8 && max == math.MaxInt8:
		return reflect.TypeOf(int8(0))
	case min == math.MinInt16 && max == math.MaxInt16:
		return reflect.TypeOf(int16(0))
	case min == math.MinInt32 && max == math.MaxInt32:
		return reflect.TypeOf(int32(0))
	case min == math.MinInt64 && max == math.MaxInt64:
		return reflect.TypeOf(int64(0))
	}
	return reflect.TypeOf(float64(0))
}
