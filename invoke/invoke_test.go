package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/registry"
	"github.com/wippyai/component-host/schema"
)

type fakeInstance struct {
	result   any
	err      error
	gotName  string
	gotArgs  []any
	closed   bool
	closeErr error
}

func (i *fakeInstance) Call(_ context.Context, name string, args ...any) (any, error) {
	i.gotName = name
	i.gotArgs = args
	return i.result, i.err
}

func (i *fakeInstance) Close(context.Context) error {
	i.closed = true
	return i.closeErr
}

type fakeEngine struct {
	inst        *fakeInstance
	err         error
	gotBytes    []byte
	gotFeatures []string
}

func (e *fakeEngine) Instantiate(_ context.Context, bytes []byte, featureURIs []string) (Instance, error) {
	e.gotBytes = bytes
	e.gotFeatures = featureURIs
	if e.err != nil {
		return nil, e.err
	}
	return e.inst, nil
}

func testRegistries(t *testing.T, features []registry.RuntimeFeature) *registry.Registries {
	t.Helper()
	regs, err := (&registry.Builder{}).Build(nil, features)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return regs
}

func addTwoFunction(t *testing.T) schema.Function {
	t.Helper()
	num := mustSchema(t, wit.U32{})
	return schema.Function{
		Name:   "add-two",
		Params: []schema.FunctionParam{{Name: "a", Schema: num}, {Name: "b", Schema: num}},
		Result: num,
	}
}

func rawArgs(args ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(args))
	for i, a := range args {
		out[i] = json.RawMessage(a)
	}
	return out
}

func TestInvokeCallsExportByKey(t *testing.T) {
	inst := &fakeInstance{result: float64(5)}
	eng := &fakeEngine{inst: inst}
	inv := New(eng)

	spec := &registry.ComponentSpec{
		Name:            "calc",
		Bytes:           []byte("component"),
		RuntimeFeatures: []string{"wasip2"},
	}
	regs := testRegistries(t, []registry.RuntimeFeature{
		{Name: "wasip2", URI: "wazero:wasip2"},
	})

	out, err := inv.Invoke(context.Background(), spec, regs, addTwoFunction(t), rawArgs(`2`, `3`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(out) != `5` {
		t.Errorf("result = %s, want 5", out)
	}
	if inst.gotName != "add-two" {
		t.Errorf("call name = %q, want add-two", inst.gotName)
	}
	if len(inst.gotArgs) != 2 || inst.gotArgs[0] != float64(2) || inst.gotArgs[1] != float64(3) {
		t.Errorf("call args = %#v", inst.gotArgs)
	}
	if string(eng.gotBytes) != "component" {
		t.Errorf("engine received wrong bytes")
	}
	if len(eng.gotFeatures) != 1 || eng.gotFeatures[0] != "wazero:wasip2" {
		t.Errorf("feature URIs = %v", eng.gotFeatures)
	}
	if !inst.closed {
		t.Error("instance was not closed")
	}
}

func TestInvokeInterfaceFunctionKey(t *testing.T) {
	inst := &fakeInstance{result: float64(4)}
	inv := New(&fakeEngine{inst: inst})

	fn := addTwoFunction(t)
	fn.Interface = schema.Interface{Namespace: "docs", Package: "calc", Name: "ops", Version: "1.0.0"}

	_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), fn, rawArgs(`2`, `2`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if want := "docs:calc/ops@1.0.0#add-two"; inst.gotName != want {
		t.Errorf("call name = %q, want %q", inst.gotName, want)
	}
}

func TestInvokeUnknownFunction(t *testing.T) {
	inv := New(&fakeEngine{inst: &fakeInstance{}})

	fn := addTwoFunction(t)
	spec := &registry.ComponentSpec{
		Name:      "calc",
		Functions: map[string]schema.Function{"other": {Name: "other"}},
	}
	_, err := inv.Invoke(context.Background(), spec, testRegistries(t, nil), fn, rawArgs(`2`, `3`))
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestInvokeArityMismatch(t *testing.T) {
	inv := New(&fakeEngine{inst: &fakeInstance{}})

	_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), addTwoFunction(t), rawArgs(`2`))
	if !errors.IsKind(err, errors.KindArityMismatch) {
		t.Fatalf("err = %v, want arity mismatch", err)
	}
	if !strings.Contains(err.Error(), "expected 2 arguments, got 1") {
		t.Errorf("err = %v, want counts in message", err)
	}
}

func TestInvokeRejectsInvalidArgument(t *testing.T) {
	inv := New(&fakeEngine{inst: &fakeInstance{}})

	tests := []struct {
		name string
		arg  string
		kind errors.Kind
	}{
		{"malformed JSON", `{`, errors.KindInvalidData},
		{"wrong type", `"two"`, errors.KindTypeMismatch},
		{"out of range", `-1`, errors.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), addTwoFunction(t), rawArgs(tt.arg, `3`))
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestInvokeVoidResult(t *testing.T) {
	inv := New(&fakeEngine{inst: &fakeInstance{}})

	fn := schema.Function{Name: "ping"}
	out, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), fn, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(out) != `null` {
		t.Errorf("result = %s, want null", out)
	}
}

func TestInvokeInstantiationFailure(t *testing.T) {
	inv := New(&fakeEngine{err: fmt.Errorf("no memory")})

	_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), schema.Function{Name: "ping"}, nil)
	if !errors.IsKind(err, errors.KindInstantiation) {
		t.Fatalf("err = %v, want instantiation failure", err)
	}
}

func TestInvokeCallFailure(t *testing.T) {
	inst := &fakeInstance{err: fmt.Errorf("trap: unreachable")}
	inv := New(&fakeEngine{inst: inst})

	_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), schema.Function{Name: "ping"}, nil)
	if !errors.IsKind(err, errors.KindCallFailure) {
		t.Fatalf("err = %v, want call failure", err)
	}
	if !inst.closed {
		t.Error("instance was not closed after failed call")
	}
}

func resultFunction(t *testing.T) schema.Function {
	t.Helper()
	return schema.Function{
		Name:   "fetch",
		Result: mustSchema(t, typeDef(&wit.Result{OK: wit.String{}, Err: wit.String{}})),
	}
}

func TestInvokeUnwrapsResultOK(t *testing.T) {
	tests := []struct {
		name   string
		native any
	}{
		{"wrapped ok side", map[string]any{"ok": "fine"}},
		{"engine already unwrapped", "fine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := New(&fakeEngine{inst: &fakeInstance{result: tt.native}})

			out, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), resultFunction(t), nil)
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if string(out) != `"fine"` {
				t.Errorf("result = %s, want \"fine\"", out)
			}
		})
	}
}

func TestInvokeResultErrorFailsCall(t *testing.T) {
	inv := New(&fakeEngine{inst: &fakeInstance{result: map[string]any{"err": "boom"}}})

	_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), resultFunction(t), nil)
	if !errors.IsKind(err, errors.KindGuestError) {
		t.Fatalf("err = %v, want guest error", err)
	}
	if !strings.Contains(err.Error(), `"boom"`) {
		t.Errorf("err = %v, want marshaled payload in message", err)
	}
}

func TestInvokeResultErrorWithoutPayload(t *testing.T) {
	fn := schema.Function{
		Name:   "check",
		Result: mustSchema(t, typeDef(&wit.Result{})),
	}
	inv := New(&fakeEngine{inst: &fakeInstance{result: map[string]any{"err": nil}}})

	_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), fn, nil)
	if !errors.IsKind(err, errors.KindGuestError) {
		t.Fatalf("err = %v, want guest error", err)
	}
}

func TestInvokeReconstructsResultSlots(t *testing.T) {
	fn := schema.Function{
		Name:   "stat",
		Result: mustSchema(t, pointType()),
	}
	inv := New(&fakeEngine{inst: &fakeInstance{result: []any{int32(3), int32(-4), "origin"}}})

	out, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), fn, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("result is not a JSON object: %v", err)
	}
	if decoded["x"] != float64(3) || decoded["y"] != float64(-4) || decoded["label"] != "origin" {
		t.Errorf("result = %v", decoded)
	}
}

func TestInvokeResultSlotCountMismatch(t *testing.T) {
	fn := schema.Function{
		Name:   "stat",
		Result: mustSchema(t, pointType()),
	}
	inv := New(&fakeEngine{inst: &fakeInstance{result: []any{int32(3)}}})

	_, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), fn, nil)
	if !errors.IsKind(err, errors.KindInvalidData) {
		t.Fatalf("err = %v, want invalid data", err)
	}
}

func TestInvokeListResultStaysArray(t *testing.T) {
	fn := schema.Function{
		Name:   "primes",
		Result: mustSchema(t, typeDef(&wit.List{Type: wit.U32{}})),
	}
	inv := New(&fakeEngine{inst: &fakeInstance{result: []any{uint32(2), uint32(3), uint32(5)}}})

	out, err := inv.Invoke(context.Background(), &registry.ComponentSpec{Name: "calc"}, testRegistries(t, nil), fn, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if string(out) != `[2,3,5]` {
		t.Errorf("result = %s, want [2,3,5]", out)
	}
}
