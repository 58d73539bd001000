package invoke

import (
	"encoding/json"
	"reflect"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/schema"
)

func typeDef(kind wit.TypeDefKind) *wit.TypeDef {
	return &wit.TypeDef{Kind: kind}
}

func mustSchema(t *testing.T, typ wit.Type) *schema.Value {
	t.Helper()
	s, err := schema.FromWIT(typ)
	if err != nil {
		t.Fatalf("FromWIT: %v", err)
	}
	return s
}

func pointType() wit.Type {
	return typeDef(&wit.Record{
		Fields: []wit.Field{
			{Name: "x", Type: wit.S32{}},
			{Name: "y", Type: wit.S32{}},
			{Name: "label", Type: typeDef(&wit.Option{Type: wit.String{}})},
		},
	})
}

func shapeType() wit.Type {
	return typeDef(&wit.Variant{
		Cases: []wit.Case{
			{Name: "circle", Type: wit.F64{}},
			{Name: "empty"},
		},
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		typ  wit.Type
		in   string
	}{
		{"bool", wit.Bool{}, `true`},
		{"u8", wit.U8{}, `200`},
		{"s64", wit.S64{}, `-9007199254740991`},
		{"f64", wit.F64{}, `3.25`},
		{"char", wit.Char{}, `"x"`},
		{"string", wit.String{}, `"hello"`},
		{"record", pointType(), `{"x":1,"y":-2,"label":"origin"}`},
		{"record with absent option", pointType(), `{"x":1,"y":-2,"label":null}`},
		{"variant with payload", shapeType(), `{"type":"circle","value":2.5}`},
		{"variant without payload", shapeType(), `{"type":"empty"}`},
		{"enum", typeDef(&wit.Enum{Cases: []wit.EnumCase{{Name: "red"}, {Name: "green"}}}), `"green"`},
		{"flags", typeDef(&wit.Flags{Flags: []wit.Flag{{Name: "read"}, {Name: "write"}}}), `["read","write"]`},
		{"option present", typeDef(&wit.Option{Type: wit.U32{}}), `7`},
		{"option absent", typeDef(&wit.Option{Type: wit.U32{}}), `null`},
		{"result ok", typeDef(&wit.Result{OK: wit.String{}, Err: wit.String{}}), `{"ok":"fine"}`},
		{"result error", typeDef(&wit.Result{OK: wit.String{}, Err: wit.String{}}), `{"error":"boom"}`},
		{"list", typeDef(&wit.List{Type: wit.U32{}}), `[1,2,3]`},
		{"list of records", typeDef(&wit.List{Type: pointType()}), `[{"x":1,"y":2,"label":"a"}]`},
		{"tuple", typeDef(&wit.Tuple{Types: []wit.Type{wit.String{}, wit.U32{}}}), `["id",42]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSchema(t, tt.typ)

			var decoded any
			if err := json.Unmarshal([]byte(tt.in), &decoded); err != nil {
				t.Fatalf("bad test input: %v", err)
			}

			native, err := fromJSON(decoded, s, nil)
			if err != nil {
				t.Fatalf("fromJSON: %v", err)
			}
			back, err := toJSON(native, s, nil)
			if err != nil {
				t.Fatalf("toJSON: %v", err)
			}
			if !reflect.DeepEqual(back, decoded) {
				t.Errorf("round trip changed value:\n in:  %#v\n out: %#v", decoded, back)
			}
		})
	}
}

func TestMarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  wit.Type
		in   string
		kind errors.Kind
	}{
		{"bool from number", wit.Bool{}, `1`, errors.KindTypeMismatch},
		{"number from string", wit.U32{}, `"7"`, errors.KindTypeMismatch},
		{"u8 above maximum", wit.U8{}, `256`, errors.KindInvalidData},
		{"s8 below minimum", wit.S8{}, `-129`, errors.KindInvalidData},
		{"char too long", wit.Char{}, `"ab"`, errors.KindInvalidData},
		{"missing required field", pointType(), `{"x":1}`, errors.KindFieldMissing},
		{"unknown field", pointType(), `{"x":1,"y":2,"z":3}`, errors.KindFieldUnknown},
		{"unknown variant case", shapeType(), `{"type":"square"}`, errors.KindInvalidData},
		{"payload on payloadless case", shapeType(), `{"type":"empty","value":1}`, errors.KindFieldUnknown},
		{"missing variant payload", shapeType(), `{"type":"circle"}`, errors.KindFieldMissing},
		{"enum outside cases", typeDef(&wit.Enum{Cases: []wit.EnumCase{{Name: "red"}}}), `"blue"`, errors.KindInvalidData},
		{"unknown flag", typeDef(&wit.Flags{Flags: []wit.Flag{{Name: "read"}}}), `["write"]`, errors.KindInvalidData},
		{"duplicate flag", typeDef(&wit.Flags{Flags: []wit.Flag{{Name: "read"}}}), `["read","read"]`, errors.KindInvalidData},
		{"tuple arity", typeDef(&wit.Tuple{Types: []wit.Type{wit.U32{}, wit.U32{}}}), `[1]`, errors.KindArityMismatch},
		{"result with neither side", typeDef(&wit.Result{OK: wit.String{}, Err: wit.String{}}), `{}`, errors.KindFieldMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustSchema(t, tt.typ)

			var decoded any
			if err := json.Unmarshal([]byte(tt.in), &decoded); err != nil {
				t.Fatalf("bad test input: %v", err)
			}

			_, err := fromJSON(decoded, s, nil)
			if !errors.IsKind(err, tt.kind) {
				t.Errorf("err = %v, want kind %s", err, tt.kind)
			}
		})
	}
}

func TestAbsentOptionalFieldDefaultsToNone(t *testing.T) {
	s := mustSchema(t, pointType())

	native, err := fromJSON(map[string]any{"x": float64(1), "y": float64(2)}, s, nil)
	if err != nil {
		t.Fatalf("fromJSON: %v", err)
	}
	rec, ok := native.(map[string]any)
	if !ok {
		t.Fatalf("native = %T", native)
	}
	if v, present := rec["label"]; !present || v != nil {
		t.Errorf("label = %#v, want present and nil", v)
	}
}

func TestToJSONNormalizesNumericTypes(t *testing.T) {
	s := mustSchema(t, wit.U64{})

	for _, v := range []any{uint64(7), int64(7), uint32(7), float32(7), 7} {
		got, err := toJSON(v, s, nil)
		if err != nil {
			t.Fatalf("toJSON(%T): %v", v, err)
		}
		if got != float64(7) {
			t.Errorf("toJSON(%T) = %#v, want float64(7)", v, got)
		}
	}
}
