package schema

import (
	"math"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/component-host/errors"
)

// FromWIT produces the JSON-Schema-shaped descriptor for a WIT type.
// It is total over the WIT type system: resource handles are rejected
// with a typed error rather than silently mapped, since values of those
// types cannot cross a JSON boundary.
func FromWIT(t wit.Type) (*Value, error) {
	switch typ := t.(type) {
	case wit.Bool:
		return &Value{Type: "boolean"}, nil
	case wit.U8:
		return numberSchema(0, math.MaxUint8), nil
	case wit.U16:
		return numberSchema(0, math.MaxUint16), nil
	case wit.U32:
		return numberSchema(0, math.MaxUint32), nil
	case wit.U64:
		return numberSchema(0, math.MaxUint64), nil
	case wit.S8:
		return numberSchema(math.MinInt8, math.MaxInt8), nil
	case wit.S16:
		return numberSchema(math.MinInt16, math.MaxInt16), nil
	case wit.S32:
		return numberSchema(math.MinInt32, math.MaxInt32), nil
	case wit.S64:
		return numberSchema(math.MinInt64, math.MaxInt64), nil
	case wit.F32, wit.F64:
		return &Value{Type: "number"}, nil
	case wit.Char:
		return &Value{Type: "string", MinLength: intPtr(1), MaxLength: intPtr(1)}, nil
	case wit.String:
		return &Value{Type: "string"}, nil
	case *wit.TypeDef:
		return fromTypeDef(typ)
	default:
		return nil, errors.New(errors.PhaseReflect, errors.KindUnsupported).
			WitType(witTypeName(t)).
			Detail("type cannot be represented as JSON").
			Build()
	}
}

func fromTypeDef(td *wit.TypeDef) (*Value, error) {
	title := ""
	if td.Name != nil {
		title = *td.Name
	}

	switch kind := td.Kind.(type) {
	case *wit.Record:
		return recordSchema(title, kind)
	case *wit.Variant:
		return variantSchema(title, kind)
	case *wit.Enum:
		cases := make([]string, len(kind.Cases))
		for i, c := range kind.Cases {
			cases[i] = c.Name
		}
		return &Value{Title: title, Type: "string", Enum: cases}, nil
	case *wit.Flags:
		names := make([]string, len(kind.Flags))
		for i, f := range kind.Flags {
			names[i] = f.Name
		}
		return &Value{
			Title:       title,
			Type:        "array",
			Items:       &Value{Type: "string", Enum: names},
			UniqueItems: true,
		}, nil
	case *wit.Option:
		inner, err := FromWIT(kind.Type)
		if err != nil {
			return nil, err
		}
		return &Value{Title: title, AnyOf: []*Value{inner, {Type: "null"}}}, nil
	case *wit.Result:
		return resultSchema(title, kind)
	case *wit.List:
		items, err := FromWIT(kind.Type)
		if err != nil {
			return nil, err
		}
		return &Value{Title: title, Type: "array", Items: items}, nil
	case *wit.Tuple:
		items := make([]*Value, len(kind.Types))
		for i, t := range kind.Types {
			s, err := FromWIT(t)
			if err != nil {
				return nil, err
			}
			items[i] = s
		}
		n := len(items)
		return &Value{
			Title:      title,
			Type:       "array",
			TupleItems: items,
			MinItems:   intPtr(n),
			MaxItems:   intPtr(n),
		}, nil
	case *wit.Resource:
		return nil, unsupportedHandle(title, "resource")
	case *wit.Own:
		return nil, unsupportedHandle(title, "own handle")
	case *wit.Borrow:
		return nil, unsupportedHandle(title, "borrow handle")
	default:
		return nil, errors.New(errors.PhaseReflect, errors.KindUnsupported).
			WitType(title).
			Detail("unhandled type definition kind").
			Build()
	}
}

func recordSchema(title string, rec *wit.Record) (*Value, error) {
	props := make([]Property, 0, len(rec.Fields))
	required := make([]string, 0, len(rec.Fields))
	for _, f := range rec.Fields {
		s, err := FromWIT(f.Type)
		if err != nil {
			return nil, err
		}
		props = append(props, Property{Name: f.Name, Schema: s})
		if !IsOptional(f.Type) {
			required = append(required, f.Name)
		}
	}
	return &Value{
		Title:                title,
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: boolPtr(false),
	}, nil
}

func variantSchema(title string, v *wit.Variant) (*Value, error) {
	cases := make([]*Value, 0, len(v.Cases))
	for _, c := range v.Cases {
		props := []Property{{Name: "type", Schema: &Value{Const: c.Name}}}
		required := []string{"type"}
		if c.Type != nil {
			payload, err := FromWIT(c.Type)
			if err != nil {
				return nil, err
			}
			props = append(props, Property{Name: "value", Schema: payload})
			required = append(required, "value")
		}
		cases = append(cases, &Value{
			Type:                 "object",
			Properties:           props,
			Required:             required,
			AdditionalProperties: boolPtr(false),
		})
	}
	return &Value{Title: title, OneOf: cases}, nil
}

func resultSchema(title string, r *wit.Result) (*Value, error) {
	side := func(name string, t wit.Type) (*Value, error) {
		var payload *Value
		if t != nil {
			s, err := FromWIT(t)
			if err != nil {
				return nil, err
			}
			payload = s
		} else {
			payload = &Value{Type: "null"}
		}
		return &Value{
			Type:       "object",
			Properties: []Property{{Name: name, Schema: payload}},
			Required:   []string{name},
		}, nil
	}
	ok, err := side("ok", r.OK)
	if err != nil {
		return nil, err
	}
	errSide, err := side("error", r.Err)
	if err != nil {
		return nil, err
	}
	return &Value{Title: title, OneOf: []*Value{ok, errSide}}, nil
}

// IsOptional reports whether a WIT type is an option. Optional record
// fields and parameters are omitted from required sets, and an absent
// JSON value for them defaults to option none.
func IsOptional(t wit.Type) bool {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return false
	}
	_, isOption := td.Kind.(*wit.Option)
	return isOption
}

// IsResult reports whether a WIT type is a success/error union.
func IsResult(t wit.Type) bool {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return false
	}
	_, isResult := td.Kind.(*wit.Result)
	return isResult
}

func numberSchema(min, max float64) *Value {
	return &Value{Type: "number", Minimum: floatPtr(min), Maximum: floatPtr(max)}
}

func unsupportedHandle(title, what string) error {
	return errors.New(errors.PhaseReflect, errors.KindUnsupported).
		WitType(title).
		Detail("%s types cannot be represented as JSON", what).
		Build()
}

func witTypeName(t wit.Type) string {
	if td, ok := t.(*wit.TypeDef); ok && td.Name != nil {
		return *td.Name
	}
	return ""
}
