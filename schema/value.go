package schema

import (
	"bytes"
	"encoding/json"
)

// Value is a JSON-Schema-shaped description of a WIT type. It is a plain
// immutable descriptor: the reflector produces it, the transport layer
// renders it, and the invoker consults it for result reconstruction.
type Value struct {
	Title                string
	Type                 string
	Const                string
	Enum                 []string
	Minimum              *float64
	Maximum              *float64
	MinLength            *int
	MaxLength            *int
	Properties           []Property
	Required             []string
	AdditionalProperties *bool
	Items                *Value
	TupleItems           []*Value
	MinItems             *int
	MaxItems             *int
	UniqueItems          bool
	AnyOf                []*Value
	OneOf                []*Value
}

// Property is one named member of an object schema. Order is significant:
// it mirrors WIT field declaration order, which the invoker relies on when
// reconstructing multi-slot results positionally.
type Property struct {
	Name   string
	Schema *Value
}

// IsObject reports whether the schema describes an object with known,
// ordered properties.
func (v *Value) IsObject() bool {
	return v != nil && v.Type == "object" && len(v.Properties) > 0
}

// PropertyNames returns property names in declaration order.
func (v *Value) PropertyNames() []string {
	names := make([]string, len(v.Properties))
	for i, p := range v.Properties {
		names[i] = p.Name
	}
	return names
}

// MarshalJSON renders the schema with deterministic key and property order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true

	field := func(name string, val any) error {
		if !first {
			b.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		b.Write(key)
		b.WriteByte(':')
		enc, err := json.Marshal(val)
		if err != nil {
			return err
		}
		b.Write(enc)
		return nil
	}

	if v.Title != "" {
		if err := field("title", v.Title); err != nil {
			return nil, err
		}
	}
	if v.Type != "" {
		if err := field("type", v.Type); err != nil {
			return nil, err
		}
	}
	if v.Const != "" {
		if err := field("const", v.Const); err != nil {
			return nil, err
		}
	}
	if v.Enum != nil {
		if err := field("enum", v.Enum); err != nil {
			return nil, err
		}
	}
	if v.Minimum != nil {
		if err := field("minimum", *v.Minimum); err != nil {
			return nil, err
		}
	}
	if v.Maximum != nil {
		if err := field("maximum", *v.Maximum); err != nil {
			return nil, err
		}
	}
	if v.MinLength != nil {
		if err := field("minLength", *v.MinLength); err != nil {
			return nil, err
		}
	}
	if v.MaxLength != nil {
		if err := field("maxLength", *v.MaxLength); err != nil {
			return nil, err
		}
	}
	if len(v.Properties) > 0 {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(`"properties":{`)
		for i, p := range v.Properties {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(p.Name)
			if err != nil {
				return nil, err
			}
			b.Write(key)
			b.WriteByte(':')
			enc, err := json.Marshal(p.Schema)
			if err != nil {
				return nil, err
			}
			b.Write(enc)
		}
		b.WriteByte('}')
	}
	if v.Required != nil {
		if err := field("required", v.Required); err != nil {
			return nil, err
		}
	}
	if v.AdditionalProperties != nil {
		if err := field("additionalProperties", *v.AdditionalProperties); err != nil {
			return nil, err
		}
	}
	if len(v.TupleItems) > 0 {
		if err := field("items", v.TupleItems); err != nil {
			return nil, err
		}
	} else if v.Items != nil {
		if err := field("items", v.Items); err != nil {
			return nil, err
		}
	}
	if v.MinItems != nil {
		if err := field("minItems", *v.MinItems); err != nil {
			return nil, err
		}
	}
	if v.MaxItems != nil {
		if err := field("maxItems", *v.MaxItems); err != nil {
			return nil, err
		}
	}
	if v.UniqueItems {
		if err := field("uniqueItems", true); err != nil {
			return nil, err
		}
	}
	if len(v.AnyOf) > 0 {
		if err := field("anyOf", v.AnyOf); err != nil {
			return nil, err
		}
	}
	if len(v.OneOf) > 0 {
		if err := field("oneOf", v.OneOf); err != nil {
			return nil, err
		}
	}

	b.WriteByte('}')
	return b.Bytes(), nil
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func boolPtr(b bool) *bool        { return &b }
