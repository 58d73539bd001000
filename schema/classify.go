package schema

// Shape classifiers over Value. The invoker marshals JSON arguments and
// reconstructs results purely from these descriptors, so the recognizers
// here are the inverse of the FromWIT production rules.

// IsOptionSchema reports whether the schema is the anyOf form an option
// produces: the inner schema alternated with null.
func (v *Value) IsOptionSchema() bool {
	return v != nil && len(v.AnyOf) == 2 && v.AnyOf[1] != nil && v.AnyOf[1].Type == "null"
}

// OptionInner returns the present-value schema of an option.
func (v *Value) OptionInner() *Value {
	return v.AnyOf[0]
}

// IsResultSchema reports whether the schema is the oneOf form a
// success/error union produces.
func (v *Value) IsResultSchema() bool {
	if v == nil || len(v.OneOf) != 2 {
		return false
	}
	return sideProperty(v.OneOf[0]) == "ok" && sideProperty(v.OneOf[1]) == "error"
}

// ResultSides returns the ok and error payload schemas of a result
// schema. A payloadless side is represented by a null-typed schema.
func (v *Value) ResultSides() (okSide, errSide *Value) {
	return v.OneOf[0].Properties[0].Schema, v.OneOf[1].Properties[0].Schema
}

func sideProperty(side *Value) string {
	if side == nil || len(side.Properties) != 1 {
		return ""
	}
	return side.Properties[0].Name
}

// IsVariantSchema reports whether the schema is the oneOf form a tagged
// union produces: every alternative an object with a constant "type"
// discriminant.
func (v *Value) IsVariantSchema() bool {
	if v == nil || len(v.OneOf) == 0 {
		return false
	}
	for _, c := range v.OneOf {
		if c == nil || len(c.Properties) == 0 {
			return false
		}
		disc := c.Properties[0]
		if disc.Name != "type" || disc.Schema == nil || disc.Schema.Const == "" {
			return false
		}
	}
	return true
}

// VariantCase finds the alternative whose discriminant matches name and
// returns its payload schema, nil when the case carries none.
func (v *Value) VariantCase(name string) (payload *Value, found bool) {
	for _, c := range v.OneOf {
		if c.Properties[0].Schema.Const != name {
			continue
		}
		for _, p := range c.Properties {
			if p.Name == "value" {
				return p.Schema, true
			}
		}
		return nil, true
	}
	return nil, false
}

// IsTupleSchema reports whether the schema uses positional items.
func (v *Value) IsTupleSchema() bool {
	return v != nil && len(v.TupleItems) > 0
}

// IsFlagsSchema reports whether the schema is the array-of-unique-names
// form a flags type produces.
func (v *Value) IsFlagsSchema() bool {
	return v != nil && v.Type == "array" && v.UniqueItems &&
		v.Items != nil && len(v.Items.Enum) > 0
}

// IsCharSchema reports whether the schema describes a single character.
func (v *Value) IsCharSchema() bool {
	return v != nil && v.Type == "string" &&
		v.MinLength != nil && *v.MinLength == 1 &&
		v.MaxLength != nil && *v.MaxLength == 1
}

// RequiredSet returns the required property names as a set.
func (v *Value) RequiredSet() map[string]bool {
	set := make(map[string]bool, len(v.Required))
	for _, name := range v.Required {
		set[name] = true
	}
	return set
}
