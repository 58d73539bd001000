package invoke

import (
	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/schema"
)

// toJSON converts a native engine value back into a JSON-encodable value,
// directed by the schema descriptor. Engines hand back typed Go numbers;
// everything numeric normalizes to float64 on the way out.
func toJSON(v any, s *schema.Value, path []string) (any, error) {
	if v == nil {
		return nil, nil
	}

	if s != nil {
		switch {
		case s.IsOptionSchema():
			return toJSON(v, s.OptionInner(), path)
		case s.IsResultSchema():
			return resultToJSON(v, s, path)
		case s.IsVariantSchema():
			return variantToJSON(v, s, path)
		}
	}

	switch val := v.(type) {
	case bool, string:
		return val, nil

	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil

	case []any:
		return sliceToJSON(val, s, path)

	case map[string]any:
		return objectToJSON(val, s, path)
	}

	return nil, errors.New(errors.PhaseInvoke, errors.KindUnsupported).
		Path(path...).
		Detail("native value of type %T cannot be encoded as JSON", v).
		Build()
}

func sliceToJSON(val []any, s *schema.Value, path []string) (any, error) {
	elemSchema := func(i int) *schema.Value {
		if s == nil {
			return nil
		}
		if s.IsTupleSchema() && i < len(s.TupleItems) {
			return s.TupleItems[i]
		}
		return s.Items
	}

	out := make([]any, len(val))
	for i, elem := range val {
		converted, err := toJSON(elem, elemSchema(i), append(path, indexSegment(i)))
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

func objectToJSON(val map[string]any, s *schema.Value, path []string) (any, error) {
	propSchema := func(name string) *schema.Value {
		if s == nil {
			return nil
		}
		for _, p := range s.Properties {
			if p.Name == name {
				return p.Schema
			}
		}
		return nil
	}

	out := make(map[string]any, len(val))
	for name, fv := range val {
		converted, err := toJSON(fv, propSchema(name), append(path, name))
		if err != nil {
			return nil, err
		}
		out[name] = converted
	}
	return out, nil
}

func variantToJSON(v any, s *schema.Value, path []string) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseInvoke, path, jsonTypeName(v), "variant")
	}
	caseName, ok := obj["type"].(string)
	if !ok {
		return nil, errors.FieldMissing(errors.PhaseInvoke, path, "type")
	}

	out := map[string]any{"type": caseName}
	if payload, has := obj["value"]; has && payload != nil {
		payloadSchema, _ := s.VariantCase(caseName)
		converted, err := toJSON(payload, payloadSchema, append(path, caseName))
		if err != nil {
			return nil, err
		}
		out["value"] = converted
	}
	return out, nil
}

func resultToJSON(v any, s *schema.Value, path []string) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseInvoke, path, jsonTypeName(v), "result")
	}
	okSchema, errSchema := s.ResultSides()

	if payload, has := obj["ok"]; has {
		converted, err := toJSON(payload, okSchema, append(path, "ok"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": converted}, nil
	}
	for _, key := range []string{"err", "error"} {
		if payload, has := obj[key]; has {
			converted, err := toJSON(payload, errSchema, append(path, "error"))
			if err != nil {
				return nil, err
			}
			return map[string]any{"error": converted}, nil
		}
	}
	return nil, errors.FieldMissing(errors.PhaseInvoke, path, "ok")
}
