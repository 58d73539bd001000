package invoke

import (
	"strconv"
	"unicode/utf8"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/schema"
)

// fromJSON converts a decoded JSON value into the engine's native
// representation, directed by the schema descriptor. The rules mirror
// the reflector's schema production in reverse.
func fromJSON(v any, s *schema.Value, path []string) (any, error) {
	if s == nil {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
			Path(path...).
			Detail("no schema for value").
			Build()
	}

	switch {
	case s.IsOptionSchema():
		if v == nil {
			return nil, nil
		}
		return fromJSON(v, s.OptionInner(), path)

	case s.IsResultSchema():
		return resultFromJSON(v, s, path)

	case s.IsVariantSchema():
		return variantFromJSON(v, s, path)
	}

	switch s.Type {
	case "boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(v, "boolean", path)
		}
		return b, nil

	case "number":
		n, ok := v.(float64)
		if !ok {
			return nil, mismatch(v, "number", path)
		}
		if s.Minimum != nil && n < *s.Minimum {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
				Path(path...).
				Value(n).
				Detail("value below minimum %v", *s.Minimum).
				Build()
		}
		if s.Maximum != nil && n > *s.Maximum {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
				Path(path...).
				Value(n).
				Detail("value above maximum %v", *s.Maximum).
				Build()
		}
		return n, nil

	case "string":
		str, ok := v.(string)
		if !ok {
			return nil, mismatch(v, "string", path)
		}
		if len(s.Enum) > 0 {
			if !contains(s.Enum, str) {
				return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
					Path(path...).
					Value(str).
					Detail("value is not one of the declared cases").
					Build()
			}
			return str, nil
		}
		if s.IsCharSchema() && utf8.RuneCountInString(str) != 1 {
			return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
				Path(path...).
				Value(str).
				Detail("expected a single character").
				Build()
		}
		return str, nil

	case "null":
		if v != nil {
			return nil, mismatch(v, "null", path)
		}
		return nil, nil

	case "object":
		return recordFromJSON(v, s, path)

	case "array":
		return arrayFromJSON(v, s, path)
	}

	return nil, errors.New(errors.PhaseInvoke, errors.KindUnsupported).
		Path(path...).
		Detail("schema shape cannot be marshaled").
		Build()
}

func recordFromJSON(v any, s *schema.Value, path []string) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(v, "object", path)
	}

	known := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		known[p.Name] = true
	}
	for name := range obj {
		if !known[name] {
			return nil, errors.FieldUnknown(errors.PhaseInvoke, path, name)
		}
	}

	required := s.RequiredSet()
	out := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		fv, present := obj[p.Name]
		if !present {
			if required[p.Name] {
				return nil, errors.FieldMissing(errors.PhaseInvoke, path, p.Name)
			}
			// Absent optional field defaults to option none.
			out[p.Name] = nil
			continue
		}
		converted, err := fromJSON(fv, p.Schema, append(path, p.Name))
		if err != nil {
			return nil, err
		}
		out[p.Name] = converted
	}
	return out, nil
}

func arrayFromJSON(v any, s *schema.Value, path []string) (any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, mismatch(v, "array", path)
	}

	if s.IsTupleSchema() {
		if len(arr) != len(s.TupleItems) {
			return nil, errors.New(errors.PhaseInvoke, errors.KindArityMismatch).
				Path(path...).
				Detail("expected %d tuple elements, got %d", len(s.TupleItems), len(arr)).
				Build()
		}
		out := make([]any, len(arr))
		for i, elem := range arr {
			converted, err := fromJSON(elem, s.TupleItems[i], append(path, indexSegment(i)))
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}

	if s.IsFlagsSchema() {
		seen := make(map[string]bool, len(arr))
		out := make([]any, 0, len(arr))
		for i, elem := range arr {
			name, ok := elem.(string)
			if !ok {
				return nil, mismatch(elem, "string", append(path, indexSegment(i)))
			}
			if !contains(s.Items.Enum, name) {
				return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
					Path(path...).
					Value(name).
					Detail("unknown flag").
					Build()
			}
			if seen[name] {
				return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
					Path(path...).
					Value(name).
					Detail("duplicate flag").
					Build()
			}
			seen[name] = true
			out = append(out, name)
		}
		return out, nil
	}

	out := make([]any, len(arr))
	for i, elem := range arr {
		converted, err := fromJSON(elem, s.Items, append(path, indexSegment(i)))
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

func variantFromJSON(v any, s *schema.Value, path []string) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(v, "object", path)
	}
	caseName, ok := obj["type"].(string)
	if !ok {
		return nil, errors.FieldMissing(errors.PhaseInvoke, path, "type")
	}
	payloadSchema, found := s.VariantCase(caseName)
	if !found {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
			Path(path...).
			Value(caseName).
			Detail("unknown variant case").
			Build()
	}

	native := map[string]any{"type": caseName}
	payload, hasPayload := obj["value"]
	if payloadSchema == nil {
		if hasPayload {
			return nil, errors.FieldUnknown(errors.PhaseInvoke, path, "value")
		}
		return native, nil
	}
	if !hasPayload {
		return nil, errors.FieldMissing(errors.PhaseInvoke, path, "value")
	}
	converted, err := fromJSON(payload, payloadSchema, append(path, caseName))
	if err != nil {
		return nil, err
	}
	native["value"] = converted
	return native, nil
}

func resultFromJSON(v any, s *schema.Value, path []string) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, mismatch(v, "object", path)
	}
	okSchema, errSchema := s.ResultSides()

	if payload, present := obj["ok"]; present {
		converted, err := sidePayloadFromJSON(payload, okSchema, append(path, "ok"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": converted}, nil
	}
	if payload, present := obj["error"]; present {
		converted, err := sidePayloadFromJSON(payload, errSchema, append(path, "error"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"err": converted}, nil
	}
	return nil, errors.FieldMissing(errors.PhaseInvoke, path, "ok")
}

func sidePayloadFromJSON(payload any, s *schema.Value, path []string) (any, error) {
	if s != nil && s.Type == "null" {
		if payload != nil {
			return nil, mismatch(payload, "null", path)
		}
		return nil, nil
	}
	return fromJSON(payload, s, path)
}

func mismatch(v any, want string, path []string) error {
	return errors.TypeMismatch(errors.PhaseInvoke, path, jsonTypeName(v), want)
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func indexSegment(i int) string {
	return strconv.Itoa(i)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
