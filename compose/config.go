package compose

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/wippyai/component-host/component"
	"github.com/wippyai/component-host/errors"
)

// ConfigInterface is the configuration-provider interface a component
// imports to receive key/value configuration.
const ConfigInterface = "wasi:config/store@0.2.0-draft"

// configSection is the custom section carrying the provider's value
// table. The execution engine reads it to serve the store interface for
// a synthesized provider.
const configSection = "component-host:config"

// SynthesizeConfig builds a minimal component that exports the
// configuration-provider interface backed by the given values. Every
// value is converted to its string form first; nested objects and nulls
// cannot be expressed as configuration and are rejected. An empty map is
// valid and yields a provider that satisfies the import but supplies no
// values.
func SynthesizeConfig(values map[string]any) ([]byte, error) {
	table := make(map[string]string, len(values))
	for key, v := range values {
		s, err := stringifyConfigValue(key, v)
		if err != nil {
			return nil, err
		}
		table[key] = s
	}

	data, err := json.Marshal(table)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindConfigError, err, "encode value table")
	}

	e := component.NewEncoder()
	e.Custom(configSection, data)
	e.InlineInstance(nil)
	e.Export(ConfigInterface, component.SortInstance, 0)
	return e.Bytes(), nil
}

// ConfigTable extracts the value table of a synthesized provider from a
// binary, searching nested components so composed outputs keep their
// configuration reachable. Returns nil when the binary carries none.
func ConfigTable(data []byte) (map[string]string, error) {
	if !component.IsComponent(data) {
		return nil, nil
	}
	comp, err := component.Decode(data)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindMalformedInput).
			Cause(err).
			Detail("decode component while looking for configuration").
			Build()
	}

	for _, cs := range comp.CustomSections {
		if cs.Name != configSection {
			continue
		}
		table := make(map[string]string)
		if err := json.Unmarshal(cs.Data, &table); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindConfigError, err, "decode value table")
		}
		return table, nil
	}

	for _, nested := range comp.Nested {
		table, err := ConfigTable(nested)
		if err != nil || table != nil {
			return table, err
		}
	}
	return nil, nil
}

// stringifyConfigValue converts one configuration value to the string
// form the store interface serves. Arrays become comma-joined strings of
// their stringified scalar elements.
func stringifyConfigValue(key string, v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case []any:
		parts := make([]string, 0, len(val))
		for _, elem := range val {
			switch elem.(type) {
			case []any, map[string]any, nil:
				return "", errors.ConfigValue(key, "array elements must be scalars")
			}
			s, err := stringifyConfigValue(key, elem)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[string]any:
		return "", errors.ConfigValue(key, "nested objects cannot be expressed as configuration")
	case nil:
		return "", errors.ConfigValue(key, "null cannot be expressed as configuration")
	default:
		return "", errors.ConfigValue(key, "unsupported value type")
	}
}
