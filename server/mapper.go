package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wippyai/component-host/registry"
	"github.com/wippyai/component-host/schema"
)

// Binding ties one MCP tool to the component function it invokes.
type Binding struct {
	Component string
	Function  schema.Function
	Tool      mcp.Tool
}

// MapTools builds tool definitions for every function of every exposed
// component. Tool names are component_function; when two interfaces of
// one component export the same function name, the interface name is
// folded in to keep tool names unique.
func MapTools(regs *registry.Registries) ([]Binding, error) {
	type candidate struct {
		component string
		fn        schema.Function
	}

	var candidates []candidate
	counts := make(map[string]int)
	for _, spec := range regs.Components() {
		if !spec.Exposed {
			continue
		}
		keys := make([]string, 0, len(spec.Functions))
		for key := range spec.Functions {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fn := spec.Functions[key]
			candidates = append(candidates, candidate{component: spec.Name, fn: fn})
			counts[toolName(spec.Name, fn, false)]++
		}
	}

	bindings := make([]Binding, 0, len(candidates))
	for _, c := range candidates {
		name := toolName(c.component, c.fn, false)
		if counts[name] > 1 {
			name = toolName(c.component, c.fn, true)
		}

		inputSchema, err := inputSchemaJSON(c.fn)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, Binding{
			Component: c.component,
			Function:  c.fn,
			Tool:      mcp.NewToolWithRawSchema(name, toolDescription(c.component, c.fn), inputSchema),
		})
	}
	return bindings, nil
}

func toolName(component string, fn schema.Function, withInterface bool) string {
	parts := []string{component}
	if withInterface && fn.Interface.Name != "" {
		parts = append(parts, fn.Interface.Name)
	}
	parts = append(parts, fn.Name)
	return sanitizeToolName(strings.Join(parts, "_"))
}

// sanitizeToolName keeps tool names within the MCP identifier charset.
func sanitizeToolName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func toolDescription(component string, fn schema.Function) string {
	if fn.Docs != "" {
		return fn.Docs
	}
	return fmt.Sprintf("Call %s on component %s", fn.Key(), component)
}

// inputSchemaJSON renders the function's parameters as one object
// schema. Optional parameters are left out of the required set.
func inputSchemaJSON(fn schema.Function) (json.RawMessage, error) {
	props := make([]schema.Property, 0, len(fn.Params))
	required := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		props = append(props, schema.Property{Name: p.Name, Schema: p.Schema})
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	v := &schema.Value{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
	return json.Marshal(v)
}

// wrapResult shapes the invoker's raw JSON result for tool transport.
// Array results are wrapped under a derived plural property and option
// results under "result", so the output is always self-describing.
func wrapResult(fn schema.Function, raw json.RawMessage) (string, error) {
	if fn.Result == nil {
		return string(raw), nil
	}

	switch {
	case fn.Result.IsOptionSchema():
		return wrapUnder("result", raw)
	case fn.Result.Type == "array":
		return wrapUnder(pluralProperty(fn), raw)
	}
	return string(raw), nil
}

func wrapUnder(prop string, raw json.RawMessage) (string, error) {
	out, err := json.Marshal(map[string]json.RawMessage{prop: raw})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// pluralProperty derives the wrapping property for an array result from
// the element type's title, falling back to the function name.
func pluralProperty(fn schema.Function) string {
	base := ""
	if fn.Result.Items != nil {
		base = fn.Result.Items.Title
	}
	if base == "" {
		base = fn.Name
	}
	return pluralize(strings.ToLower(base))
}

func pluralize(s string) string {
	if s == "" {
		return "results"
	}
	switch {
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "z"),
		strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	case strings.HasSuffix(s, "y") && len(s) > 1 && !isVowel(s[len(s)-2]):
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}
