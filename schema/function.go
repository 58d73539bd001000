package schema

// Function describes one exported function of a component.
type Function struct {
	Interface Interface
	Name      string
	Docs      string
	Params    []FunctionParam
	Result    *Value
}

// FunctionParam is a single named parameter. Optional mirrors whether the
// parameter's WIT type is an option, so callers may omit it.
type FunctionParam struct {
	Name     string
	Optional bool
	Schema   *Value
}

// Key returns the unique (interface, function) pair as a stable string.
// Functions exported directly by a world, without an enclosing interface,
// are keyed by their bare name.
func (f Function) Key() string {
	if f.Interface == (Interface{}) {
		return f.Name
	}
	return f.Interface.String() + "#" + f.Name
}
