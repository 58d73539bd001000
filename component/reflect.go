package component

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/component-host/errors"
	"github.com/wippyai/component-host/schema"
)

// Metadata carries the component's own package identity, derived from the
// first exported interface identifier. Components exporting only bare
// functions have no identity.
type Metadata struct {
	Namespace string
	Package   string
}

// Reflection is the decoded interface surface of one component world.
// Imports and Exports hold canonical interface identifiers plus any bare
// world-level function names. Functions is nil unless requested and maps
// the qualified function key ("iface#name", or the bare name) to its
// schema description.
type Reflection struct {
	Metadata  Metadata
	Imports   []string
	Exports   []string
	Functions map[string]schema.Function
}

// Reflect decodes a component binary's single world into its import and
// export identifier lists. When withFunctions is set it additionally
// produces a schema description of every exported function; skip it for
// pure-dependency components where the descriptions would be wasted work.
func Reflect(data []byte, withFunctions bool) (*Reflection, error) {
	if !IsComponent(data) {
		return nil, errors.MalformedInput(errors.PhaseReflect,
			"not a component binary: missing component preamble")
	}

	comp, err := Decode(data)
	if err != nil {
		return nil, errors.New(errors.PhaseReflect, errors.KindMalformedInput).
			Cause(err).
			Detail("decode component").
			Build()
	}

	if err := checkSingleWorld(comp); err != nil {
		return nil, err
	}

	refl := &Reflection{}

	for _, imp := range comp.Imports {
		switch imp.ExternKind {
		case ExternInstance, ExternFunc:
			id, err := canonicalName(imp.Name)
			if err != nil {
				return nil, err
			}
			refl.Imports = append(refl.Imports, id)
		}
	}

	for _, exp := range comp.Exports {
		switch exp.Sort {
		case SortInstance, SortFunc:
			id, err := canonicalName(exp.Name)
			if err != nil {
				return nil, err
			}
			refl.Exports = append(refl.Exports, id)
		}
	}

	refl.Metadata = deriveMetadata(refl.Exports)

	if withFunctions {
		funcs, err := extractFunctions(comp)
		if err != nil {
			return nil, err
		}
		refl.Functions = funcs
	}

	Logger().Debug("reflected component",
		zap.Int("imports", len(refl.Imports)),
		zap.Int("exports", len(refl.Exports)),
		zap.Int("functions", len(refl.Functions)))

	return refl, nil
}

// checkSingleWorld enforces the one-world rule. A component binary is
// itself one world; a package that bundles several nested components
// without instantiating any of them describes several worlds and cannot
// be hosted.
func checkSingleWorld(c *Component) error {
	if len(c.Nested) > 1 && len(c.Instances) == 0 {
		return errors.MalformedInput(errors.PhaseReflect,
			fmt.Sprintf("binary bundles %d worlds, expected exactly one", len(c.Nested)))
	}
	return nil
}

// canonicalName validates an import/export name. Names carrying a ':' must
// be well-formed interface identifiers; bare names pass through for
// world-level functions.
func canonicalName(name string) (string, error) {
	if !strings.ContainsRune(name, ':') {
		return name, nil
	}
	iface, err := schema.ParseInterface(name)
	if err != nil {
		return "", errors.New(errors.PhaseReflect, errors.KindMalformedInput).
			Cause(err).
			Detail("invalid interface identifier %q", name).
			Build()
	}
	return iface.String(), nil
}

func deriveMetadata(exports []string) Metadata {
	for _, id := range exports {
		iface, err := schema.ParseInterface(id)
		if err != nil {
			continue
		}
		return Metadata{Namespace: iface.Namespace, Package: iface.Package}
	}
	return Metadata{}
}

// extractFunctions walks the export section and describes every exported
// function: bare function exports directly, and every function inside an
// exported instance.
func extractFunctions(c *Component) (map[string]schema.Function, error) {
	tr := NewTypeResolver(c)
	funcs := make(map[string]schema.Function)

	for _, exp := range c.Exports {
		switch exp.Sort {
		case SortFunc:
			rf, err := resolveFuncIndex(c, tr, exp.SortIndex, 0)
			if err != nil {
				return nil, errors.New(errors.PhaseReflect, errors.KindMalformedInput).
					Cause(err).
					Detail("resolve exported function %q", exp.Name).
					Build()
			}
			fn, err := buildFunction(schema.Interface{}, exp.Name, rf)
			if err != nil {
				return nil, err
			}
			funcs[fn.Key()] = fn

		case SortInstance:
			iface, err := schema.ParseInterface(exp.Name)
			if err != nil {
				// Exported instances without interface identifiers carry
				// no callable surface for the host.
				continue
			}
			if err := collectInstanceFunctions(c, tr, iface, exp.SortIndex, funcs); err != nil {
				return nil, err
			}
		}
	}

	return funcs, nil
}

func collectInstanceFunctions(c *Component, tr *TypeResolver, iface schema.Interface, instIdx uint32, funcs map[string]schema.Function) error {
	if int(instIdx) >= len(c.Instances) {
		return errors.MalformedInput(errors.PhaseReflect,
			fmt.Sprintf("exported instance index %d out of range", instIdx))
	}
	inst := c.Instances[instIdx]

	switch inst.Kind {
	case InstanceInline:
		for _, ie := range inst.InlineExports {
			if ie.Sort != SortFunc {
				continue
			}
			rf, err := resolveFuncIndex(c, tr, ie.Idx, 0)
			if err != nil {
				return errors.New(errors.PhaseReflect, errors.KindMalformedInput).
					Cause(err).
					Detail("resolve function %q of interface %q", ie.Name, iface.String()).
					Build()
			}
			fn, err := buildFunction(iface, ie.Name, rf)
			if err != nil {
				return err
			}
			funcs[fn.Key()] = fn
		}
		return nil

	case InstanceImport:
		names, err := tr.FuncExports(instIdx)
		if err != nil {
			return errors.New(errors.PhaseReflect, errors.KindMalformedInput).
				Cause(err).
				Detail("inspect exported instance %q", iface.String()).
				Build()
		}
		for _, name := range names {
			rf, err := tr.ResolveExportedFunc(instIdx, name)
			if err != nil {
				return errors.New(errors.PhaseReflect, errors.KindMalformedInput).
					Cause(err).
					Detail("resolve function %q of interface %q", name, iface.String()).
					Build()
			}
			fn, err := buildFunction(iface, name, rf)
			if err != nil {
				return err
			}
			funcs[fn.Key()] = fn
		}
		return nil

	default:
		return errors.MalformedInput(errors.PhaseReflect,
			fmt.Sprintf("cannot describe functions of exported instance %q", iface.String()))
	}
}

const maxFuncResolveDepth = 16

// resolveFuncIndex resolves an entry of the function index space to its
// signature, chasing aliases through inline and imported instances.
func resolveFuncIndex(c *Component, tr *TypeResolver, idx uint32, depth int) (*ResolvedFunc, error) {
	if depth > maxFuncResolveDepth {
		return nil, fmt.Errorf("function alias chain exceeds depth %d", maxFuncResolveDepth)
	}
	if int(idx) >= len(c.Funcs) {
		return nil, fmt.Errorf("function index %d out of range", idx)
	}

	f := c.Funcs[idx]
	switch f.Kind {
	case FuncLift:
		return tr.ResolveFunc(f.TypeIndex)

	case FuncAlias:
		if int(f.InstanceIdx) >= len(c.Instances) {
			return nil, fmt.Errorf("aliased instance index %d out of range", f.InstanceIdx)
		}
		inst := c.Instances[f.InstanceIdx]
		switch inst.Kind {
		case InstanceImport:
			return tr.ResolveExportedFunc(f.InstanceIdx, f.ExportName)
		case InstanceInline:
			for _, ie := range inst.InlineExports {
				if ie.Name == f.ExportName && ie.Sort == SortFunc {
					return resolveFuncIndex(c, tr, ie.Idx, depth+1)
				}
			}
			return nil, fmt.Errorf("instance %d has no function export %q", f.InstanceIdx, f.ExportName)
		default:
			return nil, fmt.Errorf("cannot determine signature of %q aliased from instance %d", f.ExportName, f.InstanceIdx)
		}

	default:
		return nil, fmt.Errorf("unknown function entry kind %d", f.Kind)
	}
}

func buildFunction(iface schema.Interface, name string, rf *ResolvedFunc) (schema.Function, error) {
	fn := schema.Function{
		Interface: iface,
		Name:      name,
		Params:    make([]schema.FunctionParam, 0, len(rf.Params)),
	}

	for _, p := range rf.Params {
		v, err := schema.FromWIT(p.Type)
		if err != nil {
			return schema.Function{}, errors.New(errors.PhaseReflect, errors.KindUnsupported).
				Cause(err).
				Path(name, p.Name).
				Detail("describe parameter %q of function %q", p.Name, name).
				Build()
		}
		fn.Params = append(fn.Params, schema.FunctionParam{
			Name:     p.Name,
			Optional: schema.IsOptional(p.Type),
			Schema:   v,
		})
	}

	if rf.Result != nil {
		v, err := schema.FromWIT(rf.Result)
		if err != nil {
			return schema.Function{}, errors.New(errors.PhaseReflect, errors.KindUnsupported).
				Cause(err).
				Path(name).
				Detail("describe result of function %q", name).
				Build()
		}
		fn.Result = v
	}

	return fn, nil
}
