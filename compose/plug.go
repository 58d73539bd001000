package compose

import (
	"go.uber.org/zap"

	"github.com/wippyai/component-host/component"
	"github.com/wippyai/component-host/errors"
)

// Plug composes two components: every import of socket that is satisfied
// by an export of plug is resolved statically, and the result is a single
// self-contained binary. Imports of socket that plug does not satisfy,
// plus plug's own imports, remain imports of the output.
func Plug(socketBytes, plugBytes []byte) ([]byte, error) {
	socket, err := component.Decode(socketBytes)
	if err != nil {
		return nil, errors.New(errors.PhaseCompose, errors.KindMalformedInput).
			Cause(err).
			Detail("decode socket component").
			Build()
	}
	plug, err := component.Decode(plugBytes)
	if err != nil {
		return nil, errors.New(errors.PhaseCompose, errors.KindMalformedInput).
			Cause(err).
			Detail("decode plug component").
			Build()
	}

	plugExports := make(map[string]byte, len(plug.Exports))
	for _, exp := range plug.Exports {
		if exp.Sort == component.SortInstance || exp.Sort == component.SortFunc {
			plugExports[exp.Name] = exp.Sort
		}
	}

	socketImports := linkableImports(socket)
	matched := 0
	for _, imp := range socketImports {
		sort, ok := plugExports[imp.Name]
		if !ok {
			continue
		}
		if importSort(imp) != sort {
			return nil, errors.New(errors.PhaseCompose, errors.KindTypeMismatch).
				Detail("import %q and the export meant to satisfy it disagree on shape", imp.Name).
				Build()
		}
		matched++
	}
	if matched == 0 {
		return nil, errors.New(errors.PhaseCompose, errors.KindMalformedInput).
			Detail("plug satisfies no import of the socket").
			Build()
	}

	out, err := assemble(socket, plug, socketBytes, plugBytes, plugExports)
	if err != nil {
		return nil, err
	}

	Logger().Debug("plugged components",
		zap.Int("satisfied", matched),
		zap.Int("socket_imports", len(socketImports)))

	return out, nil
}

// assemble writes the composed container: both inputs embedded as nested
// components, the plug instantiated first, its matching exports aliased
// into the socket's instantiation arguments, and the socket's exports
// re-exported. Pass-through imports are declared once and shared.
func assemble(socket, plug *component.Component, socketBytes, plugBytes []byte, plugExports map[string]byte) ([]byte, error) {
	e := component.NewEncoder()
	e.EmptyInstanceType()              // type 0, shape of pass-through imports
	e.NestedComponent(plugBytes)       // component 0
	e.NestedComponent(socketBytes)     // component 1

	instCount := uint32(0)
	funcCount := uint32(0)
	importIdx := make(map[string]uint32)

	declareImport := func(name string) {
		if _, ok := importIdx[name]; ok {
			return
		}
		e.ImportInstance(name, 0)
		importIdx[name] = instCount
		instCount++
	}

	plugImports := linkableImports(plug)
	for _, imp := range plugImports {
		if imp.ExternKind != component.ExternInstance {
			return nil, errors.Unsupported(errors.PhaseCompose,
				"pass-through of bare function import "+quote(imp.Name))
		}
		declareImport(imp.Name)
	}
	socketImports := linkableImports(socket)
	for _, imp := range socketImports {
		if _, satisfied := plugExports[imp.Name]; satisfied {
			continue
		}
		if imp.ExternKind != component.ExternInstance {
			return nil, errors.Unsupported(errors.PhaseCompose,
				"pass-through of bare function import "+quote(imp.Name))
		}
		declareImport(imp.Name)
	}

	plugArgs := make([]component.InstanceArg, 0, len(plugImports))
	for _, imp := range plugImports {
		plugArgs = append(plugArgs, component.InstanceArg{
			Name: imp.Name,
			Sort: component.SortInstance,
			Idx:  importIdx[imp.Name],
		})
	}
	e.InstantiateComponent(0, plugArgs)
	plugInst := instCount
	instCount++

	socketArgs := make([]component.InstanceArg, 0, len(socketImports))
	for _, imp := range socketImports {
		sort, satisfied := plugExports[imp.Name]
		if !satisfied {
			socketArgs = append(socketArgs, component.InstanceArg{
				Name: imp.Name,
				Sort: component.SortInstance,
				Idx:  importIdx[imp.Name],
			})
			continue
		}
		e.AliasInstanceExport(plugInst, imp.Name, sort)
		var idx uint32
		if sort == component.SortFunc {
			idx = funcCount
			funcCount++
		} else {
			idx = instCount
			instCount++
		}
		socketArgs = append(socketArgs, component.InstanceArg{
			Name: imp.Name,
			Sort: sort,
			Idx:  idx,
		})
	}
	e.InstantiateComponent(1, socketArgs)
	socketInst := instCount
	instCount++

	for _, exp := range socket.Exports {
		if exp.Sort != component.SortInstance && exp.Sort != component.SortFunc {
			continue
		}
		e.AliasInstanceExport(socketInst, exp.Name, exp.Sort)
		var idx uint32
		if exp.Sort == component.SortFunc {
			idx = funcCount
			funcCount++
		} else {
			idx = instCount
			instCount++
		}
		e.Export(exp.Name, exp.Sort, idx)
	}

	return e.Bytes(), nil
}

// linkableImports filters an import list down to the kinds composition
// can link: instances and bare functions.
func linkableImports(c *component.Component) []component.Import {
	var out []component.Import
	for _, imp := range c.Imports {
		if imp.ExternKind == component.ExternInstance || imp.ExternKind == component.ExternFunc {
			out = append(out, imp)
		}
	}
	return out
}

func importSort(imp component.Import) byte {
	if imp.ExternKind == component.ExternFunc {
		return component.SortFunc
	}
	return component.SortInstance
}

func quote(s string) string {
	return "\"" + s + "\""
}
