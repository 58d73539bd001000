package component

import (
	"fmt"

	"go.bytecodealliance.org/wit"
)

const maxResolveDepth = 128

// outerRef marks a type pulled into an instance type's local space from
// the enclosing component's type index space.
type outerRef struct {
	Index uint32
}

func (outerRef) isValType() {}
func (outerRef) isType()    {}

// TypeResolver turns decoded component types into the wit type model the
// schema package understands. Resolution follows type index references,
// outer aliases and instance export aliases until a concrete value type
// is reached.
type TypeResolver struct {
	types         []Type
	instanceTypes []uint32
}

// NewTypeResolver builds a resolver over a decoded component.
func NewTypeResolver(c *Component) *TypeResolver {
	return &TypeResolver{
		types:         c.Types,
		instanceTypes: c.instanceTypeIndexes(),
	}
}

// ResolvedFunc is a function signature with fully resolved wit types.
// Result is nil for void functions.
type ResolvedFunc struct {
	Params []ResolvedParam
	Result wit.Type
}

// ResolvedParam is one named parameter of a resolved signature.
type ResolvedParam struct {
	Name string
	Type wit.Type
}

// ResolveFunc resolves the function type at typeIndex in the component
// type index space.
func (tr *TypeResolver) ResolveFunc(typeIndex uint32) (*ResolvedFunc, error) {
	if int(typeIndex) >= len(tr.types) {
		return nil, fmt.Errorf("function type index %d out of range", typeIndex)
	}
	ft, ok := tr.types[typeIndex].(*FuncType)
	if !ok {
		return nil, fmt.Errorf("type %d is not a function type", typeIndex)
	}
	return tr.resolveFuncType(ft, tr.types)
}

// ResolveExportedFunc resolves a function exported by name from an
// imported instance.
func (tr *TypeResolver) ResolveExportedFunc(instanceIdx uint32, name string) (*ResolvedFunc, error) {
	it, err := tr.instanceType(instanceIdx)
	if err != nil {
		return nil, err
	}

	local, _, funcs := instanceLocalSpace(it)
	li, ok := funcs[name]
	if !ok {
		return nil, fmt.Errorf("instance %d has no function export %q", instanceIdx, name)
	}
	if int(li) >= len(local) {
		return nil, fmt.Errorf("function export %q: type index %d out of range", name, li)
	}
	ft, ok := local[li].(*FuncType)
	if !ok {
		return nil, fmt.Errorf("function export %q does not reference a function type", name)
	}
	return tr.resolveFuncType(ft, local)
}

// FuncExports lists the function export names of an imported instance,
// in declaration order.
func (tr *TypeResolver) FuncExports(instanceIdx uint32) ([]string, error) {
	it, err := tr.instanceType(instanceIdx)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range it.Decls {
		if d.Kind == 0x04 && d.Export != nil && d.Export.Kind == ExternFunc {
			names = append(names, d.Export.Name)
		}
	}
	return names, nil
}

func (tr *TypeResolver) resolveFuncType(ft *FuncType, space []Type) (*ResolvedFunc, error) {
	rf := &ResolvedFunc{Params: make([]ResolvedParam, 0, len(ft.Params))}

	for _, p := range ft.Params {
		t, err := tr.resolve(p.Type, space, 0)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p.Name, err)
		}
		rf.Params = append(rf.Params, ResolvedParam{Name: p.Name, Type: t})
	}

	if ft.Result != nil {
		t, err := tr.resolve(*ft.Result, space, 0)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		rf.Result = t
	}

	return rf, nil
}

func (tr *TypeResolver) instanceType(instanceIdx uint32) (*InstanceType, error) {
	if int(instanceIdx) >= len(tr.instanceTypes) {
		return nil, fmt.Errorf("instance index %d out of range", instanceIdx)
	}
	tIdx := tr.instanceTypes[instanceIdx]
	if int(tIdx) >= len(tr.types) {
		return nil, fmt.Errorf("instance %d: type index %d out of range", instanceIdx, tIdx)
	}
	it, ok := tr.types[tIdx].(*InstanceType)
	if !ok {
		return nil, fmt.Errorf("instance %d does not carry an instance type", instanceIdx)
	}
	return it, nil
}

func (tr *TypeResolver) resolve(vt ValType, space []Type, depth int) (wit.Type, error) {
	if depth > maxResolveDepth {
		return nil, fmt.Errorf("type nesting exceeds maximum depth %d", maxResolveDepth)
	}

	switch t := vt.(type) {
	case PrimValType:
		return primToWIT(t.Type)

	case TypeIndexRef:
		if int(t.Index) >= len(space) {
			return nil, fmt.Errorf("type index %d out of range", t.Index)
		}
		return tr.resolveEntry(space[t.Index], space, depth+1)

	case outerRef:
		if int(t.Index) >= len(tr.types) {
			return nil, fmt.Errorf("outer type index %d out of range", t.Index)
		}
		return tr.resolveEntry(tr.types[t.Index], tr.types, depth+1)

	case exportedTypeRef:
		return tr.resolveExported(t, depth+1)

	case RecordType:
		fields := make([]wit.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			ft, err := tr.resolve(f.Type, space, depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			fields = append(fields, wit.Field{Name: f.Name, Type: ft})
		}
		return &wit.TypeDef{Kind: &wit.Record{Fields: fields}}, nil

	case VariantType:
		cases := make([]wit.Case, 0, len(t.Cases))
		for _, c := range t.Cases {
			wc := wit.Case{Name: c.Name}
			if c.Type != nil {
				ct, err := tr.resolve(*c.Type, space, depth+1)
				if err != nil {
					return nil, fmt.Errorf("case %q: %w", c.Name, err)
				}
				wc.Type = ct
			}
			cases = append(cases, wc)
		}
		return &wit.TypeDef{Kind: &wit.Variant{Cases: cases}}, nil

	case EnumType:
		cases := make([]wit.EnumCase, 0, len(t.Cases))
		for _, name := range t.Cases {
			cases = append(cases, wit.EnumCase{Name: name})
		}
		return &wit.TypeDef{Kind: &wit.Enum{Cases: cases}}, nil

	case FlagsType:
		flags := make([]wit.Flag, 0, len(t.Names))
		for _, name := range t.Names {
			flags = append(flags, wit.Flag{Name: name})
		}
		return &wit.TypeDef{Kind: &wit.Flags{Flags: flags}}, nil

	case OptionType:
		inner, err := tr.resolve(t.Type, space, depth+1)
		if err != nil {
			return nil, fmt.Errorf("option payload: %w", err)
		}
		return &wit.TypeDef{Kind: &wit.Option{Type: inner}}, nil

	case ResultType:
		res := &wit.Result{}
		if t.OK != nil {
			ok, err := tr.resolve(*t.OK, space, depth+1)
			if err != nil {
				return nil, fmt.Errorf("result ok payload: %w", err)
			}
			res.OK = ok
		}
		if t.Err != nil {
			er, err := tr.resolve(*t.Err, space, depth+1)
			if err != nil {
				return nil, fmt.Errorf("result err payload: %w", err)
			}
			res.Err = er
		}
		return &wit.TypeDef{Kind: res}, nil

	case ListType:
		elem, err := tr.resolve(t.Elem, space, depth+1)
		if err != nil {
			return nil, fmt.Errorf("list element: %w", err)
		}
		return &wit.TypeDef{Kind: &wit.List{Type: elem}}, nil

	case TupleType:
		types := make([]wit.Type, 0, len(t.Types))
		for i, tt := range t.Types {
			rt, err := tr.resolve(tt, space, depth+1)
			if err != nil {
				return nil, fmt.Errorf("tuple element %d: %w", i, err)
			}
			types = append(types, rt)
		}
		return &wit.TypeDef{Kind: &wit.Tuple{Types: types}}, nil

	case OwnType:
		return &wit.TypeDef{Kind: &wit.Own{Type: resourceTypeDef()}}, nil

	case BorrowType:
		return &wit.TypeDef{Kind: &wit.Borrow{Type: resourceTypeDef()}}, nil

	case ResourceType:
		return resourceTypeDef(), nil

	default:
		return nil, fmt.Errorf("cannot resolve %T as a value type", vt)
	}
}

func (tr *TypeResolver) resolveEntry(t Type, space []Type, depth int) (wit.Type, error) {
	vt, ok := t.(ValType)
	if !ok {
		return nil, fmt.Errorf("type entry %T is not a value type", t)
	}
	return tr.resolve(vt, space, depth)
}

func (tr *TypeResolver) resolveExported(ref exportedTypeRef, depth int) (wit.Type, error) {
	it, err := tr.instanceType(ref.InstanceIdx)
	if err != nil {
		return nil, err
	}

	local, types, _ := instanceLocalSpace(it)
	li, ok := types[ref.ExportName]
	if !ok {
		return nil, fmt.Errorf("instance %d has no type export %q", ref.InstanceIdx, ref.ExportName)
	}
	if int(li) >= len(local) {
		return nil, fmt.Errorf("type export %q: index %d out of range", ref.ExportName, li)
	}

	t, err := tr.resolveEntry(local[li], local, depth)
	if err != nil {
		return nil, fmt.Errorf("resolve exported type %q: %w", ref.ExportName, err)
	}

	if td, ok := t.(*wit.TypeDef); ok && td.Name == nil {
		name := ref.ExportName
		named := *td
		named.Name = &name
		return &named, nil
	}
	return t, nil
}

// instanceLocalSpace flattens an instance type's declarations into the
// local type index space plus name maps for its type and function
// exports. Type export declarations introduce a fresh local index that
// aliases the bound, so they append to the space as well.
func instanceLocalSpace(it *InstanceType) ([]Type, map[string]uint32, map[string]uint32) {
	var local []Type
	types := make(map[string]uint32)
	funcs := make(map[string]uint32)

	for _, d := range it.Decls {
		switch d.Kind {
		case 0x01:
			local = append(local, d.Type)

		case 0x02:
			if d.Alias == nil || d.Alias.Sort != SortType {
				continue
			}
			switch d.Alias.TargetKind {
			case aliasTargetOuter:
				local = append(local, outerRef{Index: d.Alias.OuterIndex})
			case aliasTargetInstanceExport:
				local = append(local, exportedTypeRef{
					InstanceIdx: d.Alias.Instance,
					ExportName:  d.Alias.Name,
				})
			}

		case 0x04:
			e := d.Export
			if e == nil {
				continue
			}
			switch e.Kind {
			case ExternType:
				if e.HasBound && e.BoundKind == 0x01 {
					local = append(local, ResourceType{})
					types[e.Name] = uint32(len(local) - 1)
					continue
				}
				types[e.Name] = e.TypeIndex
				local = append(local, TypeIndexRef{Index: e.TypeIndex})
			case ExternFunc:
				funcs[e.Name] = e.TypeIndex
			}
		}
	}

	return local, types, funcs
}

func resourceTypeDef() *wit.TypeDef {
	return &wit.TypeDef{Kind: &wit.Resource{}}
}

func primToWIT(p PrimType) (wit.Type, error) {
	switch p {
	case PrimBool:
		return wit.Bool{}, nil
	case PrimS8:
		return wit.S8{}, nil
	case PrimU8:
		return wit.U8{}, nil
	case PrimS16:
		return wit.S16{}, nil
	case PrimU16:
		return wit.U16{}, nil
	case PrimS32:
		return wit.S32{}, nil
	case PrimU32:
		return wit.U32{}, nil
	case PrimS64:
		return wit.S64{}, nil
	case PrimU64:
		return wit.U64{}, nil
	case PrimF32:
		return wit.F32{}, nil
	case PrimF64:
		return wit.F64{}, nil
	case PrimChar:
		return wit.Char{}, nil
	case PrimString:
		return wit.String{}, nil
	default:
		return nil, fmt.Errorf("unknown primitive type byte 0x%02x", byte(p))
	}
}
