package component

import (
	"bytes"
	"fmt"
	"io"
)

// Component-level type grammar, parsed from type sections (section 7).

// Type is any entry of the component type index space.
type Type interface {
	isType()
}

// ValType is a value type usable in function signatures.
type ValType interface {
	isValType()
}

// PrimType identifies a primitive value type by its format byte.
type PrimType byte

const (
	PrimBool   PrimType = 0x7f
	PrimS8     PrimType = 0x7e
	PrimU8     PrimType = 0x7d
	PrimS16    PrimType = 0x7c
	PrimU16    PrimType = 0x7b
	PrimS32    PrimType = 0x7a
	PrimU32    PrimType = 0x79
	PrimS64    PrimType = 0x78
	PrimU64    PrimType = 0x77
	PrimF32    PrimType = 0x76
	PrimF64    PrimType = 0x75
	PrimChar   PrimType = 0x74
	PrimString PrimType = 0x73
)

// PrimValType wraps a primitive type byte.
type PrimValType struct {
	Type PrimType
}

func (PrimValType) isValType() {}
func (PrimValType) isType()    {}

// TypeIndexRef references another entry of the type index space.
type TypeIndexRef struct {
	Index uint32
}

func (TypeIndexRef) isValType() {}
func (TypeIndexRef) isType()    {}

// exportedTypeRef defers resolution of a type aliased from an instance
// export until the instance's type is known.
type exportedTypeRef struct {
	ExportName  string
	InstanceIdx uint32
}

func (exportedTypeRef) isValType() {}
func (exportedTypeRef) isType()    {}

// RecordType is a named-field struct.
type RecordType struct {
	Fields []Field
}

func (RecordType) isValType() {}
func (RecordType) isType()    {}

// Field is one record member.
type Field struct {
	Name string
	Type ValType
}

// VariantType is a tagged union.
type VariantType struct {
	Cases []Case
}

func (VariantType) isValType() {}
func (VariantType) isType()    {}

// Case is one variant alternative; Type is nil for payloadless cases.
type Case struct {
	Name string
	Type *ValType
}

// ListType is a homogeneous sequence.
type ListType struct {
	Elem ValType
}

func (ListType) isValType() {}
func (ListType) isType()    {}

// TupleType is a fixed-arity positional product.
type TupleType struct {
	Types []ValType
}

func (TupleType) isValType() {}
func (TupleType) isType()    {}

// FlagsType is a set of named bits.
type FlagsType struct {
	Names []string
}

func (FlagsType) isValType() {}
func (FlagsType) isType()    {}

// EnumType is a closed set of named cases.
type EnumType struct {
	Cases []string
}

func (EnumType) isValType() {}
func (EnumType) isType()    {}

// OptionType wraps an optionally-present value.
type OptionType struct {
	Type ValType
}

func (OptionType) isValType() {}
func (OptionType) isType()    {}

// ResultType is a success/error union; either side may lack a payload.
type ResultType struct {
	OK  *ValType
	Err *ValType
}

func (ResultType) isValType() {}
func (ResultType) isType()    {}

// ResourceType marks a resource introduced by a sub-resource type bound.
type ResourceType struct{}

func (ResourceType) isValType() {}
func (ResourceType) isType()    {}

// OwnType is an owned resource handle.
type OwnType struct {
	TypeIndex uint32
}

func (OwnType) isValType() {}
func (OwnType) isType()    {}

// BorrowType is a borrowed resource handle.
type BorrowType struct {
	TypeIndex uint32
}

func (BorrowType) isValType() {}
func (BorrowType) isType()    {}

// FuncType is a component function signature. Result is nil for void
// functions; the format allows at most one result.
type FuncType struct {
	Params []Param
	Result *ValType
}

func (FuncType) isType() {}

// Param is one named function parameter.
type Param struct {
	Name string
	Type ValType
}

// InstanceType describes the shape of an instance: its declared types
// and exports.
type InstanceType struct {
	Decls []InstanceDecl
}

func (InstanceType) isType() {}

// InstanceDecl is one declaration inside an instance type.
type InstanceDecl struct {
	Kind   byte
	Type   Type         // type decl (kind 0x01)
	Alias  *parsedAlias // alias decl (kind 0x02)
	Export *ExportDecl  // export decl (kind 0x04)
}

// ExportDecl declares a typed export inside an instance or component type.
type ExportDecl struct {
	Name      string
	Kind      byte
	TypeIndex uint32
	BoundKind byte
	HasBound  bool
}

// ComponentType describes a nested component's shape. The reflector only
// needs its declaration stream to be consumed correctly.
type ComponentType struct {
	Decls []InstanceDecl
}

func (ComponentType) isType() {}

// ParseTypeSection parses one type section into its type entries.
func ParseTypeSection(data []byte) ([]Type, error) {
	r := bytes.NewReader(data)

	count, err := readLEB128(r)
	if err != nil {
		return nil, fmt.Errorf("read type count: %w", err)
	}
	if count > 10000 {
		return nil, fmt.Errorf("type count %d exceeds maximum", count)
	}

	types := make([]Type, 0, count)
	for i := uint32(0); i < count; i++ {
		typ, err := parseType(r)
		if err != nil {
			return nil, fmt.Errorf("type %d: %w", i, err)
		}
		types = append(types, typ)
	}

	return types, nil
}

func parseType(r io.Reader) (Type, error) {
	typeByte, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("read type byte: %w", err)
	}

	switch typeByte {
	case 0x40:
		return parseFuncType(r)
	case 0x41:
		return parseComponentType(r)
	case 0x42:
		return parseInstanceType(r)
	default:
		r = io.MultiReader(bytes.NewReader([]byte{typeByte}), r)
		return parseDefType(r)
	}
}

func parseDefType(r io.Reader) (Type, error) {
	typeByte, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("read deftype byte: %w", err)
	}

	switch typeByte {
	case 0x72:
		return parseRecordType(r)
	case 0x71:
		return parseVariantType(r)
	case 0x70:
		elem, err := parseValType(r)
		if err != nil {
			return nil, err
		}
		return ListType{Elem: elem}, nil
	case 0x6f:
		return parseTupleType(r)
	case 0x6e:
		return parseFlagsType(r)
	case 0x6d:
		return parseEnumType(r)
	case 0x6b:
		inner, err := parseValType(r)
		if err != nil {
			return nil, err
		}
		return OptionType{Type: inner}, nil
	case 0x6a:
		return parseResultType(r)
	case 0x69:
		idx, err := readLEB128(r)
		if err != nil {
			return nil, err
		}
		return OwnType{TypeIndex: idx}, nil
	case 0x68:
		idx, err := readLEB128(r)
		if err != nil {
			return nil, err
		}
		return BorrowType{TypeIndex: idx}, nil
	default:
		if typeByte >= 0x73 && typeByte <= 0x7f {
			return PrimValType{Type: PrimType(typeByte)}, nil
		}
		if typeByte < 0x68 {
			return TypeIndexRef{Index: uint32(typeByte)}, nil
		}
		return nil, fmt.Errorf("unknown deftype byte 0x%02x", typeByte)
	}
}

// parseValType parses a value type reference.
//
// The byte ranges overlap: primitives occupy 0x73..0x7f, defined type
// opcodes 0x68..0x72, and anything else is a signed 33-bit LEB128 type
// index. Primitives are checked first, then opcodes, then the byte is
// pushed back and re-read as SLEB128.
func parseValType(r io.Reader) (ValType, error) {
	typeByte, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("read val type byte: %w", err)
	}

	if typeByte >= 0x73 && typeByte <= 0x7f {
		return PrimValType{Type: PrimType(typeByte)}, nil
	}

	switch typeByte {
	case 0x72:
		return parseRecordType(r)
	case 0x71:
		return parseVariantType(r)
	case 0x70:
		elem, err := parseValType(r)
		if err != nil {
			return nil, err
		}
		return ListType{Elem: elem}, nil
	case 0x6f:
		return parseTupleType(r)
	case 0x6e:
		return parseFlagsType(r)
	case 0x6d:
		return parseEnumType(r)
	case 0x6b:
		inner, err := parseValType(r)
		if err != nil {
			return nil, err
		}
		return OptionType{Type: inner}, nil
	case 0x6a:
		return parseResultType(r)
	case 0x69:
		idx, err := readLEB128(r)
		if err != nil {
			return nil, err
		}
		return OwnType{TypeIndex: idx}, nil
	case 0x68:
		idx, err := readLEB128(r)
		if err != nil {
			return nil, err
		}
		return BorrowType{TypeIndex: idx}, nil
	}

	mr := io.MultiReader(bytes.NewReader([]byte{typeByte}), r)
	idx, err := readSLEB128(mr)
	if err != nil {
		return nil, fmt.Errorf("read type index: %w", err)
	}
	if idx < 0 {
		return nil, fmt.Errorf("negative type index %d", idx)
	}
	return TypeIndexRef{Index: uint32(idx)}, nil
}

// parseFuncType parses a function signature.
//
// The result list is a discriminated encoding, not a vector:
// 0x00 valtype means one result, 0x01 0x00 means none.
func parseFuncType(r io.Reader) (*FuncType, error) {
	paramCount, err := readLEB128(r)
	if err != nil {
		return nil, fmt.Errorf("read param count: %w", err)
	}
	if paramCount > 1000 {
		return nil, fmt.Errorf("param count %d exceeds maximum", paramCount)
	}

	params := make([]Param, 0, paramCount)
	for i := uint32(0); i < paramCount; i++ {
		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("param %d name: %w", i, err)
		}
		typ, err := parseValType(r)
		if err != nil {
			return nil, fmt.Errorf("param %d type: %w", i, err)
		}
		params = append(params, Param{Name: name, Type: typ})
	}

	resultByte, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("read result discriminant: %w", err)
	}

	var result *ValType
	switch resultByte {
	case 0x00:
		typ, err := parseValType(r)
		if err != nil {
			return nil, fmt.Errorf("read result type: %w", err)
		}
		result = &typ
	case 0x01:
		end, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("read result end marker: %w", err)
		}
		if end != 0x00 {
			return nil, fmt.Errorf("expected 0x00 after 0x01 in result list, got 0x%02x", end)
		}
	default:
		return nil, fmt.Errorf("unknown result list discriminant 0x%02x", resultByte)
	}

	return &FuncType{Params: params, Result: result}, nil
}

func parseInstanceType(r io.Reader) (*InstanceType, error) {
	count, err := readLEB128(r)
	if err != nil {
		return nil, fmt.Errorf("read instance decl count: %w", err)
	}
	if count > 10000 {
		return nil, fmt.Errorf("instance decl count %d exceeds maximum", count)
	}

	decls := make([]InstanceDecl, 0, count)
	for i := uint32(0); i < count; i++ {
		decl, err := parseInstanceDecl(r)
		if err != nil {
			return nil, fmt.Errorf("instance decl %d: %w", i, err)
		}
		decls = append(decls, decl)
	}

	return &InstanceType{Decls: decls}, nil
}

func parseInstanceDecl(r io.Reader) (InstanceDecl, error) {
	kind, err := readByte(r)
	if err != nil {
		return InstanceDecl{}, fmt.Errorf("read kind: %w", err)
	}

	switch kind {
	case 0x00:
		return InstanceDecl{}, fmt.Errorf("core type declarations inside instance types are not supported")

	case 0x01:
		typ, err := parseType(r)
		if err != nil {
			return InstanceDecl{}, fmt.Errorf("read type: %w", err)
		}
		return InstanceDecl{Kind: kind, Type: typ}, nil

	case 0x02:
		alias, err := parseAliasBody(r)
		if err != nil {
			return InstanceDecl{}, fmt.Errorf("read alias: %w", err)
		}
		return InstanceDecl{Kind: kind, Alias: &alias}, nil

	case 0x04:
		export, err := parseExportDecl(r)
		if err != nil {
			return InstanceDecl{}, fmt.Errorf("read export: %w", err)
		}
		return InstanceDecl{Kind: kind, Export: &export}, nil

	default:
		return InstanceDecl{}, fmt.Errorf("unknown instance decl kind 0x%02x", kind)
	}
}

func parseComponentType(r io.Reader) (*ComponentType, error) {
	count, err := readLEB128(r)
	if err != nil {
		return nil, fmt.Errorf("read component decl count: %w", err)
	}
	if count > 10000 {
		return nil, fmt.Errorf("component decl count %d exceeds maximum", count)
	}

	decls := make([]InstanceDecl, 0, count)
	for i := uint32(0); i < count; i++ {
		kind, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("component decl %d: read kind: %w", i, err)
		}

		if kind == 0x03 {
			if err := skipImportDecl(r); err != nil {
				return nil, fmt.Errorf("component decl %d: %w", i, err)
			}
			decls = append(decls, InstanceDecl{Kind: kind})
			continue
		}

		mr := io.MultiReader(bytes.NewReader([]byte{kind}), r)
		decl, err := parseInstanceDecl(mr)
		if err != nil {
			return nil, fmt.Errorf("component decl %d: %w", i, err)
		}
		decls = append(decls, decl)
	}

	return &ComponentType{Decls: decls}, nil
}

func skipImportDecl(r io.Reader) error {
	if _, err := readByte(r); err != nil {
		return fmt.Errorf("read name kind: %w", err)
	}
	if _, err := readName(r); err != nil {
		return err
	}
	externKind, err := readByte(r)
	if err != nil {
		return fmt.Errorf("read extern kind: %w", err)
	}
	if externKind == ExternCoreModule {
		if _, err := readByte(r); err != nil {
			return fmt.Errorf("read core module marker: %w", err)
		}
	}
	if _, err := readLEB128(r); err != nil {
		return fmt.Errorf("read type index: %w", err)
	}
	return nil
}

func parseExportDecl(r io.Reader) (ExportDecl, error) {
	if _, err := readByte(r); err != nil {
		return ExportDecl{}, fmt.Errorf("read name kind: %w", err)
	}

	name, err := readName(r)
	if err != nil {
		return ExportDecl{}, err
	}

	externKind, err := readByte(r)
	if err != nil {
		return ExportDecl{}, fmt.Errorf("read extern kind: %w", err)
	}

	var typeIndex uint32

	switch externKind {
	case ExternCoreModule:
		if _, err := readByte(r); err != nil {
			return ExportDecl{}, fmt.Errorf("read core module marker: %w", err)
		}
		typeIndex, err = readLEB128(r)
		if err != nil {
			return ExportDecl{}, fmt.Errorf("read type index: %w", err)
		}

	case ExternFunc, ExternComponent, ExternInstance:
		typeIndex, err = readLEB128(r)
		if err != nil {
			return ExportDecl{}, fmt.Errorf("read type index: %w", err)
		}

	case ExternValue:
		boundKind, err := readByte(r)
		if err != nil {
			return ExportDecl{}, fmt.Errorf("read value bound kind: %w", err)
		}
		switch boundKind {
		case 0x00:
			typeIndex, err = readLEB128(r)
			if err != nil {
				return ExportDecl{}, fmt.Errorf("read value index: %w", err)
			}
		case 0x01:
			if _, err := parseValType(r); err != nil {
				return ExportDecl{}, fmt.Errorf("read value type: %w", err)
			}
		default:
			return ExportDecl{}, fmt.Errorf("unknown value bound kind 0x%02x", boundKind)
		}

	case ExternType:
		boundKind, err := readByte(r)
		if err != nil {
			return ExportDecl{}, fmt.Errorf("read type bound kind: %w", err)
		}
		switch boundKind {
		case 0x00: // eq bound, type index follows
			typeIndex, err = readLEB128(r)
			if err != nil {
				return ExportDecl{}, fmt.Errorf("read type index: %w", err)
			}
		case 0x01: // sub-resource bound, no operand
		default:
			return ExportDecl{}, fmt.Errorf("unknown type bound kind 0x%02x", boundKind)
		}
		return ExportDecl{
			Name:      name,
			Kind:      externKind,
			TypeIndex: typeIndex,
			BoundKind: boundKind,
			HasBound:  true,
		}, nil

	default:
		return ExportDecl{}, fmt.Errorf("unknown extern kind 0x%02x", externKind)
	}

	return ExportDecl{Name: name, Kind: externKind, TypeIndex: typeIndex}, nil
}

func parseRecordType(r io.Reader) (RecordType, error) {
	count, err := readLEB128(r)
	if err != nil {
		return RecordType{}, err
	}
	if count > 1000 {
		return RecordType{}, fmt.Errorf("record field count %d exceeds maximum", count)
	}

	fields := make([]Field, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return RecordType{}, fmt.Errorf("field %d name: %w", i, err)
		}
		typ, err := parseValType(r)
		if err != nil {
			return RecordType{}, fmt.Errorf("field %d type: %w", i, err)
		}
		fields = append(fields, Field{Name: name, Type: typ})
	}

	return RecordType{Fields: fields}, nil
}

// parseVariantType parses a tagged union. Each case carries a name, an
// optional payload type, and an optional refines index which must be
// consumed even though it is not retained.
func parseVariantType(r io.Reader) (VariantType, error) {
	count, err := readLEB128(r)
	if err != nil {
		return VariantType{}, err
	}
	if count > 1000 {
		return VariantType{}, fmt.Errorf("variant case count %d exceeds maximum", count)
	}

	cases := make([]Case, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return VariantType{}, fmt.Errorf("case %d name: %w", i, err)
		}

		hasType, err := readByte(r)
		if err != nil {
			return VariantType{}, fmt.Errorf("case %d has-type: %w", i, err)
		}

		var caseType *ValType
		switch hasType {
		case 0x01:
			typ, err := parseValType(r)
			if err != nil {
				return VariantType{}, fmt.Errorf("case %d type: %w", i, err)
			}
			caseType = &typ
		case 0x00:
		default:
			return VariantType{}, fmt.Errorf("case %d: invalid has-type discriminant 0x%02x", i, hasType)
		}

		hasRefines, err := readByte(r)
		if err != nil {
			return VariantType{}, fmt.Errorf("case %d has-refines: %w", i, err)
		}
		switch hasRefines {
		case 0x01:
			idx, err := readLEB128(r)
			if err != nil {
				return VariantType{}, fmt.Errorf("case %d refines index: %w", i, err)
			}
			if idx >= i {
				return VariantType{}, fmt.Errorf("case %d: refines index %d out of bounds", i, idx)
			}
		case 0x00:
		default:
			return VariantType{}, fmt.Errorf("case %d: invalid refines discriminant 0x%02x", i, hasRefines)
		}

		cases = append(cases, Case{Name: name, Type: caseType})
	}

	return VariantType{Cases: cases}, nil
}

func parseTupleType(r io.Reader) (TupleType, error) {
	count, err := readLEB128(r)
	if err != nil {
		return TupleType{}, err
	}
	if count > 1000 {
		return TupleType{}, fmt.Errorf("tuple element count %d exceeds maximum", count)
	}

	types := make([]ValType, 0, count)
	for i := uint32(0); i < count; i++ {
		typ, err := parseValType(r)
		if err != nil {
			return TupleType{}, fmt.Errorf("tuple element %d: %w", i, err)
		}
		types = append(types, typ)
	}

	return TupleType{Types: types}, nil
}

func parseFlagsType(r io.Reader) (FlagsType, error) {
	count, err := readLEB128(r)
	if err != nil {
		return FlagsType{}, err
	}
	if count > 1000 {
		return FlagsType{}, fmt.Errorf("flags count %d exceeds maximum", count)
	}

	names := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return FlagsType{}, fmt.Errorf("flag %d name: %w", i, err)
		}
		names = append(names, name)
	}

	return FlagsType{Names: names}, nil
}

func parseEnumType(r io.Reader) (EnumType, error) {
	count, err := readLEB128(r)
	if err != nil {
		return EnumType{}, err
	}
	if count > 1000 {
		return EnumType{}, fmt.Errorf("enum case count %d exceeds maximum", count)
	}

	cases := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := readName(r)
		if err != nil {
			return EnumType{}, fmt.Errorf("enum case %d: %w", i, err)
		}
		cases = append(cases, name)
	}

	return EnumType{Cases: cases}, nil
}

// parseResultType parses a success/error union. Both payloads use the
// optional encoding: 0x00 for none, 0x01 followed by the type.
func parseResultType(r io.Reader) (ResultType, error) {
	hasOK, err := readByte(r)
	if err != nil {
		return ResultType{}, fmt.Errorf("read has-ok: %w", err)
	}

	var okType *ValType
	switch hasOK {
	case 0x01:
		typ, err := parseValType(r)
		if err != nil {
			return ResultType{}, fmt.Errorf("ok type: %w", err)
		}
		okType = &typ
	case 0x00:
	default:
		return ResultType{}, fmt.Errorf("invalid has-ok discriminant 0x%02x", hasOK)
	}

	hasErr, err := readByte(r)
	if err != nil {
		return ResultType{}, fmt.Errorf("read has-err: %w", err)
	}

	var errType *ValType
	switch hasErr {
	case 0x01:
		typ, err := parseValType(r)
		if err != nil {
			return ResultType{}, fmt.Errorf("err type: %w", err)
		}
		errType = &typ
	case 0x00:
	default:
		return ResultType{}, fmt.Errorf("invalid has-err discriminant 0x%02x", hasErr)
	}

	return ResultType{OK: okType, Err: errType}, nil
}
