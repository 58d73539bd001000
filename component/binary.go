package component

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Component holds the decoded surface of a component binary: the section
// content needed to reflect its interface world. Core module bodies and
// nested component bodies are kept as raw payloads.
type Component struct {
	CoreModules    [][]byte
	Nested         [][]byte
	Types          []Type
	Imports        []Import
	Exports        []Export
	Instances      []InstanceEntry
	Funcs          []FuncEntry
	CustomSections []CustomSection
}

// Import is one entry of the import section.
type Import struct {
	Name       string
	ExternKind byte
	TypeIndex  uint32
}

// Export is one entry of the export section.
type Export struct {
	Name      string
	Sort      byte
	SortIndex uint32
}

// CustomSection is a named opaque section.
type CustomSection struct {
	Name string
	Data []byte
}

// InstanceEntry is one entry of the component instance index space.
// Instances come from instance imports, the instance section, and
// instance aliases, in section order.
type InstanceEntry struct {
	Kind          InstanceKind
	TypeIndex     uint32         // InstanceImport: the instance type
	ComponentIdx  uint32         // InstanceInstantiate: the nested component
	Args          []InstanceArg  // InstanceInstantiate
	InlineExports []InlineExport // InstanceInline
}

type InstanceKind int

const (
	InstanceImport InstanceKind = iota
	InstanceInstantiate
	InstanceInline
	InstanceAliased
)

// InstanceArg names one instantiation argument.
type InstanceArg struct {
	Name string
	Sort byte
	Idx  uint32
}

// InlineExport maps an export name to a sort index inside an inline
// instance.
type InlineExport struct {
	Name string
	Sort byte
	Idx  uint32
}

// FuncEntry is one entry of the component function index space.
type FuncEntry struct {
	Kind        FuncKind
	TypeIndex   uint32 // FuncLift: component function type
	InstanceIdx uint32 // FuncAlias: source instance
	ExportName  string // FuncAlias
}

type FuncKind int

const (
	FuncLift FuncKind = iota
	FuncAlias
)

// externdesc kinds
const (
	ExternCoreModule byte = 0x00
	ExternFunc       byte = 0x01
	ExternValue      byte = 0x02
	ExternType       byte = 0x03
	ExternComponent  byte = 0x04
	ExternInstance   byte = 0x05
)

// sort kinds
const (
	SortCore      byte = 0x00
	SortFunc      byte = 0x01
	SortValue     byte = 0x02
	SortType      byte = 0x03
	SortComponent byte = 0x04
	SortInstance  byte = 0x05
)

// section ids
const (
	sectionCustom       byte = 0
	sectionCoreModule   byte = 1
	sectionCoreInstance byte = 2
	sectionCoreType     byte = 3
	sectionComponent    byte = 4
	sectionInstance     byte = 5
	sectionAlias        byte = 6
	sectionType         byte = 7
	sectionCanon        byte = 8
	sectionStart        byte = 9
	sectionImport       byte = 10
	sectionExport       byte = 11
)

const maxNameLength = 100000

// IsComponent reports whether data carries a component preamble: the wasm
// magic followed by a layer version greater than 1.
func IsComponent(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	if data[0] != 0x00 || data[1] != 0x61 || data[2] != 0x73 || data[3] != 0x6D {
		return false
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	return version > 1
}

// Decode parses a component binary into its decoded surface.
func Decode(data []byte) (*Component, error) {
	if !IsComponent(data) {
		return nil, fmt.Errorf("not a component binary")
	}

	r := bytes.NewReader(data[8:])
	comp := &Component{}

	sectionCount := 0
	maxSections := 100000

	for {
		sectionCount++
		if sectionCount > maxSections {
			return nil, fmt.Errorf("exceeded maximum section count %d", maxSections)
		}

		sectionID, err := readByte(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read section ID: %w", err)
		}

		size, err := readLEB128(r)
		if err != nil {
			return nil, fmt.Errorf("read section size: %w", err)
		}
		if size > uint32(len(data)) {
			return nil, fmt.Errorf("section %d size %d exceeds component size %d", sectionCount, size, len(data))
		}

		sectionData := make([]byte, size)
		if _, err := io.ReadFull(r, sectionData); err != nil {
			return nil, fmt.Errorf("read section data: %w", err)
		}

		if err := comp.addSection(sectionID, sectionData); err != nil {
			return nil, fmt.Errorf("section %d: %w", sectionCount, err)
		}
	}

	return comp, nil
}

func (c *Component) addSection(id byte, data []byte) error {
	switch id {
	case sectionCustom:
		cs, err := decodeCustomSection(data)
		if err != nil {
			return fmt.Errorf("decode custom section: %w", err)
		}
		c.CustomSections = append(c.CustomSections, cs)

	case sectionCoreModule:
		c.CoreModules = append(c.CoreModules, data)

	case sectionCoreInstance, sectionCoreType, sectionStart:
		// Core-level plumbing is the engine's concern, not reflection's.

	case sectionComponent:
		c.Nested = append(c.Nested, data)

	case sectionInstance:
		entries, err := parseInstanceSection(data)
		if err != nil {
			return fmt.Errorf("parse instance section: %w", err)
		}
		c.Instances = append(c.Instances, entries...)

	case sectionAlias:
		aliases, err := parseAliasSection(data)
		if err != nil {
			return fmt.Errorf("parse alias section: %w", err)
		}
		for _, a := range aliases {
			switch {
			case a.Sort == SortType && a.TargetKind == aliasTargetInstanceExport:
				c.Types = append(c.Types, exportedTypeRef{InstanceIdx: a.Instance, ExportName: a.Name})
			case a.Sort == SortType && a.TargetKind == aliasTargetOuter:
				c.Types = append(c.Types, TypeIndexRef{Index: a.OuterIndex})
			case a.Sort == SortFunc && a.TargetKind == aliasTargetInstanceExport:
				c.Funcs = append(c.Funcs, FuncEntry{
					Kind:        FuncAlias,
					InstanceIdx: a.Instance,
					ExportName:  a.Name,
				})
			case a.Sort == SortInstance:
				c.Instances = append(c.Instances, InstanceEntry{Kind: InstanceAliased})
			}
		}

	case sectionType:
		parsed, err := ParseTypeSection(data)
		if err != nil {
			return fmt.Errorf("parse type section: %w", err)
		}
		c.Types = append(c.Types, parsed...)

	case sectionCanon:
		canon, err := parseCanonSection(data)
		if err != nil {
			return fmt.Errorf("parse canon section: %w", err)
		}
		if canon.Kind == canonLift {
			c.Funcs = append(c.Funcs, FuncEntry{Kind: FuncLift, TypeIndex: canon.TypeIndex})
		}

	case sectionImport:
		imports, err := decodeImports(data)
		if err != nil {
			return fmt.Errorf("decode imports: %w", err)
		}
		c.Imports = append(c.Imports, imports...)
		for _, imp := range imports {
			if imp.ExternKind == ExternType {
				c.Types = append(c.Types, TypeIndexRef{Index: imp.TypeIndex})
			}
			if imp.ExternKind == ExternInstance {
				c.Instances = append(c.Instances, InstanceEntry{
					Kind:      InstanceImport,
					TypeIndex: imp.TypeIndex,
				})
			}
		}

	case sectionExport:
		exports, err := decodeExports(data)
		if err != nil {
			return fmt.Errorf("decode exports: %w", err)
		}
		c.Exports = append(c.Exports, exports...)
	}

	return nil
}

// instanceTypeIndexes maps instance index to its declared type index, for
// instances whose type is known statically (imports only).
func (c *Component) instanceTypeIndexes() []uint32 {
	idxs := make([]uint32, len(c.Instances))
	for i, inst := range c.Instances {
		if inst.Kind == InstanceImport {
			idxs[i] = inst.TypeIndex
		}
	}
	return idxs
}

func decodeCustomSection(data []byte) (CustomSection, error) {
	r := bytes.NewReader(data)

	nameLen, err := readLEB128(r)
	if err != nil {
		return CustomSection{}, fmt.Errorf("read name length: %w", err)
	}
	if nameLen > maxNameLength {
		return CustomSection{}, fmt.Errorf("name length %d exceeds maximum %d", nameLen, maxNameLength)
	}
	if nameLen > uint32(len(data)) {
		return CustomSection{}, fmt.Errorf("name length %d exceeds data size %d", nameLen, len(data))
	}

	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return CustomSection{}, fmt.Errorf("read name: %w", err)
	}

	remaining := make([]byte, r.Len())
	if _, err := io.ReadFull(r, remaining); err != nil && !errors.Is(err, io.EOF) {
		return CustomSection{}, fmt.Errorf("read data: %w", err)
	}

	return CustomSection{Name: string(nameBytes), Data: remaining}, nil
}

// alias target kinds
const (
	aliasTargetInstanceExport     byte = 0x00
	aliasTargetCoreInstanceExport byte = 0x01
	aliasTargetOuter              byte = 0x02
)

type parsedAlias struct {
	Name       string
	Instance   uint32
	OuterCount uint32
	OuterIndex uint32
	Sort       byte
	CoreSort   byte
	TargetKind byte
}

func parseAliasSection(data []byte) ([]parsedAlias, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("alias section too short")
	}

	r := bytes.NewReader(data)

	count, err := readLEB128(r)
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if count > 10000 {
		return nil, fmt.Errorf("alias count %d exceeds maximum", count)
	}

	aliases := make([]parsedAlias, 0, count)
	for i := uint32(0); i < count; i++ {
		alias, err := parseAliasBody(r)
		if err != nil {
			return nil, fmt.Errorf("alias %d: %w", i, err)
		}
		aliases = append(aliases, alias)
	}

	return aliases, nil
}

func parseAliasBody(r io.Reader) (parsedAlias, error) {
	sort, err := readByte(r)
	if err != nil {
		return parsedAlias{}, fmt.Errorf("read sort: %w", err)
	}

	var coreSort byte
	if sort == SortCore {
		coreSort, err = readByte(r)
		if err != nil {
			return parsedAlias{}, fmt.Errorf("read core sort: %w", err)
		}
	}

	targetKind, err := readByte(r)
	if err != nil {
		return parsedAlias{}, fmt.Errorf("read target kind: %w", err)
	}

	alias := parsedAlias{Sort: sort, CoreSort: coreSort, TargetKind: targetKind}

	switch targetKind {
	case aliasTargetInstanceExport, aliasTargetCoreInstanceExport:
		instIdx, err := readLEB128(r)
		if err != nil {
			return parsedAlias{}, fmt.Errorf("read instance idx: %w", err)
		}
		name, err := readName(r)
		if err != nil {
			return parsedAlias{}, err
		}
		alias.Instance = instIdx
		alias.Name = name

	case aliasTargetOuter:
		ct, err := readLEB128(r)
		if err != nil {
			return parsedAlias{}, fmt.Errorf("read outer count: %w", err)
		}
		idx, err := readLEB128(r)
		if err != nil {
			return parsedAlias{}, fmt.Errorf("read outer index: %w", err)
		}
		alias.OuterCount = ct
		alias.OuterIndex = idx

	default:
		return parsedAlias{}, fmt.Errorf("unknown alias target kind 0x%02x", targetKind)
	}

	return alias, nil
}

func parseInstanceSection(data []byte) ([]InstanceEntry, error) {
	r := bytes.NewReader(data)

	count, err := readLEB128(r)
	if err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}
	if count > 10000 {
		return nil, fmt.Errorf("instance count %d exceeds maximum", count)
	}

	entries := make([]InstanceEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		kind, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("instance %d: read kind: %w", i, err)
		}

		switch kind {
		case 0x00: // instantiate
			compIdx, err := readLEB128(r)
			if err != nil {
				return nil, fmt.Errorf("instance %d: read component idx: %w", i, err)
			}
			argCount, err := readLEB128(r)
			if err != nil {
				return nil, fmt.Errorf("instance %d: read arg count: %w", i, err)
			}
			if argCount > 10000 {
				return nil, fmt.Errorf("instance %d: arg count %d exceeds maximum", i, argCount)
			}
			args := make([]InstanceArg, 0, argCount)
			for j := uint32(0); j < argCount; j++ {
				name, err := readName(r)
				if err != nil {
					return nil, fmt.Errorf("instance %d arg %d: %w", i, j, err)
				}
				sort, err := readByte(r)
				if err != nil {
					return nil, fmt.Errorf("instance %d arg %d: read sort: %w", i, j, err)
				}
				if sort == SortCore {
					if _, err := readByte(r); err != nil {
						return nil, fmt.Errorf("instance %d arg %d: read core sort: %w", i, j, err)
					}
				}
				idx, err := readLEB128(r)
				if err != nil {
					return nil, fmt.Errorf("instance %d arg %d: read idx: %w", i, j, err)
				}
				args = append(args, InstanceArg{Name: name, Sort: sort, Idx: idx})
			}
			entries = append(entries, InstanceEntry{
				Kind:         InstanceInstantiate,
				ComponentIdx: compIdx,
				Args:         args,
			})

		case 0x01: // inline exports
			expCount, err := readLEB128(r)
			if err != nil {
				return nil, fmt.Errorf("instance %d: read export count: %w", i, err)
			}
			if expCount > 10000 {
				return nil, fmt.Errorf("instance %d: export count %d exceeds maximum", i, expCount)
			}
			exports := make([]InlineExport, 0, expCount)
			for j := uint32(0); j < expCount; j++ {
				// export names carry a leading name kind byte
				if _, err := readByte(r); err != nil {
					return nil, fmt.Errorf("instance %d export %d: read name kind: %w", i, j, err)
				}
				name, err := readName(r)
				if err != nil {
					return nil, fmt.Errorf("instance %d export %d: %w", i, j, err)
				}
				sort, err := readByte(r)
				if err != nil {
					return nil, fmt.Errorf("instance %d export %d: read sort: %w", i, j, err)
				}
				if sort == SortCore {
					if _, err := readByte(r); err != nil {
						return nil, fmt.Errorf("instance %d export %d: read core sort: %w", i, j, err)
					}
				}
				idx, err := readLEB128(r)
				if err != nil {
					return nil, fmt.Errorf("instance %d export %d: read idx: %w", i, j, err)
				}
				exports = append(exports, InlineExport{Name: name, Sort: sort, Idx: idx})
			}
			entries = append(entries, InstanceEntry{
				Kind:          InstanceInline,
				InlineExports: exports,
			})

		default:
			return nil, fmt.Errorf("instance %d: unknown kind 0x%02x", i, kind)
		}
	}

	return entries, nil
}

func decodeImports(data []byte) ([]Import, error) {
	r := bytes.NewReader(data)

	count, err := readLEB128(r)
	if err != nil {
		return nil, err
	}
	if count > 100000 {
		return nil, fmt.Errorf("import count %d exceeds maximum", count)
	}

	imports := make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		if _, err := readByte(r); err != nil {
			return nil, fmt.Errorf("import %d: read name kind: %w", i, err)
		}

		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}

		externKind, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("import %d: read extern kind: %w", i, err)
		}

		if externKind == ExternCoreModule {
			extra, err := readByte(r)
			if err != nil {
				return nil, fmt.Errorf("import %d: read core module marker: %w", i, err)
			}
			if extra != 0x11 {
				return nil, fmt.Errorf("import %d: expected 0x11 after 0x00, got 0x%02x", i, extra)
			}
		}

		var typeIndex uint32
		if externKind == ExternType {
			boundsKind, err := readByte(r)
			if err != nil {
				return nil, fmt.Errorf("import %d: read type bounds kind: %w", i, err)
			}
			switch boundsKind {
			case 0x00:
				typeIndex, err = readLEB128(r)
				if err != nil {
					return nil, fmt.Errorf("import %d: read type bounds index: %w", i, err)
				}
			case 0x01:
				typeIndex = 0
			default:
				return nil, fmt.Errorf("import %d: unknown type bounds kind 0x%02x", i, boundsKind)
			}
		} else {
			typeIndex, err = readLEB128(r)
			if err != nil {
				return nil, fmt.Errorf("import %d: read type index: %w", i, err)
			}
		}

		imports = append(imports, Import{
			Name:       name,
			ExternKind: externKind,
			TypeIndex:  typeIndex,
		})
	}

	return imports, nil
}

func decodeExports(data []byte) ([]Export, error) {
	r := bytes.NewReader(data)

	count, err := readLEB128(r)
	if err != nil {
		return nil, err
	}
	if count > 100000 {
		return nil, fmt.Errorf("export count %d exceeds maximum", count)
	}

	exports := make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		if _, err := readByte(r); err != nil {
			return nil, fmt.Errorf("export %d: read name kind: %w", i, err)
		}

		name, err := readName(r)
		if err != nil {
			return nil, fmt.Errorf("export %d: %w", i, err)
		}

		sort, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("export %d: read sort: %w", i, err)
		}

		if sort == SortCore {
			if _, err := readByte(r); err != nil {
				return nil, fmt.Errorf("export %d: read core sort: %w", i, err)
			}
		}

		sortIndex, err := readLEB128(r)
		if err != nil {
			return nil, fmt.Errorf("export %d: read sort index: %w", i, err)
		}

		exports = append(exports, Export{
			Name:      name,
			Sort:      sort,
			SortIndex: sortIndex,
		})
	}

	return exports, nil
}

type canonDef struct {
	Kind      byte
	FuncIndex uint32
	TypeIndex uint32
}

// canon kinds
const (
	canonLift         byte = 0x00
	canonLower        byte = 0x01
	canonResourceNew  byte = 0x02
	canonResourceDrop byte = 0x03
	canonResourceRep  byte = 0x04
)

// canon option kinds that carry an index operand
func canonOptHasIndex(kind byte) bool {
	switch kind {
	case 0x03, 0x04, 0x05, 0x07, 0x08: // memory, realloc, post-return, callback, core-type
		return true
	}
	return false
}

// parseCanonSection parses a canon section. The section encodes a vec but
// carries exactly one canon per section in practice.
func parseCanonSection(data []byte) (*canonDef, error) {
	r := bytes.NewReader(data)

	count, err := readLEB128(r)
	if err != nil {
		return nil, fmt.Errorf("read canon count: %w", err)
	}
	if count != 1 {
		return nil, fmt.Errorf("expected 1 canon in section, got %d", count)
	}

	kind, err := readByte(r)
	if err != nil {
		return nil, fmt.Errorf("read canon kind: %w", err)
	}

	canon := &canonDef{Kind: kind}

	switch kind {
	case canonLift:
		subKind, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("read lift sub-kind: %w", err)
		}
		if subKind != 0x00 {
			return nil, fmt.Errorf("unknown lift sub-kind 0x%02x", subKind)
		}
		canon.FuncIndex, err = readLEB128(r)
		if err != nil {
			return nil, fmt.Errorf("read core func index: %w", err)
		}
		if err := skipCanonOptions(r); err != nil {
			return nil, err
		}
		canon.TypeIndex, err = readLEB128(r)
		if err != nil {
			return nil, fmt.Errorf("read type index: %w", err)
		}

	case canonLower:
		subKind, err := readByte(r)
		if err != nil {
			return nil, fmt.Errorf("read lower sub-kind: %w", err)
		}
		if subKind != 0x00 {
			return nil, fmt.Errorf("unknown lower sub-kind 0x%02x", subKind)
		}
		canon.FuncIndex, err = readLEB128(r)
		if err != nil {
			return nil, fmt.Errorf("read func index: %w", err)
		}
		if err := skipCanonOptions(r); err != nil {
			return nil, err
		}

	case canonResourceNew, canonResourceDrop, canonResourceRep:
		if _, err := readLEB128(r); err != nil {
			return nil, fmt.Errorf("read resource type: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown canon kind 0x%02x", kind)
	}

	return canon, nil
}

func skipCanonOptions(r *bytes.Reader) error {
	count, err := readLEB128(r)
	if err != nil {
		return fmt.Errorf("read option count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		kind, err := readByte(r)
		if err != nil {
			return fmt.Errorf("read option %d kind: %w", i, err)
		}
		if canonOptHasIndex(kind) {
			if _, err := readLEB128(r); err != nil {
				return fmt.Errorf("read option %d index: %w", i, err)
			}
		}
	}
	return nil
}

func readByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		return br.ReadByte()
	}
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readLEB128(r io.Reader) (uint32, error) {
	var result uint32
	var shift uint
	for i := 0; i < 5; i++ {
		b, err := readByte(r)
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift >= 32 {
			return 0, fmt.Errorf("LEB128 value too large")
		}
	}
	return 0, fmt.Errorf("LEB128 encoding exceeded maximum length")
}

// readSLEB128 reads a signed LEB128 (var_s33 for type indices)
func readSLEB128(r io.Reader) (int32, error) {
	var result int32
	var shift uint
	var b byte

	for i := 0; i < 5; i++ {
		var err error
		b, err = readByte(r)
		if err != nil {
			return 0, err
		}
		result |= int32(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 33 && (b&0x40) != 0 {
				result |= int32(-1) << shift
			}
			return result, nil
		}
	}
	return 0, fmt.Errorf("SLEB128 encoding exceeded maximum length")
}

func readName(r io.Reader) (string, error) {
	length, err := readLEB128(r)
	if err != nil {
		return "", fmt.Errorf("read name length: %w", err)
	}
	if length > 10000 {
		return "", fmt.Errorf("name length %d exceeds maximum", length)
	}
	if length == 0 {
		return "", nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read name bytes: %w", err)
	}
	return string(buf), nil
}
