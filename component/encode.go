package component

// Binary writer for component containers. The composer assembles its
// output through an Encoder; each method appends one complete section so
// the produced byte stream round-trips through Decode.

// Encoder builds a component binary section by section.
type Encoder struct {
	buf []byte
}

// component container preamble: wasm magic, version 13, layer 1
var componentPreamble = []byte{0x00, 0x61, 0x73, 0x6D, 0x0D, 0x00, 0x01, 0x00}

// NewEncoder starts a component binary with the container preamble.
func NewEncoder() *Encoder {
	e := &Encoder{}
	e.buf = append(e.buf, componentPreamble...)
	return e
}

// Bytes returns the encoded binary.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Custom appends a named custom section.
func (e *Encoder) Custom(name string, data []byte) {
	payload := appendString(nil, name)
	payload = append(payload, data...)
	e.section(sectionCustom, payload)
}

// NestedComponent embeds a complete component binary as a nested
// component, extending the component index space by one.
func (e *Encoder) NestedComponent(raw []byte) {
	e.section(sectionComponent, raw)
}

// CoreModule embeds a complete core module binary, extending the core
// module index space by one.
func (e *Encoder) CoreModule(raw []byte) {
	e.section(sectionCoreModule, raw)
}

// EmptyInstanceType declares an instance type with no declarations,
// extending the type index space by one. The composer uses it to type
// pass-through imports whose shape it does not need to restate.
func (e *Encoder) EmptyInstanceType() {
	payload := appendLEB128(nil, 1)
	payload = append(payload, 0x42)
	payload = appendLEB128(payload, 0)
	e.section(sectionType, payload)
}

// ImportInstance declares an instance import, extending the instance
// index space by one.
func (e *Encoder) ImportInstance(name string, typeIdx uint32) {
	payload := appendLEB128(nil, 1)
	payload = append(payload, 0x00) // name kind
	payload = appendString(payload, name)
	payload = append(payload, ExternInstance)
	payload = appendLEB128(payload, typeIdx)
	e.section(sectionImport, payload)
}

// InstantiateComponent instantiates a nested component with the given
// arguments, extending the instance index space by one.
func (e *Encoder) InstantiateComponent(compIdx uint32, args []InstanceArg) {
	payload := appendLEB128(nil, 1)
	payload = append(payload, 0x00) // instantiate
	payload = appendLEB128(payload, compIdx)
	payload = appendLEB128(payload, uint32(len(args)))
	for _, a := range args {
		payload = appendString(payload, a.Name)
		payload = append(payload, a.Sort)
		payload = appendLEB128(payload, a.Idx)
	}
	e.section(sectionInstance, payload)
}

// InlineInstance bundles existing items into a fresh instance, extending
// the instance index space by one.
func (e *Encoder) InlineInstance(exports []InlineExport) {
	payload := appendLEB128(nil, 1)
	payload = append(payload, 0x01) // inline exports
	payload = appendLEB128(payload, uint32(len(exports)))
	for _, ex := range exports {
		payload = append(payload, 0x00) // name kind
		payload = appendString(payload, ex.Name)
		payload = append(payload, ex.Sort)
		payload = appendLEB128(payload, ex.Idx)
	}
	e.section(sectionInstance, payload)
}

// AliasInstanceExport projects a named export out of an instance,
// extending the index space of the aliased sort by one.
func (e *Encoder) AliasInstanceExport(instIdx uint32, name string, sort byte) {
	payload := appendLEB128(nil, 1)
	payload = append(payload, sort)
	payload = append(payload, aliasTargetInstanceExport)
	payload = appendLEB128(payload, instIdx)
	payload = appendString(payload, name)
	e.section(sectionAlias, payload)
}

// Export re-exports an item under the given name.
func (e *Encoder) Export(name string, sort byte, idx uint32) {
	payload := appendLEB128(nil, 1)
	payload = append(payload, 0x00) // name kind
	payload = appendString(payload, name)
	payload = append(payload, sort)
	payload = appendLEB128(payload, idx)
	e.section(sectionExport, payload)
}

func (e *Encoder) section(id byte, payload []byte) {
	e.buf = append(e.buf, id)
	e.buf = appendLEB128(e.buf, uint32(len(payload)))
	e.buf = append(e.buf, payload...)
}

func appendLEB128(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

func appendString(buf []byte, s string) []byte {
	buf = appendLEB128(buf, uint32(len(s)))
	return append(buf, s...)
}
