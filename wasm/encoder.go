package wasm

import (
	"github.com/wasmlite/wasmlite/wasm/leb128"
)

// EncodeModule returns m in the WebAssembly 1.0 (MVP) binary format.
// If saving to a file, the conventional extension is wasm.
func EncodeModule(m *Module) (bytes []byte) {
	bytes = append(magic, version...)
	for name, data := range m.CustomSections {
		bytes = append(bytes, encodeCustomSection(name, data)...)
	}
	if len(m.TypeSection) > 0 {
		bytes = append(bytes, encodeTypeSection(m.TypeSection)...)
	}
	if len(m.ImportSection) > 0 {
		bytes = append(bytes, encodeImportSection(m.ImportSection)...)
	}
	if len(m.FunctionSection) > 0 {
		bytes = append(bytes, encodeFunctionSection(m.FunctionSection)...)
	}
	if len(m.MemorySection) > 0 {
		bytes = append(bytes, encodeMemorySection(m.MemorySection)...)
	}
	if len(m.ExportSection) > 0 {
		bytes = append(bytes, encodeExportSection(m.ExportSection)...)
	}
	if m.StartSection != nil {
		bytes = append(bytes, encodeStartSection(*m.StartSection)...)
	}
	if len(m.CodeSection) > 0 {
		bytes = append(bytes, encodeCodeSection(m.CodeSection)...)
	}
	if len(m.DataSection) > 0 {
		bytes = append(bytes, encodeDataSection(m.DataSection)...)
	}
	return
}

// encodeSection encodes the section id, the size of its contents in bytes,
// followed by the contents.
func encodeSection(id SectionID, contents []byte) []byte {
	return append([]byte{id}, encodeSizePrefixed(contents)...)
}

func encodeSizePrefixed(contents []byte) []byte {
	return append(leb128.EncodeUint32(uint32(len(contents))), contents...)
}

func encodeCustomSection(name string, data []byte) []byte {
	return encodeSection(SectionIDCustom, append(encodeNameValue(name), data...))
}

func encodeTypeSection(types []*FunctionType) []byte {
	contents := leb128.EncodeUint32(uint32(len(types)))
	for _, t := range types {
		contents = append(contents, encodeFunctionType(t)...)
	}
	return encodeSection(SectionIDType, contents)
}

func encodeFunctionType(t *FunctionType) []byte {
	ret := append([]byte{0x60}, encodeValueTypes(t.InputTypes)...)
	return append(ret, encodeValueTypes(t.ReturnTypes)...)
}

func encodeValueTypes(vt []ValueType) []byte {
	return append(leb128.EncodeUint32(uint32(len(vt))), vt...)
}

func encodeNameValue(name string) []byte {
	return append(leb128.EncodeUint32(uint32(len(name))), name...)
}

func encodeImportSection(imports []*ImportSegment) []byte {
	contents := leb128.EncodeUint32(uint32(len(imports)))
	for _, i := range imports {
		contents = append(contents, encodeImport(i)...)
	}
	return encodeSection(SectionIDImport, contents)
}

func encodeImport(i *ImportSegment) []byte {
	ret := append(encodeNameValue(i.Module), encodeNameValue(i.Name)...)
	ret = append(ret, i.Desc.Kind)
	switch i.Desc.Kind {
	case ImportKindFunction:
		ret = append(ret, leb128.EncodeUint32(*i.Desc.TypeIndexPtr)...)
	case ImportKindMemory:
		ret = append(ret, encodeMemoryType(i.Desc.MemTypePtr)...)
	default:
		panic("only function and memory imports can be encoded")
	}
	return ret
}

func encodeFunctionSection(typeIndices []uint32) []byte {
	contents := leb128.EncodeUint32(uint32(len(typeIndices)))
	for _, index := range typeIndices {
		contents = append(contents, leb128.EncodeUint32(index)...)
	}
	return encodeSection(SectionIDFunction, contents)
}

func encodeMemorySection(memories []*MemoryType) []byte {
	contents := leb128.EncodeUint32(uint32(len(memories)))
	for _, memory := range memories {
		contents = append(contents, encodeMemoryType(memory)...)
	}
	return encodeSection(SectionIDMemory, contents)
}

func encodeMemoryType(m *MemoryType) []byte {
	if m.Max == nil {
		return append([]byte{0x00}, leb128.EncodeUint32(m.Min)...)
	}
	ret := append([]byte{0x01}, leb128.EncodeUint32(m.Min)...)
	return append(ret, leb128.EncodeUint32(*m.Max)...)
}

func encodeExportSection(exports map[string]*ExportSegment) []byte {
	contents := leb128.EncodeUint32(uint32(len(exports)))
	for _, e := range exports {
		contents = append(contents, encodeExport(e)...)
	}
	return encodeSection(SectionIDExport, contents)
}

func encodeExport(e *ExportSegment) []byte {
	ret := append(encodeNameValue(e.Name), e.Desc.Kind)
	return append(ret, leb128.EncodeUint32(e.Desc.Index)...)
}

func encodeStartSection(funcidx uint32) []byte {
	return encodeSection(SectionIDStart, leb128.EncodeUint32(funcidx))
}

func encodeCodeSection(code []*CodeSegment) []byte {
	contents := leb128.EncodeUint32(uint32(len(code)))
	for _, c := range code {
		contents = append(contents, encodeCode(c)...)
	}
	return encodeSection(SectionIDCode, contents)
}

// encodeCode writes a code segment: the run-length compressed local
// declarations followed by the body, all prefixed with the byte size.
func encodeCode(c *CodeSegment) []byte {
	var locals []byte
	var numEntries uint32
	for i := 0; i < len(c.LocalTypes); {
		t := c.LocalTypes[i]
		n := 1
		for i+n < len(c.LocalTypes) && c.LocalTypes[i+n] == t {
			n++
		}
		locals = append(locals, leb128.EncodeUint32(uint32(n))...)
		locals = append(locals, t)
		numEntries++
		i += n
	}

	contents := append(leb128.EncodeUint32(numEntries), locals...)
	contents = append(contents, c.Body...)
	return encodeSizePrefixed(contents)
}

func encodeDataSection(data []*DataSegment) []byte {
	contents := leb128.EncodeUint32(uint32(len(data)))
	for _, d := range data {
		contents = append(contents, encodeDataSegment(d)...)
	}
	return encodeSection(SectionIDData, contents)
}

func encodeDataSegment(d *DataSegment) []byte {
	ret := append(leb128.EncodeUint32(d.MemoryIndex), encodeConstantExpression(d.OffsetExpression)...)
	return append(ret, encodeSizePrefixed(d.Init)...)
}
