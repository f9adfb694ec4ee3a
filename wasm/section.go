package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmlite/wasmlite/wasm/leb128"
)

// SectionID identifies the sections of a module in the binary format.
type SectionID = byte

const (
	SectionIDCustom   SectionID = 0
	SectionIDType     SectionID = 1
	SectionIDImport   SectionID = 2
	SectionIDFunction SectionID = 3
	SectionIDTable    SectionID = 4
	SectionIDMemory   SectionID = 5
	SectionIDGlobal   SectionID = 6
	SectionIDExport   SectionID = 7
	SectionIDStart    SectionID = 8
	SectionIDElement  SectionID = 9
	SectionIDCode     SectionID = 10
	SectionIDData     SectionID = 11
)

func (m *Module) readSections(r *bytes.Reader) error {
	b := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, b); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("read section id: %w", err)
		}

		ss, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return fmt.Errorf("get size of section %d: %w", b[0], err)
		}

		if err := m.readSection(r, b[0], ss); err != nil {
			return fmt.Errorf("section %d: %w", b[0], err)
		}
	}
}

func (m *Module) readSection(r *bytes.Reader, id SectionID, size uint32) error {
	switch id {
	case SectionIDCustom:
		return m.readSectionCustom(r, size)
	case SectionIDType:
		return m.readSectionTypes(r)
	case SectionIDImport:
		return m.readSectionImports(r)
	case SectionIDFunction:
		return m.readSectionFunctions(r)
	case SectionIDMemory:
		return m.readSectionMemories(r)
	case SectionIDExport:
		return m.readSectionExports(r)
	case SectionIDStart:
		return m.readSectionStart(r)
	case SectionIDCode:
		return m.readSectionCode(r)
	case SectionIDData:
		return m.readSectionData(r)
	case SectionIDTable, SectionIDGlobal, SectionIDElement:
		return fmt.Errorf("section id %d not supported", id)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidSectionID, id)
	}
}

func (m *Module) readSectionCustom(r *bytes.Reader, size uint32) error {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("read contents: %w", err)
	}

	cr := bytes.NewReader(buf)
	name, err := readNameValue(cr)
	if err != nil {
		return fmt.Errorf("read name: %w", err)
	}

	data := make([]byte, cr.Len())
	if _, err := io.ReadFull(cr, data); err != nil {
		return fmt.Errorf("read data: %w", err)
	}

	if m.CustomSections == nil {
		m.CustomSections = map[string][]byte{}
	}
	m.CustomSections[name] = data
	return nil
}

func (m *Module) readSectionTypes(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	m.TypeSection = make([]*FunctionType, vs)
	for i := range m.TypeSection {
		if m.TypeSection[i], err = readFunctionType(r); err != nil {
			return fmt.Errorf("read %d-th function type: %w", i, err)
		}
	}
	return nil
}

func (m *Module) readSectionImports(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	m.ImportSection = make([]*ImportSegment, vs)
	for i := range m.ImportSection {
		if m.ImportSection[i], err = readImportSegment(r); err != nil {
			return fmt.Errorf("read %d-th import: %w", i, err)
		}
	}
	return nil
}

func (m *Module) readSectionFunctions(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	m.FunctionSection = make([]uint32, vs)
	for i := range m.FunctionSection {
		if m.FunctionSection[i], _, err = leb128.DecodeUint32(r); err != nil {
			return fmt.Errorf("read %d-th type index: %w", i, err)
		}
	}
	return nil
}

func (m *Module) readSectionMemories(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	if vs > 1 {
		return fmt.Errorf("multiple memories are not supported")
	}

	m.MemorySection = make([]*MemoryType, vs)
	for i := range m.MemorySection {
		if m.MemorySection[i], err = readMemoryType(r); err != nil {
			return fmt.Errorf("read %d-th memory type: %w", i, err)
		}
	}
	return nil
}

func (m *Module) readSectionExports(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	m.ExportSection = make(map[string]*ExportSegment, vs)
	for i := uint32(0); i < vs; i++ {
		expDesc, err := readExportSegment(r)
		if err != nil {
			return fmt.Errorf("read %d-th export: %w", i, err)
		}

		if _, ok := m.ExportSection[expDesc.Name]; ok {
			return fmt.Errorf("duplicate export name: %s", expDesc.Name)
		}
		m.ExportSection[expDesc.Name] = expDesc
	}
	return nil
}

func (m *Module) readSectionStart(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("read function index: %w", err)
	}
	m.StartSection = &vs
	return nil
}

func (m *Module) readSectionCode(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	m.CodeSection = make([]*CodeSegment, vs)
	for i := range m.CodeSection {
		if m.CodeSection[i], err = readCodeSegment(r); err != nil {
			return fmt.Errorf("read %d-th code segment: %w", i, err)
		}
	}
	return nil
}

func (m *Module) readSectionData(r *bytes.Reader) error {
	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("get size of vector: %w", err)
	}

	m.DataSection = make([]*DataSegment, vs)
	for i := range m.DataSection {
		if m.DataSection[i], err = readDataSegment(r); err != nil {
			return fmt.Errorf("read %d-th data segment: %w", i, err)
		}
	}
	return nil
}
