package wasm

import (
	"bytes"
	"fmt"
	"io"
)

var (
	magic   = []byte{0x00, 0x61, 0x73, 0x6d}
	version = []byte{0x01, 0x00, 0x00, 0x00}
)

// Module is a decoded WebAssembly 1.0 (MVP) binary. Sections absent from the
// binary are left nil. The table, global and element sections are not
// supported and fail decoding.
type Module struct {
	TypeSection     []*FunctionType
	ImportSection   []*ImportSegment
	FunctionSection []uint32
	MemorySection   []*MemoryType
	ExportSection   map[string]*ExportSegment
	StartSection    *uint32
	CodeSection     []*CodeSegment
	DataSection     []*DataSegment
	CustomSections  map[string][]byte
}

// DecodeModule decodes a WebAssembly binary into a Module.
func DecodeModule(binary []byte) (*Module, error) {
	r := bytes.NewReader(binary)

	buf := make([]byte, 4)
	if n, err := io.ReadFull(r, buf); err != nil || n != 4 || !bytes.Equal(buf, magic) {
		return nil, ErrInvalidMagicNumber
	}

	if n, err := io.ReadFull(r, buf); err != nil || n != 4 || !bytes.Equal(buf, version) {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	if err := m.readSections(r); err != nil {
		return nil, fmt.Errorf("read sections: %w", err)
	}

	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, fmt.Errorf("function and code section have inconsistent lengths")
	}
	return m, nil
}
