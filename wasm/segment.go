package wasm

import (
	"fmt"
	"io"
	"math"

	"github.com/wasmlite/wasmlite/wasm/leb128"
)

const (
	ImportKindFunction byte = 0x00
	ImportKindTable    byte = 0x01
	ImportKindMemory   byte = 0x02
	ImportKindGlobal   byte = 0x03
)

// ImportDesc describes what an import expects: a function with the given
// type index, or a memory with the given limits. Table and global imports
// are rejected at decode time.
type ImportDesc struct {
	Kind byte

	TypeIndexPtr *uint32
	MemTypePtr   *MemoryType
}

func readImportDesc(r io.Reader) (*ImportDesc, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read value kind: %w", err)
	}

	switch b[0] {
	case ImportKindFunction:
		tID, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read typeindex: %w", err)
		}
		return &ImportDesc{Kind: ImportKindFunction, TypeIndexPtr: &tID}, nil
	case ImportKindMemory:
		mt, err := readMemoryType(r)
		if err != nil {
			return nil, fmt.Errorf("read memory type: %w", err)
		}
		return &ImportDesc{Kind: ImportKindMemory, MemTypePtr: mt}, nil
	case ImportKindTable, ImportKindGlobal:
		return nil, fmt.Errorf("import kind %#x not supported", b[0])
	default:
		return nil, fmt.Errorf("%w: invalid byte for importdesc: %#x", ErrInvalidByte, b[0])
	}
}

type ImportSegment struct {
	Module, Name string
	Desc         *ImportDesc
}

func readImportSegment(r io.Reader) (*ImportSegment, error) {
	mn, err := readNameValue(r)
	if err != nil {
		return nil, fmt.Errorf("read module name: %w", err)
	}

	n, err := readNameValue(r)
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}

	d, err := readImportDesc(r)
	if err != nil {
		return nil, fmt.Errorf("read import description: %w", err)
	}

	return &ImportSegment{Module: mn, Name: n, Desc: d}, nil
}

const (
	ExportKindFunction byte = 0x00
	ExportKindTable    byte = 0x01
	ExportKindMemory   byte = 0x02
	ExportKindGlobal   byte = 0x03
)

type ExportDesc struct {
	Kind  byte
	Index uint32
}

func readExportDesc(r io.Reader) (*ExportDesc, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read value kind: %w", err)
	}

	kind := b[0]
	switch kind {
	case ExportKindFunction, ExportKindTable, ExportKindMemory, ExportKindGlobal:
	default:
		return nil, fmt.Errorf("%w: invalid byte for exportdesc: %#x", ErrInvalidByte, kind)
	}

	id, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read export index: %w", err)
	}
	return &ExportDesc{Kind: kind, Index: id}, nil
}

type ExportSegment struct {
	Name string
	Desc *ExportDesc
}

func readExportSegment(r io.Reader) (*ExportSegment, error) {
	name, err := readNameValue(r)
	if err != nil {
		return nil, fmt.Errorf("read name of export: %w", err)
	}

	d, err := readExportDesc(r)
	if err != nil {
		return nil, fmt.Errorf("read export description: %w", err)
	}

	return &ExportSegment{Name: name, Desc: d}, nil
}

// CodeSegment is the body of a module-defined function with its local
// variable declarations flattened into one type per local.
type CodeSegment struct {
	NumLocals  uint32
	LocalTypes []ValueType
	Body       []byte
}

func readCodeSegment(r io.Reader) (*CodeSegment, error) {
	ss, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read size of code segment: %w", err)
	}

	r = io.LimitReader(r, int64(ss))

	// parse the run-length encoded local declarations
	ls, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read size of locals: %v", err)
	}

	var nums []uint64
	var types []ValueType
	var sum uint64
	b := make([]byte, 1)
	for i := uint32(0); i < ls; i++ {
		n, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read number of locals: %v", err)
		}
		sum += uint64(n)
		nums = append(nums, uint64(n))

		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("read type of local: %v", err)
		}
		switch vt := b[0]; vt {
		case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64:
			types = append(types, vt)
		default:
			return nil, fmt.Errorf("invalid local type: %#x", vt)
		}
	}

	if sum > math.MaxUint32 {
		return nil, fmt.Errorf("too many locals: %d", sum)
	}

	var localTypes []ValueType
	for i, num := range nums {
		for j := uint64(0); j < num; j++ {
			localTypes = append(localTypes, types[i])
		}
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if len(body) == 0 || body[len(body)-1] != OpcodeEnd {
		return nil, fmt.Errorf("expression must end with the end instruction")
	}

	return &CodeSegment{
		Body:       body,
		NumLocals:  uint32(sum),
		LocalTypes: localTypes,
	}, nil
}

// DataSegment initializes a range of a linear memory at instantiation time.
type DataSegment struct {
	MemoryIndex      uint32
	OffsetExpression *ConstantExpression
	Init             []byte
}

func readDataSegment(r io.Reader) (*DataSegment, error) {
	d, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read memory index: %v", err)
	}

	if d != 0 {
		return nil, fmt.Errorf("invalid memory index: %d", d)
	}

	expr, err := readConstantExpression(r)
	if err != nil {
		return nil, fmt.Errorf("read offset expression: %w", err)
	}

	vs, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read size of vector: %v", err)
	}

	b := make([]byte, vs)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read init of data segment: %v", err)
	}

	return &DataSegment{
		OffsetExpression: expr,
		Init:             b,
	}, nil
}
