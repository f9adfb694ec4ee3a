package wasm

import (
	"fmt"
	"io"

	"github.com/wasmlite/wasmlite/wasm/leb128"
)

// FunctionType is a function signature: zero or more parameters and, in the
// MVP binary format, at most one result.
type FunctionType struct {
	InputTypes  []ValueType
	ReturnTypes []ValueType
}

func readFunctionType(r io.Reader) (*FunctionType, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read leading byte: %w", err)
	}

	if b[0] != 0x60 {
		return nil, fmt.Errorf("%w: %#x != 0x60", ErrInvalidByte, b[0])
	}

	s, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read size of input value types: %w", err)
	}

	in, err := readValueTypes(r, s)
	if err != nil {
		return nil, fmt.Errorf("read input value types: %w", err)
	}

	s, _, err = leb128.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read size of return value types: %w", err)
	} else if s > 1 {
		return nil, fmt.Errorf("multi value results not supported")
	}

	out, err := readValueTypes(r, s)
	if err != nil {
		return nil, fmt.Errorf("read return value types: %w", err)
	}

	return &FunctionType{InputTypes: in, ReturnTypes: out}, nil
}

// MemoryType are the limits of a linear memory, counted in 64KiB pages.
type MemoryType struct {
	Min uint32
	Max *uint32
}

// memoryMaxPages caps a memory at 4GiB as required by the MVP.
const memoryMaxPages = 1 << 16

func readMemoryType(r io.Reader) (*MemoryType, error) {
	ret, err := readLimits(r)
	if err != nil {
		return nil, err
	}
	if ret.Min > memoryMaxPages {
		return nil, fmt.Errorf("memory min must be at most 65536 pages (4GiB): %d", ret.Min)
	} else if ret.Max != nil && *ret.Max < ret.Min {
		return nil, fmt.Errorf("memory size minimum must not be greater than maximum")
	}
	return ret, nil
}

func readLimits(r io.Reader) (*MemoryType, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read leading byte: %v", err)
	}

	ret := &MemoryType{}
	switch b[0] {
	case 0x00:
		var err error
		if ret.Min, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read min of limit: %v", err)
		}
	case 0x01:
		var err error
		if ret.Min, _, err = leb128.DecodeUint32(r); err != nil {
			return nil, fmt.Errorf("read min of limit: %v", err)
		}
		m, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read max of limit: %v", err)
		}
		ret.Max = &m
	default:
		return nil, fmt.Errorf("%w for limits: %#x != 0x00 or 0x01", ErrInvalidByte, b[0])
	}
	return ret, nil
}
