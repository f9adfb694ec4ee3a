// Package leb128 decodes and encodes the variable-length integers used
// throughout the WebAssembly binary format.
package leb128

import (
	"fmt"
	"io"
)

// DecodeUint32 reads an unsigned 32-bit integer in LEB128 encoding from r,
// returning the value and the number of bytes consumed.
func DecodeUint32(r io.Reader) (ret uint32, num uint64, err error) {
	b := make([]byte, 1)
	for shift := 0; shift < 35; shift += 7 {
		if _, err = io.ReadFull(r, b); err != nil {
			return 0, 0, fmt.Errorf("read byte: %w", err)
		}
		num++
		ret |= (uint32(b[0]) & 0x7f) << shift
		if b[0]&0x80 == 0 {
			break
		}
	}
	return
}

// DecodeInt32 reads a signed 32-bit integer in LEB128 encoding from r,
// returning the value and the number of bytes consumed.
func DecodeInt32(r io.Reader) (ret int32, num uint64, err error) {
	b := make([]byte, 1)
	var shift int
	for shift < 35 {
		if _, err = io.ReadFull(r, b); err != nil {
			return 0, 0, fmt.Errorf("read byte: %w", err)
		}
		num++
		ret |= (int32(b[0]) & 0x7f) << shift
		shift += 7
		if b[0]&0x80 == 0 {
			break
		}
	}
	if shift < 32 && b[0]&0x40 != 0 {
		// sign extend
		ret |= int32(-1) << shift
	}
	return
}

// DecodeInt33AsInt64 reads a signed 33-bit integer in LEB128 encoding from r.
// The 33-bit width only appears in block type immediates, where negative
// values select a value type and non-negative values index the type section.
func DecodeInt33AsInt64(r io.Reader) (ret int64, num uint64, err error) {
	const (
		int33Mask uint64 = 1<<33 - 1
		signBit   int64  = 1 << 32
	)
	b := make([]byte, 1)
	var shift int
	for shift < 35 {
		if _, err = io.ReadFull(r, b); err != nil {
			return 0, 0, fmt.Errorf("read byte: %w", err)
		}
		num++
		ret |= (int64(b[0]) & 0x7f) << shift
		shift += 7
		if b[0]&0x80 == 0 {
			break
		}
	}
	if shift < 33 && b[0]&0x40 != 0 {
		ret |= int64(-1) << shift
	}
	ret &= int64(int33Mask)
	if ret&signBit != 0 {
		ret -= signBit << 1
	}
	return ret, num, nil
}

// EncodeUint32 returns the unsigned LEB128 encoding of v.
func EncodeUint32(v uint32) (buf []byte) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// EncodeInt32 returns the signed LEB128 encoding of v.
func EncodeInt32(v int32) (buf []byte) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
