package leb128

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeUint32(t *testing.T) {
	for _, tt := range []struct {
		in  []byte
		exp uint32
	}{
		{in: []byte{0x00}, exp: 0},
		{in: []byte{0x04}, exp: 4},
		{in: []byte{0x80, 0x7f}, exp: 16256},
		{in: []byte{0xe5, 0x8e, 0x26}, exp: 624485},
		{in: []byte{0x80, 0x80, 0x80, 0x4f}, exp: 165675008},
		{in: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, exp: 0xffffffff},
	} {
		actual, num, err := DecodeUint32(bytes.NewReader(tt.in))
		require.NoError(t, err)
		require.Equal(t, tt.exp, actual)
		require.Equal(t, uint64(len(tt.in)), num)
	}
}

func TestDecodeUint32_short(t *testing.T) {
	_, _, err := DecodeUint32(bytes.NewReader([]byte{0x80}))
	require.Error(t, err)
}

func TestDecodeInt32(t *testing.T) {
	for _, tt := range []struct {
		in  []byte
		exp int32
	}{
		{in: []byte{0x00}, exp: 0},
		{in: []byte{0x04}, exp: 4},
		{in: []byte{0x40}, exp: -64},
		{in: []byte{0x7f}, exp: -1},
		{in: []byte{0x81, 0x01}, exp: 129},
		{in: []byte{0xff, 0x7e}, exp: -129},
		{in: []byte{0x80, 0x80, 0x80, 0x80, 0x78}, exp: -2147483648},
	} {
		actual, num, err := DecodeInt32(bytes.NewReader(tt.in))
		require.NoError(t, err)
		require.Equal(t, tt.exp, actual)
		require.Equal(t, uint64(len(tt.in)), num)
	}
}

func TestDecodeInt33AsInt64(t *testing.T) {
	for _, tt := range []struct {
		in  []byte
		exp int64
	}{
		{in: []byte{0x00}, exp: 0},
		{in: []byte{0x40}, exp: -64},
		{in: []byte{0x7f}, exp: -1},
		{in: []byte{0x7e}, exp: -2},
		{in: []byte{0x7d}, exp: -3},
		{in: []byte{0x7c}, exp: -4},
		{in: []byte{0x80, 0x01}, exp: 128},
	} {
		actual, _, err := DecodeInt33AsInt64(bytes.NewReader(tt.in))
		require.NoError(t, err)
		require.Equal(t, tt.exp, actual)
	}
}

func TestEncodeUint32(t *testing.T) {
	for _, tt := range []struct {
		in  uint32
		exp []byte
	}{
		{in: 0, exp: []byte{0x00}},
		{in: 1, exp: []byte{0x01}},
		{in: 4, exp: []byte{0x04}},
		{in: 16256, exp: []byte{0x80, 0x7f}},
		{in: 624485, exp: []byte{0xe5, 0x8e, 0x26}},
		{in: 0xffffffff, exp: []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	} {
		require.Equal(t, tt.exp, EncodeUint32(tt.in))
	}
}

func TestEncode_DecodeInt32(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 14, -64, 124, -129, 624485, -624485, 2147483647, -2147483648} {
		actual, _, err := DecodeInt32(bytes.NewReader(EncodeInt32(v)))
		require.NoError(t, err)
		require.Equal(t, v, actual)
	}
}

func TestEncode_DecodeUint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 14, 16256, 624485, 0xffffffff} {
		actual, _, err := DecodeUint32(bytes.NewReader(EncodeUint32(v)))
		require.NoError(t, err)
		require.Equal(t, v, actual)
	}
}
