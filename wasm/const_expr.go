package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wasmlite/wasmlite/wasm/leb128"
)

// ConstantExpression is an initializer expression as found in data segment
// offsets. Only i32.const expressions are accepted; global.get initializers
// would need a global index space which this runtime does not carry.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

func readConstantExpression(r io.Reader) (*ConstantExpression, error) {
	b := make([]byte, 1)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read opcode: %v", err)
	}

	if b[0] != OpcodeI32Const {
		return nil, fmt.Errorf("invalid opcode for constant expression: %#x", b[0])
	}

	var data bytes.Buffer
	if _, _, err := leb128.DecodeInt32(io.TeeReader(r, &data)); err != nil {
		return nil, fmt.Errorf("read i32.const immediate: %v", err)
	}

	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("look for end opcode: %v", err)
	}
	if b[0] != OpcodeEnd {
		return nil, fmt.Errorf("constant expression has not terminated")
	}

	return &ConstantExpression{Opcode: OpcodeI32Const, Data: data.Bytes()}, nil
}

func encodeConstantExpression(expr *ConstantExpression) []byte {
	return append(append([]byte{expr.Opcode}, expr.Data...), OpcodeEnd)
}
