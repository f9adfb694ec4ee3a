package wasm

// Opcode identifies an instruction in the WebAssembly 1.0 (MVP) binary
// format. Only the control, parametric, variable, memory and 32-bit integer
// instructions needed by WASI command modules are listed here; anything else
// fails function analysis at instantiation time.
type Opcode = byte

const (
	// control instructions
	OpcodeUnreachable Opcode = 0x00
	OpcodeNop         Opcode = 0x01
	OpcodeBlock       Opcode = 0x02
	OpcodeLoop        Opcode = 0x03
	OpcodeIf          Opcode = 0x04
	OpcodeElse        Opcode = 0x05
	OpcodeEnd         Opcode = 0x0b
	OpcodeBr          Opcode = 0x0c
	OpcodeBrIf        Opcode = 0x0d
	OpcodeReturn      Opcode = 0x0f
	OpcodeCall        Opcode = 0x10

	// parametric instructions
	OpcodeDrop Opcode = 0x1a

	// variable instructions
	OpcodeLocalGet Opcode = 0x20
	OpcodeLocalSet Opcode = 0x21
	OpcodeLocalTee Opcode = 0x22

	// memory instructions
	OpcodeI32Load    Opcode = 0x28
	OpcodeI32Store   Opcode = 0x36
	OpcodeMemorySize Opcode = 0x3f
	OpcodeMemoryGrow Opcode = 0x40

	// numeric instructions
	OpcodeI32Const Opcode = 0x41
	OpcodeI32Eqz   Opcode = 0x45
	OpcodeI32Eq    Opcode = 0x46
	OpcodeI32Ne    Opcode = 0x47
	OpcodeI32LtS   Opcode = 0x48
	OpcodeI32GtS   Opcode = 0x4a
	OpcodeI32Add   Opcode = 0x6a
	OpcodeI32Sub   Opcode = 0x6b
	OpcodeI32Mul   Opcode = 0x6c
)
