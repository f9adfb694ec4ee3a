package interp_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmlite/wasmlite/wasm"
	"github.com/wasmlite/wasmlite/wasm/interp"
)

var (
	i32                  = wasm.ValueTypeI32
	sigI32               = &wasm.FunctionType{ReturnTypes: []wasm.ValueType{i32}}
	sigI32I32ToI32       = &wasm.FunctionType{InputTypes: []wasm.ValueType{i32, i32}, ReturnTypes: []wasm.ValueType{i32}}
	sigI32ToI32          = &wasm.FunctionType{InputTypes: []wasm.ValueType{i32}, ReturnTypes: []wasm.ValueType{i32}}
	sigVoid              = &wasm.FunctionType{}
	exportMain           = func(index uint32) map[string]*wasm.ExportSegment {
		return map[string]*wasm.ExportSegment{
			"main": {Name: "main", Desc: &wasm.ExportDesc{Kind: wasm.ExportKindFunction, Index: index}},
		}
	}
)

func callMain(t *testing.T, m *wasm.Module, args ...uint64) ([]uint64, error) {
	t.Helper()
	s := wasm.NewStore(interp.NewEngine())
	require.NoError(t, s.Instantiate(m, "test"))
	ret, _, err := s.CallFunction("test", "main", args...)
	return ret, err
}

func TestInterpreter_i32Const(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			{Body: []byte{0x41, 0x2a, 0x0b}}, // i32.const 42
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, ret)
}

func TestInterpreter_i32Binops(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   byte
		v1   uint64
		v2   uint64
		exp  uint64
	}{
		{name: "add", op: 0x6a, v1: 2, v2: 40, exp: 42},
		{name: "add wraps", op: 0x6a, v1: 0xffffffff, v2: 1, exp: 0},
		{name: "sub", op: 0x6b, v1: 50, v2: 8, exp: 42},
		{name: "sub wraps", op: 0x6b, v1: 0, v2: 1, exp: 0xffffffff},
		{name: "mul", op: 0x6c, v1: 6, v2: 7, exp: 42},
		{name: "eq true", op: 0x46, v1: 5, v2: 5, exp: 1},
		{name: "eq false", op: 0x46, v1: 5, v2: 6, exp: 0},
		{name: "ne", op: 0x47, v1: 5, v2: 6, exp: 1},
		{name: "lt_s signed", op: 0x48, v1: 0xffffffff, v2: 1, exp: 1}, // -1 < 1
		{name: "lt_s false", op: 0x48, v1: 1, v2: 0xffffffff, exp: 0},
		{name: "gt_s", op: 0x4a, v1: 1, v2: 0xffffffff, exp: 1}, // 1 > -1
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := &wasm.Module{
				TypeSection:     []*wasm.FunctionType{sigI32I32ToI32},
				FunctionSection: []uint32{0},
				CodeSection: []*wasm.CodeSegment{
					{Body: []byte{0x20, 0x00, 0x20, 0x01, tc.op, 0x0b}},
				},
				ExportSection: exportMain(0),
			}
			ret, err := callMain(t, m, tc.v1, tc.v2)
			require.NoError(t, err)
			require.Equal(t, []uint64{tc.exp}, ret)
		})
	}
}

func TestInterpreter_i32Eqz(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32ToI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			{Body: []byte{0x20, 0x00, 0x45, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ret)

	ret, err = callMain(t, m, 7)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, ret)
}

func TestInterpreter_locals(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			// local.set then local.get of a declared local.
			{NumLocals: 1, LocalTypes: []wasm.ValueType{i32},
				Body: []byte{0x41, 0x2a, 0x21, 0x00, 0x20, 0x00, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, ret)
}

func TestInterpreter_call(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32ToI32},
		FunctionSection: []uint32{0, 0},
		CodeSection: []*wasm.CodeSegment{
			// main: doubler(local 0)
			{Body: []byte{0x20, 0x00, 0x10, 0x01, 0x0b}},
			// doubler: local 0 + local 0
			{Body: []byte{0x20, 0x00, 0x20, 0x00, 0x6a, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m, 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, ret)
}

func TestInterpreter_callHostFunction(t *testing.T) {
	s := wasm.NewStore(interp.NewEngine())
	require.NoError(t, s.AddHostFunction("env", "add", reflect.ValueOf(
		func(ctx *wasm.HostFunctionCallContext, a, b uint32) uint32 { return a + b },
	)))

	typeIndex := uint32(0)
	m := &wasm.Module{
		TypeSection: []*wasm.FunctionType{sigI32I32ToI32},
		ImportSection: []*wasm.ImportSegment{
			{Module: "env", Name: "add", Desc: &wasm.ImportDesc{Kind: wasm.ImportKindFunction, TypeIndexPtr: &typeIndex}},
		},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			{Body: []byte{0x20, 0x00, 0x20, 0x01, 0x10, 0x00, 0x0b}},
		},
		ExportSection: exportMain(1),
	}
	require.NoError(t, s.Instantiate(m, "test"))

	ret, _, err := s.CallFunction("test", "main", 2, 40)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, ret)
}

func TestInterpreter_ifElse(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32ToI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			// if (result i32) local 0 then 1 else 2
			{Body: []byte{0x20, 0x00, 0x04, 0x7f, 0x41, 0x01, 0x05, 0x41, 0x02, 0x0b, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ret)

	ret, err = callMain(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, ret)
}

func TestInterpreter_ifWithoutElse(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32ToI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			// local.set 0 inside the if arm, then return local 0.
			{Body: []byte{
				0x20, 0x00, // local.get 0
				0x04, 0x40, // if (no result)
				0x41, 0x2a, // i32.const 42
				0x21, 0x00, // local.set 0
				0x0b,       // end
				0x20, 0x00, // local.get 0
				0x0b,
			}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m, 1)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, ret)

	ret, err = callMain(t, m, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, ret)
}

func TestInterpreter_fibonacci(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32ToI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			// fib(n) = n < 2 ? 1 : fib(n-1) + fib(n-2)
			{Body: []byte{
				0x20, 0x00, 0x41, 0x02, 0x48, // n < 2
				0x04, 0x7f, // if (result i32)
				0x41, 0x01, // 1
				0x05, // else
				0x20, 0x00, 0x41, 0x01, 0x6b, 0x10, 0x00, // fib(n-1)
				0x20, 0x00, 0x41, 0x02, 0x6b, 0x10, 0x00, // fib(n-2)
				0x6a, // add
				0x0b,
				0x0b,
			}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m, 10)
	require.NoError(t, err)
	require.Equal(t, []uint64{89}, ret)
}

func TestInterpreter_loopBrIf(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			// Count local 0 up to 10.
			{NumLocals: 1, LocalTypes: []wasm.ValueType{i32},
				Body: []byte{
					0x03, 0x40, // loop
					0x20, 0x00, 0x41, 0x01, 0x6a, // local 0 + 1
					0x22, 0x00, // local.tee 0
					0x41, 0x0a, 0x47, // != 10
					0x0d, 0x00, // br_if 0
					0x0b,
					0x20, 0x00,
					0x0b,
				}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{10}, ret)
}

func TestInterpreter_blockBr(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			// block (result i32) 7; br 0 end
			{Body: []byte{0x02, 0x7f, 0x41, 0x07, 0x0c, 0x00, 0x0b, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, ret)
}

func TestInterpreter_memoryLoadStore(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		MemorySection:   []*wasm.MemoryType{{Min: 1}},
		CodeSection: []*wasm.CodeSegment{
			// store 42 at address 10, then load it back.
			{Body: []byte{
				0x41, 0x0a, 0x41, 0x2a, 0x36, 0x02, 0x00,
				0x41, 0x0a, 0x28, 0x02, 0x00,
				0x0b,
			}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, ret)
}

func TestInterpreter_memoryLoadOutOfBounds(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32ToI32},
		FunctionSection: []uint32{0},
		MemorySection:   []*wasm.MemoryType{{Min: 1}},
		CodeSection: []*wasm.CodeSegment{
			{Body: []byte{0x20, 0x00, 0x28, 0x02, 0x00, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	_, err := callMain(t, m, uint64(wasm.PageSize))
	require.Error(t, err)
}

func TestInterpreter_memorySizeGrow(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		MemorySection:   []*wasm.MemoryType{{Min: 1}},
		CodeSection: []*wasm.CodeSegment{
			// grow by 1 page, drop the old size, report the new size.
			{Body: []byte{0x41, 0x01, 0x40, 0x00, 0x1a, 0x3f, 0x00, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, ret)
}

func TestInterpreter_memoryGrowBeyondMax(t *testing.T) {
	max := uint32(1)
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		MemorySection:   []*wasm.MemoryType{{Min: 1, Max: &max}},
		CodeSection: []*wasm.CodeSegment{
			{Body: []byte{0x41, 0x01, 0x40, 0x00, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{0xffffffff}, ret)
}

func TestInterpreter_unreachable(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigVoid},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			{Body: []byte{0x00, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	_, err := callMain(t, m)
	require.ErrorContains(t, err, "unreachable")
}

func TestInterpreter_callStackOverflow(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigVoid},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			// Calls itself forever.
			{Body: []byte{0x10, 0x00, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	_, err := callMain(t, m)
	require.ErrorIs(t, err, wasm.ErrCallStackOverflow)
}

func TestInterpreter_nop(t *testing.T) {
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{sigI32},
		FunctionSection: []uint32{0},
		CodeSection: []*wasm.CodeSegment{
			{Body: []byte{0x01, 0x41, 0x2a, 0x01, 0x0b}},
		},
		ExportSection: exportMain(0),
	}
	ret, err := callMain(t, m)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, ret)
}
