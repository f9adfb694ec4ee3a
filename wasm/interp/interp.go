// Package interp implements a naive interpreter engine: a byte-addressed
// program counter walking function bodies directly, with explicit operand,
// label and call frame stacks.
package interp

import (
	"bytes"
	"fmt"
	"math"
	"reflect"

	"github.com/wasmlite/wasmlite/wasm"
	"github.com/wasmlite/wasmlite/wasm/leb128"
)

type (
	compiledFunction = func(args ...uint64) (returns []uint64, err error)

	interpreter struct {
		activeFrame       *frame
		frames            *frameStack
		operands          *operandStack
		compiledFunctions map[*wasm.FunctionInstance]compiledFunction
	}
)

var _ wasm.Engine = &interpreter{}

// NewEngine returns an Engine that interprets function bodies in place.
func NewEngine() wasm.Engine {
	return &interpreter{
		frames:            newFrameStack(),
		operands:          newOperandStack(),
		compiledFunctions: make(map[*wasm.FunctionInstance]compiledFunction),
	}
}

func (vm *interpreter) Call(f *wasm.FunctionInstance, args ...uint64) (returns []uint64, err error) {
	compiled, ok := vm.compiledFunctions[f]
	if !ok {
		return nil, fmt.Errorf("function not compiled")
	}
	return compiled(args...)
}

func (vm *interpreter) Compile(f *wasm.FunctionInstance) error {
	var compiled compiledFunction
	if f.HostFunction != nil {
		// Type check the host function ahead of any call.
		tp := f.HostFunction.Type()
		for i := 0; i < tp.NumIn(); i++ {
			kind := tp.In(i).Kind()
			if i == 0 {
				if kind != reflect.TypeOf(&wasm.HostFunctionCallContext{}).Kind() {
					return fmt.Errorf("host function must accept *wasm.HostFunctionCallContext as the first param")
				}
			} else {
				switch kind {
				case reflect.Float64, reflect.Float32,
					reflect.Uint32, reflect.Uint64,
					reflect.Int32, reflect.Int64:
				default:
					return fmt.Errorf("host function can only accept Float32/64, Uint32/64, and Int32/64")
				}
			}
		}
		compiled = func(args ...uint64) (returns []uint64, err error) {
			for _, arg := range args {
				vm.operands.push(arg)
			}
			callHostFunc(vm, f)
			tp := f.HostFunction.Type()
			ret := make([]uint64, tp.NumOut())
			for i := range ret {
				ret[len(ret)-1-i] = vm.operands.pop()
			}
			return ret, nil
		}
	} else {
		// The final end instruction is executed as a return.
		f.Body[len(f.Body)-1] = wasm.OpcodeReturn
		compiled = func(args ...uint64) (returns []uint64, err error) {
			for _, arg := range args {
				vm.operands.push(arg)
			}

			if err := vm.exec(f); err != nil {
				return nil, err
			}

			ret := make([]uint64, len(f.Signature.ReturnTypes))
			for i := range ret {
				ret[len(ret)-1-i] = vm.operands.pop()
			}
			return ret, nil
		}
	}
	vm.compiledFunctions[f] = compiled
	return nil
}

func (vm *interpreter) exec(f *wasm.FunctionInstance) (errRet error) {
	al := len(f.Signature.InputTypes)
	locals := make([]uint64, f.NumLocals+uint32(al))
	for i := 0; i < al; i++ {
		locals[al-1-i] = vm.operands.pop()
	}
	frame := &frame{
		f:      f,
		locals: locals,
		labels: newLabelStack(),
	}
	frame.labels.push(&label{
		arity:          len(f.Signature.ReturnTypes),
		continuationPC: uint64(len(f.Body)) - 1, // At return.
		operandSP:      -1,
	})

	prevFrameSP := vm.frames.sp
	prevActive := vm.activeFrame
	defer func() {
		if v := recover(); v != nil {
			// Stack unwind.
			vm.frames.sp = prevFrameSP
			vm.activeFrame = vm.frames.peek()
			if err, ok := v.(error); ok {
				errRet = err
			} else {
				errRet = fmt.Errorf("runtime error: %v", v)
			}
		}
	}()

	vm.pushFrame(frame)
	for vm.activeFrame != prevActive {
		instructions[vm.activeFrame.f.Body[vm.activeFrame.pc]](vm)
	}
	return
}

func (vm *interpreter) FetchInt32() int32 {
	ret, num, err := leb128.DecodeInt32(bytes.NewReader(
		vm.activeFrame.f.Body[vm.activeFrame.pc:]))
	if err != nil {
		panic(err)
	}
	vm.activeFrame.pc += num - 1
	return ret
}

func (vm *interpreter) FetchUint32() uint32 {
	ret, num, err := leb128.DecodeUint32(bytes.NewReader(
		vm.activeFrame.f.Body[vm.activeFrame.pc:]))
	if err != nil {
		panic(err)
	}
	vm.activeFrame.pc += num - 1
	return ret
}

func (vm *interpreter) pushFrame(f *frame) {
	vm.frames.push(f)
	vm.activeFrame = f
}

func (vm *interpreter) popFrame() *frame {
	ret := vm.frames.pop()
	vm.activeFrame = vm.frames.peek()
	return ret
}

// callHostFunc pops the host function's arguments off the operand stack,
// invokes it through reflection and pushes the results back.
func callHostFunc(vm *interpreter, f *wasm.FunctionInstance) {
	hostF := *f.HostFunction
	tp := hostF.Type()
	in := make([]reflect.Value, tp.NumIn())
	for i := len(in) - 1; i >= 1; i-- {
		val := reflect.New(tp.In(i)).Elem()
		raw := vm.operands.pop()
		switch tp.In(i).Kind() {
		case reflect.Float64, reflect.Float32:
			val.SetFloat(math.Float64frombits(raw))
		case reflect.Uint32, reflect.Uint64:
			val.SetUint(raw)
		case reflect.Int32, reflect.Int64:
			val.SetInt(int64(raw))
		default:
			panic("invalid input type")
		}
		in[i] = val
	}

	var memory *wasm.MemoryInstance
	if vm.activeFrame != nil {
		memory = vm.activeFrame.f.ModuleInstance.Memory
	}
	val := reflect.New(tp.In(0)).Elem()
	val.Set(reflect.ValueOf(&wasm.HostFunctionCallContext{Memory: memory}))
	in[0] = val

	vm.frames.push(&frame{f: f})
	for _, ret := range hostF.Call(in) {
		switch ret.Kind() {
		case reflect.Float64, reflect.Float32:
			vm.operands.push(math.Float64bits(ret.Float()))
		case reflect.Uint32, reflect.Uint64:
			vm.operands.push(ret.Uint())
		case reflect.Int32, reflect.Int64:
			vm.operands.push(uint64(ret.Int()))
		default:
			panic("invalid return type")
		}
	}
	vm.frames.pop()
}

var instructions = [256]func(vm *interpreter){
	wasm.OpcodeUnreachable: func(vm *interpreter) { panic("unreachable") },
	wasm.OpcodeNop:         func(vm *interpreter) { vm.activeFrame.pc++ },
	wasm.OpcodeBlock:       block,
	wasm.OpcodeLoop:        loop,
	wasm.OpcodeIf:          ifOp,
	wasm.OpcodeElse:        elseOp,
	wasm.OpcodeEnd:         end,
	wasm.OpcodeBr:          br,
	wasm.OpcodeBrIf:        brIf,
	wasm.OpcodeReturn:      returnOp,
	wasm.OpcodeCall:        call,
	wasm.OpcodeDrop:        drop,
	wasm.OpcodeLocalGet:    getLocal,
	wasm.OpcodeLocalSet:    setLocal,
	wasm.OpcodeLocalTee:    teeLocal,
	wasm.OpcodeI32Load:     i32Load,
	wasm.OpcodeI32Store:    i32Store,
	wasm.OpcodeMemorySize:  memorySize,
	wasm.OpcodeMemoryGrow:  memoryGrow,
	wasm.OpcodeI32Const:    i32Const,
	wasm.OpcodeI32Eqz:      i32eqz,
	wasm.OpcodeI32Eq:       i32eq,
	wasm.OpcodeI32Ne:       i32ne,
	wasm.OpcodeI32LtS:      i32lts,
	wasm.OpcodeI32GtS:      i32gts,
	wasm.OpcodeI32Add:      i32add,
	wasm.OpcodeI32Sub:      i32sub,
	wasm.OpcodeI32Mul:      i32mul,
}
