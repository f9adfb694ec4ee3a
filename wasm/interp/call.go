package interp

import (
	"github.com/wasmlite/wasmlite/wasm"
)

func call(vm *interpreter) {
	vm.activeFrame.pc++
	index := vm.FetchUint32()
	currentF := vm.activeFrame.f
	nextF := currentF.ModuleInstance.Functions[index]
	callIn(vm, nextF)
}

func callIn(vm *interpreter, nextF *wasm.FunctionInstance) {
	vm.activeFrame.pc++ // skip the current call instruction of the current frame.
	if nextF.HostFunction != nil {
		callHostFunc(vm, nextF)
	} else {
		al := len(nextF.Signature.InputTypes)
		locals := make([]uint64, nextF.NumLocals+uint32(al))
		for i := 0; i < al; i++ {
			locals[al-1-i] = vm.operands.pop()
		}
		frame := &frame{
			f:      nextF,
			locals: locals,
			labels: newLabelStack(),
		}
		frame.labels.push(&label{
			arity:          len(nextF.Signature.ReturnTypes),
			continuationPC: uint64(len(nextF.Body)) - 1,
			operandSP:      -1,
		})
		vm.pushFrame(frame)
	}
}
