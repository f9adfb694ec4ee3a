package interp

import (
	"encoding/binary"

	"github.com/wasmlite/wasmlite/wasm"
)

// memoryBase consumes the align and offset immediates and combines the
// offset with the popped base address.
func memoryBase(vm *interpreter) uint64 {
	vm.activeFrame.pc++
	_ = vm.FetchUint32() // ignore align
	vm.activeFrame.pc++
	return uint64(vm.FetchUint32()) + vm.operands.pop()
}

func currentMemory(vm *interpreter) *wasm.MemoryInstance {
	return vm.activeFrame.f.ModuleInstance.Memory
}

func i32Load(vm *interpreter) {
	base := memoryBase(vm)
	vm.operands.push(uint64(binary.LittleEndian.Uint32(currentMemory(vm).Buffer[base:])))
	vm.activeFrame.pc++
}

func i32Store(vm *interpreter) {
	val := vm.operands.pop()
	base := memoryBase(vm)
	binary.LittleEndian.PutUint32(currentMemory(vm).Buffer[base:], uint32(val))
	vm.activeFrame.pc++
}

func memorySize(vm *interpreter) {
	vm.activeFrame.pc++
	vm.operands.push(uint64(currentMemory(vm).PageCount()))
	vm.activeFrame.pc++
}

func memoryGrow(vm *interpreter) {
	vm.activeFrame.pc++
	n := uint32(vm.operands.pop())
	prev := currentMemory(vm).Grow(n)
	vm.operands.push(uint64(uint32(prev)))
	vm.activeFrame.pc++
}
