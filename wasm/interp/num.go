package interp

func drop(vm *interpreter) {
	vm.operands.drop()
	vm.activeFrame.pc++
}

func i32Const(vm *interpreter) {
	vm.activeFrame.pc++
	vm.operands.push(uint64(uint32(vm.FetchInt32())))
	vm.activeFrame.pc++
}

func i32eqz(vm *interpreter) {
	vm.operands.pushBool(uint32(vm.operands.pop()) == 0)
	vm.activeFrame.pc++
}

func i32eq(vm *interpreter) {
	v2 := vm.operands.pop()
	v1 := vm.operands.pop()
	vm.operands.pushBool(uint32(v1) == uint32(v2))
	vm.activeFrame.pc++
}

func i32ne(vm *interpreter) {
	v2 := vm.operands.pop()
	v1 := vm.operands.pop()
	vm.operands.pushBool(uint32(v1) != uint32(v2))
	vm.activeFrame.pc++
}

func i32lts(vm *interpreter) {
	v2 := vm.operands.pop()
	v1 := vm.operands.pop()
	vm.operands.pushBool(int32(v1) < int32(v2))
	vm.activeFrame.pc++
}

func i32gts(vm *interpreter) {
	v2 := vm.operands.pop()
	v1 := vm.operands.pop()
	vm.operands.pushBool(int32(v1) > int32(v2))
	vm.activeFrame.pc++
}

func i32add(vm *interpreter) {
	v2 := vm.operands.pop()
	v1 := vm.operands.pop()
	vm.operands.push(uint64(uint32(v1) + uint32(v2)))
	vm.activeFrame.pc++
}

func i32sub(vm *interpreter) {
	v2 := vm.operands.pop()
	v1 := vm.operands.pop()
	vm.operands.push(uint64(uint32(v1) - uint32(v2)))
	vm.activeFrame.pc++
}

func i32mul(vm *interpreter) {
	v2 := vm.operands.pop()
	v1 := vm.operands.pop()
	vm.operands.push(uint64(uint32(v1) * uint32(v2)))
	vm.activeFrame.pc++
}
