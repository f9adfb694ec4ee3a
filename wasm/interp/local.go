package interp

func getLocal(vm *interpreter) {
	vm.activeFrame.pc++
	id := vm.FetchUint32()
	vm.operands.push(vm.activeFrame.locals[id])
	vm.activeFrame.pc++
}

func setLocal(vm *interpreter) {
	vm.activeFrame.pc++
	id := vm.FetchUint32()
	vm.activeFrame.locals[id] = vm.operands.pop()
	vm.activeFrame.pc++
}

func teeLocal(vm *interpreter) {
	vm.activeFrame.pc++
	id := vm.FetchUint32()
	vm.activeFrame.locals[id] = vm.operands.peek()
	vm.activeFrame.pc++
}
