package interp

func block(vm *interpreter) {
	frame := vm.activeFrame
	block, ok := frame.f.Blocks[frame.pc]
	if !ok {
		panic("block not initialized")
	}

	frame.pc += block.BlockTypeBytes
	frame.labels.push(&label{
		arity:          len(block.BlockType.ReturnTypes),
		continuationPC: block.EndAt + 1,
		operandSP:      vm.operands.sp,
	})
	frame.pc++
}

func loop(vm *interpreter) {
	frame := vm.activeFrame
	block, ok := frame.f.Blocks[frame.pc]
	if !ok {
		panic("block not initialized")
	}

	frame.pc += block.BlockTypeBytes
	arity := len(block.BlockType.InputTypes)
	frame.labels.push(&label{
		arity:          arity,
		continuationPC: block.StartAt,
		operandSP:      vm.operands.sp - arity,
	})
	frame.pc++
}

func ifOp(vm *interpreter) {
	frame := vm.activeFrame
	block, ok := frame.f.Blocks[frame.pc]
	if !ok {
		panic("block not initialized")
	}
	frame.pc += block.BlockTypeBytes

	if vm.operands.pop() == 0 {
		frame.pc = block.ElseAt
	}

	frame.labels.push(&label{
		arity:          len(block.BlockType.ReturnTypes),
		continuationPC: block.EndAt + 1,
		operandSP:      vm.operands.sp - len(block.BlockType.InputTypes),
	})
	frame.pc++
}

func elseOp(vm *interpreter) {
	l := vm.activeFrame.labels.pop()
	vm.activeFrame.pc = l.continuationPC
}

func end(vm *interpreter) {
	_ = vm.activeFrame.labels.pop()
	vm.activeFrame.pc++
}

func returnOp(vm *interpreter) {
	vm.popFrame()
}

func br(vm *interpreter) {
	vm.activeFrame.pc++
	index := vm.FetchUint32()
	brAt(vm, index)
}

func brIf(vm *interpreter) {
	vm.activeFrame.pc++
	index := vm.FetchUint32()
	c := vm.operands.pop()
	if c != 0 {
		brAt(vm, index)
	} else {
		vm.activeFrame.pc++
	}
}

func brAt(vm *interpreter, index uint32) {
	var l *label
	for i := uint32(0); i < index+1; i++ {
		l = vm.activeFrame.labels.pop()
	}

	values := make([]uint64, 0, l.arity)
	for i := 0; i < l.arity; i++ {
		values = append(values, vm.operands.pop())
	}
	vm.operands.sp = l.operandSP
	for _, v := range values {
		vm.operands.push(v)
	}
	vm.activeFrame.pc = l.continuationPC
}
