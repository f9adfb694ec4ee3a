package interp

import (
	"github.com/wasmlite/wasmlite/wasm"
	"github.com/wasmlite/wasmlite/wasm/buildoptions"
)

const (
	initialOperandStackHeight = 1024
	initialLabelStackHeight   = 10
)

var callStackHeightLimit = buildoptions.CallStackHeightLimit

type operandStack struct {
	stack []uint64
	sp    int
}

func newOperandStack() *operandStack {
	return &operandStack{
		stack: make([]uint64, initialOperandStackHeight),
		sp:    -1,
	}
}

func (s *operandStack) pop() uint64 {
	ret := s.stack[s.sp]
	s.sp--
	return ret
}

func (s *operandStack) drop() {
	s.sp--
}

func (s *operandStack) peek() uint64 {
	return s.stack[s.sp]
}

func (s *operandStack) push(val uint64) {
	if s.sp+1 == len(s.stack) {
		// grow stack
		s.stack = append(s.stack, val)
	} else {
		s.stack[s.sp+1] = val
	}
	s.sp++
}

func (s *operandStack) pushBool(b bool) {
	if b {
		s.push(1)
	} else {
		s.push(0)
	}
}

type label struct {
	arity          int
	continuationPC uint64
	operandSP      int
}

type labelStack struct {
	stack []*label
	sp    int
}

func newLabelStack() *labelStack {
	return &labelStack{
		stack: make([]*label, initialLabelStackHeight),
		sp:    -1,
	}
}

func (s *labelStack) pop() *label {
	ret := s.stack[s.sp]
	s.sp--
	return ret
}

func (s *labelStack) push(val *label) {
	if s.sp+1 == len(s.stack) {
		// grow stack
		s.stack = append(s.stack, val)
	} else {
		s.stack[s.sp+1] = val
	}
	s.sp++
}

type frame struct {
	pc     uint64
	locals []uint64
	f      *wasm.FunctionInstance
	labels *labelStack
}

type frameStack struct {
	stack []*frame
	sp    int
}

func newFrameStack() *frameStack {
	return &frameStack{
		stack: make([]*frame, initialLabelStackHeight),
		sp:    -1,
	}
}

func (s *frameStack) peek() *frame {
	if s.sp < 0 {
		return nil
	}
	return s.stack[s.sp]
}

func (s *frameStack) pop() *frame {
	ret := s.stack[s.sp]
	s.sp--
	return ret
}

func (s *frameStack) push(val *frame) {
	if s.sp+1 == len(s.stack) {
		if callStackHeightLimit <= s.sp {
			panic(wasm.ErrCallStackOverflow)
		}
		// grow stack
		s.stack = append(s.stack, val)
	} else {
		s.stack[s.sp+1] = val
	}
	s.sp++
}
