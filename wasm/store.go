package wasm

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/wasmlite/wasmlite/wasm/leb128"
)

type (
	// Store holds every instantiated module plus the shared index spaces of
	// functions and memories. A single Engine executes everything in a Store.
	Store struct {
		engine          Engine
		ModuleInstances map[string]*ModuleInstance

		Functions []*FunctionInstance
		Memories  []*MemoryInstance
	}

	ModuleInstance struct {
		Exports   map[string]*ExportInstance
		Functions []*FunctionInstance
		Memory    *MemoryInstance

		Types []*FunctionType
	}

	ExportInstance struct {
		Kind     byte
		Function *FunctionInstance
		Memory   *MemoryInstance
	}

	FunctionInstance struct {
		Name           string
		ModuleInstance *ModuleInstance
		Body           []byte
		Signature      *FunctionType
		NumLocals      uint32
		LocalTypes     []ValueType
		Blocks         map[uint64]*FunctionInstanceBlock
		HostFunction   *reflect.Value
	}

	// HostFunctionCallContext is the first argument of every host function,
	// carrying the linear memory of the calling module.
	HostFunctionCallContext struct {
		Memory *MemoryInstance
	}

	FunctionInstanceBlock struct {
		StartAt, ElseAt, EndAt uint64
		BlockType              *FunctionType
		BlockTypeBytes         uint64
		IsLoop                 bool
		IsIf                   bool
	}
)

func NewStore(engine Engine) *Store {
	return &Store{ModuleInstances: map[string]*ModuleInstance{}, engine: engine}
}

// Instantiate registers a decoded module in the store under name, resolving
// its imports, compiling its functions and initializing its memory. If the
// module declares a start function, it runs before Instantiate returns.
func (s *Store) Instantiate(module *Module, name string) error {
	instance := &ModuleInstance{Types: module.TypeSection}
	s.ModuleInstances[name] = instance
	// Resolve the imports before doing the actual instantiation (mutating store).
	if err := s.resolveImports(module, instance); err != nil {
		return fmt.Errorf("resolve imports: %w", err)
	}
	// Instantiation mutates the store, so in the case of errors we must
	// rollback its state.
	var rollbackFuncs []func()
	defer func() {
		for _, f := range rollbackFuncs {
			f()
		}
	}()
	rs, err := s.buildFunctionInstances(module, instance)
	rollbackFuncs = append(rollbackFuncs, rs...)
	if err != nil {
		return fmt.Errorf("functions: %w", err)
	}
	rs, err = s.buildMemoryInstances(module, instance)
	rollbackFuncs = append(rollbackFuncs, rs...)
	if err != nil {
		return fmt.Errorf("memories: %w", err)
	}
	rs, err = s.buildExportInstances(module, instance)
	rollbackFuncs = append(rollbackFuncs, rs...)
	if err != nil {
		return fmt.Errorf("exports: %w", err)
	}
	// Check the start function is valid.
	if module.StartSection != nil {
		index := *module.StartSection
		if int(index) >= len(instance.Functions) {
			return fmt.Errorf("invalid start function index: %d", index)
		}
		signature := instance.Functions[index].Signature
		if len(signature.InputTypes) != 0 || len(signature.ReturnTypes) != 0 {
			return fmt.Errorf("start function must have the empty signature")
		}
	}

	// Now we are safe to finalize the state.
	rollbackFuncs = nil

	// Execute the start function.
	if module.StartSection != nil {
		f := instance.Functions[*module.StartSection]
		if _, err := s.engine.Call(f); err != nil {
			return fmt.Errorf("calling start function failed: %v", err)
		}
	}
	return nil
}

// CallFunction invokes the exported function funcName of the instantiated
// module moduleName, returning the results with their types.
func (s *Store) CallFunction(moduleName, funcName string, args ...uint64) (returns []uint64, returnTypes []ValueType, err error) {
	m, ok := s.ModuleInstances[moduleName]
	if !ok {
		return nil, nil, fmt.Errorf("module '%s' not instantiated", moduleName)
	}

	exp, ok := m.Exports[funcName]
	if !ok {
		return nil, nil, fmt.Errorf("exported function '%s' not found in '%s'", funcName, moduleName)
	}

	if exp.Kind != ExportKindFunction {
		return nil, nil, fmt.Errorf("'%s' is not functype", funcName)
	}

	f := exp.Function
	if len(f.Signature.InputTypes) != len(args) {
		return nil, nil, fmt.Errorf("invalid number of arguments")
	}

	ret, err := s.engine.Call(f, args...)
	return ret, f.Signature.ReturnTypes, err
}

func (s *Store) resolveImports(module *Module, target *ModuleInstance) error {
	for _, is := range module.ImportSection {
		if err := s.resolveImport(target, is); err != nil {
			return fmt.Errorf("%s: %w", is.Name, err)
		}
	}
	return nil
}

func (s *Store) resolveImport(target *ModuleInstance, is *ImportSegment) error {
	em, ok := s.ModuleInstances[is.Module]
	if !ok {
		return fmt.Errorf("failed to resolve import of module name %s", is.Module)
	}

	e, ok := em.Exports[is.Name]
	if !ok {
		return fmt.Errorf("not exported in module %s", is.Module)
	}

	if is.Desc.Kind != e.Kind {
		return fmt.Errorf("type mismatch on export: got %#x but want %#x", e.Kind, is.Desc.Kind)
	}
	switch is.Desc.Kind {
	case ImportKindFunction:
		if err := s.applyFunctionImport(target, is.Desc.TypeIndexPtr, e); err != nil {
			return fmt.Errorf("applyFunctionImport: %w", err)
		}
	case ImportKindMemory:
		if err := s.applyMemoryImport(target, is.Desc.MemTypePtr, e); err != nil {
			return fmt.Errorf("applyMemoryImport: %w", err)
		}
	default:
		return fmt.Errorf("invalid kind of import: %#x", is.Desc.Kind)
	}

	return nil
}

func (s *Store) applyFunctionImport(target *ModuleInstance, typeIndexPtr *uint32, externModuleExportInstance *ExportInstance) error {
	if typeIndexPtr == nil {
		return fmt.Errorf("type index is invalid")
	}
	f := externModuleExportInstance.Function
	typeIndex := *typeIndexPtr
	if int(typeIndex) >= len(target.Types) {
		return fmt.Errorf("unknown type for function import")
	}
	iSig := target.Types[typeIndex]
	if !HasSameSignature(iSig.ReturnTypes, f.Signature.ReturnTypes) {
		return fmt.Errorf("return signature mismatch: %#x != %#x", iSig.ReturnTypes, f.Signature.ReturnTypes)
	} else if !HasSameSignature(iSig.InputTypes, f.Signature.InputTypes) {
		return fmt.Errorf("input signature mismatch: %#x != %#x", iSig.InputTypes, f.Signature.InputTypes)
	}
	target.Functions = append(target.Functions, f)
	return nil
}

func (s *Store) applyMemoryImport(target *ModuleInstance, memoryTypePtr *MemoryType, externModuleExportInstance *ExportInstance) error {
	if target.Memory != nil {
		// The current Wasm spec doesn't allow multiple memories.
		return fmt.Errorf("multiple memories are not supported")
	} else if memoryTypePtr == nil {
		return fmt.Errorf("memory type is invalid")
	}
	memory := externModuleExportInstance.Memory
	if memory.Min < memoryTypePtr.Min {
		return fmt.Errorf("incompatible memory imports: minimum size mismatch")
	}
	if memoryTypePtr.Max != nil {
		if memory.Max == nil {
			return fmt.Errorf("incompatible memory imports: maximum size mismatch")
		} else if *memory.Max > *memoryTypePtr.Max {
			return fmt.Errorf("incompatible memory imports: maximum size mismatch")
		}
	}
	target.Memory = memory
	return nil
}

func executeConstExpression(expr *ConstantExpression) (int32, error) {
	if expr.Opcode != OpcodeI32Const {
		return 0, fmt.Errorf("invalid opcode for constant expression: %#x", expr.Opcode)
	}
	v, _, err := leb128.DecodeInt32(bytes.NewReader(expr.Data))
	if err != nil {
		return 0, fmt.Errorf("read i32: %w", err)
	}
	return v, nil
}

func (s *Store) buildFunctionInstances(module *Module, target *ModuleInstance) (rollbackFuncs []func(), err error) {
	prevLen := len(s.Functions)
	rollbackFuncs = append(rollbackFuncs, func() {
		s.Functions = s.Functions[:prevLen]
	})

	var functionDeclarations []uint32
	var memoryDeclarations []*MemoryType
	for _, imp := range module.ImportSection {
		switch imp.Desc.Kind {
		case ImportKindFunction:
			functionDeclarations = append(functionDeclarations, *imp.Desc.TypeIndexPtr)
		case ImportKindMemory:
			memoryDeclarations = append(memoryDeclarations, imp.Desc.MemTypePtr)
		}
	}
	functionDeclarations = append(functionDeclarations, module.FunctionSection...)
	memoryDeclarations = append(memoryDeclarations, module.MemorySection...)

	for codeIndex, typeIndex := range module.FunctionSection {
		if typeIndex >= uint32(len(module.TypeSection)) {
			return rollbackFuncs, fmt.Errorf("function type index out of range")
		} else if codeIndex >= len(module.CodeSection) {
			return rollbackFuncs, fmt.Errorf("code index out of range")
		}

		f := &FunctionInstance{
			Signature:      module.TypeSection[typeIndex],
			Body:           module.CodeSection[codeIndex].Body,
			NumLocals:      module.CodeSection[codeIndex].NumLocals,
			LocalTypes:     module.CodeSection[codeIndex].LocalTypes,
			ModuleInstance: target,
			Blocks:         map[uint64]*FunctionInstanceBlock{},
		}

		if err := analyzeFunction(module, f, functionDeclarations, memoryDeclarations); err != nil {
			return rollbackFuncs, fmt.Errorf("invalid function at index %d/%d: %v", codeIndex, len(module.FunctionSection), err)
		}

		if err := s.engine.Compile(f); err != nil {
			return rollbackFuncs, fmt.Errorf("compilation failed at index %d/%d: %v", codeIndex, len(module.FunctionSection), err)
		}

		target.Functions = append(target.Functions, f)
		s.Functions = append(s.Functions, f)
	}
	return rollbackFuncs, nil
}

func (s *Store) buildMemoryInstances(module *Module, target *ModuleInstance) (rollbackFuncs []func(), err error) {
	// Allocate memory instances.
	for _, memSec := range module.MemorySection {
		if target.Memory != nil {
			// This case the memory instance is already imported,
			// and the current Wasm spec doesn't allow multiple memories.
			return rollbackFuncs, fmt.Errorf("multiple memories not supported")
		}
		target.Memory = &MemoryInstance{
			Buffer: make([]byte, uint64(memSec.Min)*PageSize),
			Min:    memSec.Min,
			Max:    memSec.Max,
		}
		s.Memories = append(s.Memories, target.Memory)
	}

	// Initialize the memory instance according to the Data section.
	for _, d := range module.DataSection {
		if target.Memory == nil {
			return rollbackFuncs, fmt.Errorf("unknown memory")
		} else if d.MemoryIndex != 0 {
			return rollbackFuncs, fmt.Errorf("memory index must be zero")
		}

		offset, err := executeConstExpression(d.OffsetExpression)
		if err != nil {
			return rollbackFuncs, fmt.Errorf("calculate offset: %w", err)
		} else if offset < 0 {
			return rollbackFuncs, fmt.Errorf("offset must be positive int32: %d", offset)
		}

		size := uint64(offset) + uint64(len(d.Init))
		max := uint64(math.MaxUint32)
		if int(d.MemoryIndex) < len(module.MemorySection) && module.MemorySection[d.MemoryIndex].Max != nil {
			max = uint64(*module.MemorySection[d.MemoryIndex].Max)
		}
		if size > max*PageSize {
			return rollbackFuncs, fmt.Errorf("memory size out of limit %d * 64Ki", max)
		}

		memoryInst := target.Memory
		if size > uint64(len(memoryInst.Buffer)) {
			return rollbackFuncs, fmt.Errorf("out of bounds memory access")
		}
		// Setup the rollback function before mutating the actual memory.
		original := make([]byte, len(d.Init))
		copy(original, memoryInst.Buffer[offset:])
		rollbackFuncs = append(rollbackFuncs, func() {
			copy(memoryInst.Buffer[offset:], original)
		})
		copy(memoryInst.Buffer[offset:], d.Init)
	}
	return rollbackFuncs, nil
}

func (s *Store) buildExportInstances(module *Module, target *ModuleInstance) (rollbackFuncs []func(), err error) {
	target.Exports = make(map[string]*ExportInstance, len(module.ExportSection))
	for name, exp := range module.ExportSection {
		index := int(exp.Desc.Index)
		switch exp.Desc.Kind {
		case ExportKindFunction:
			if index >= len(target.Functions) {
				return nil, fmt.Errorf("unknown function for export")
			}
			target.Exports[name] = &ExportInstance{
				Kind:     exp.Desc.Kind,
				Function: target.Functions[index],
			}
		case ExportKindMemory:
			if index != 0 || target.Memory == nil {
				return nil, fmt.Errorf("unknown memory for export")
			}
			target.Exports[name] = &ExportInstance{
				Kind:   exp.Desc.Kind,
				Memory: target.Memory,
			}
		default:
			return nil, fmt.Errorf("export kind %#x not supported", exp.Desc.Kind)
		}
	}
	return
}

func readBlockType(module *Module, r io.Reader) (*FunctionType, uint64, error) {
	raw, num, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return nil, 0, fmt.Errorf("decode int33: %w", err)
	}

	var ret *FunctionType
	switch raw {
	case -64: // 0x40 in original byte = no result
		ret = &FunctionType{}
	case -1: // 0x7f in original byte = i32
		ret = &FunctionType{ReturnTypes: []ValueType{ValueTypeI32}}
	case -2: // 0x7e in original byte = i64
		ret = &FunctionType{ReturnTypes: []ValueType{ValueTypeI64}}
	case -3: // 0x7d in original byte = f32
		ret = &FunctionType{ReturnTypes: []ValueType{ValueTypeF32}}
	case -4: // 0x7c in original byte = f64
		ret = &FunctionType{ReturnTypes: []ValueType{ValueTypeF64}}
	default:
		if raw < 0 || (raw >= int64(len(module.TypeSection))) {
			return nil, 0, fmt.Errorf("invalid block type: %d", raw)
		}
		ret = module.TypeSection[raw]
	}
	return ret, num, nil
}

// analyzeFunction validates the body against the supported instruction set
// and records the boundaries of every block, loop and if so the interpreter
// can jump across them without scanning.
func analyzeFunction(module *Module, f *FunctionInstance, functionDeclarations []uint32, memoryDeclarations []*MemoryType) error {
	bodyLen := uint64(len(f.Body))
	r := bytes.NewReader(f.Body)
	var stack []*FunctionInstanceBlock
	for r.Len() > 0 {
		pc := bodyLen - uint64(r.Len())
		op, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("read opcode at %#x: %v", pc, err)
		}

		switch op {
		case OpcodeBlock, OpcodeLoop, OpcodeIf:
			bt, num, err := readBlockType(module, r)
			if err != nil {
				return fmt.Errorf("read block type at %#x: %v", pc, err)
			}
			bl := &FunctionInstanceBlock{
				StartAt:        pc,
				BlockType:      bt,
				BlockTypeBytes: num,
				IsLoop:         op == OpcodeLoop,
				IsIf:           op == OpcodeIf,
			}
			stack = append(stack, bl)
			f.Blocks[pc] = bl
		case OpcodeElse:
			if len(stack) == 0 || !stack[len(stack)-1].IsIf {
				return fmt.Errorf("misplaced else instruction at %#x", pc)
			}
			stack[len(stack)-1].ElseAt = pc
		case OpcodeEnd:
			if len(stack) == 0 {
				// The end of function body.
				if pc != bodyLen-1 {
					return fmt.Errorf("unbalanced end instruction at %#x", pc)
				}
				continue
			}
			bl := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			bl.EndAt = pc
			if bl.IsIf && bl.ElseAt == 0 {
				// If without else: jump straight before the end instruction.
				bl.ElseAt = pc - 1
			}
		case OpcodeBr, OpcodeBrIf:
			if _, _, err := leb128.DecodeUint32(r); err != nil {
				return fmt.Errorf("read immediate of %#x at %#x: %v", op, pc, err)
			}
		case OpcodeCall:
			index, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return fmt.Errorf("read immediate of call at %#x: %v", pc, err)
			}
			if index >= uint32(len(functionDeclarations)) {
				return fmt.Errorf("invalid function index %d at %#x", index, pc)
			}
		case OpcodeLocalGet, OpcodeLocalSet, OpcodeLocalTee:
			index, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return fmt.Errorf("read immediate of %#x at %#x: %v", op, pc, err)
			}
			if index >= uint32(len(f.Signature.InputTypes))+f.NumLocals {
				return fmt.Errorf("invalid local index %d at %#x", index, pc)
			}
		case OpcodeI32Load, OpcodeI32Store:
			if len(memoryDeclarations) == 0 {
				return fmt.Errorf("unknown memory access at %#x", pc)
			}
			// align and offset
			if _, _, err := leb128.DecodeUint32(r); err != nil {
				return fmt.Errorf("read memory align at %#x: %v", pc, err)
			}
			if _, _, err := leb128.DecodeUint32(r); err != nil {
				return fmt.Errorf("read memory offset at %#x: %v", pc, err)
			}
		case OpcodeMemorySize, OpcodeMemoryGrow:
			if len(memoryDeclarations) == 0 {
				return fmt.Errorf("unknown memory access at %#x", pc)
			}
			reserved, err := r.ReadByte()
			if err != nil || reserved != 0x00 {
				return fmt.Errorf("memory index must be zero at %#x", pc)
			}
		case OpcodeI32Const:
			if _, _, err := leb128.DecodeInt32(r); err != nil {
				return fmt.Errorf("read immediate of i32.const at %#x: %v", pc, err)
			}
		case OpcodeUnreachable, OpcodeNop, OpcodeReturn, OpcodeDrop,
			OpcodeI32Eqz, OpcodeI32Eq, OpcodeI32Ne, OpcodeI32LtS, OpcodeI32GtS,
			OpcodeI32Add, OpcodeI32Sub, OpcodeI32Mul:
			// no immediates
		default:
			return fmt.Errorf("unsupported instruction: %#x at %#x", op, pc)
		}
	}

	if len(stack) > 0 {
		return fmt.Errorf("ill-nested block found")
	}
	return nil
}

// AddHostFunction exposes a Go function under the named module so guest
// modules can import it. fn must take *HostFunctionCallContext as its first
// parameter; the remaining parameters and results must be sized integer or
// float kinds.
func (s *Store) AddHostFunction(moduleName, funcName string, fn reflect.Value) error {
	getTypeOf := func(kind reflect.Kind) (ValueType, error) {
		switch kind {
		case reflect.Float64:
			return ValueTypeF64, nil
		case reflect.Float32:
			return ValueTypeF32, nil
		case reflect.Int32, reflect.Uint32:
			return ValueTypeI32, nil
		case reflect.Int64, reflect.Uint64:
			return ValueTypeI64, nil
		default:
			return 0x00, fmt.Errorf("invalid type: %s", kind.String())
		}
	}
	getSignature := func(p reflect.Type) (*FunctionType, error) {
		var err error
		if p.NumIn() == 0 {
			return nil, fmt.Errorf("host function must accept *wasm.HostFunctionCallContext as the first param")
		}
		in := make([]ValueType, p.NumIn()-1)
		for i := range in {
			in[i], err = getTypeOf(p.In(i + 1).Kind())
			if err != nil {
				return nil, err
			}
		}

		out := make([]ValueType, p.NumOut())
		for i := range out {
			out[i], err = getTypeOf(p.Out(i).Kind())
			if err != nil {
				return nil, err
			}
		}
		return &FunctionType{InputTypes: in, ReturnTypes: out}, nil
	}

	m, ok := s.ModuleInstances[moduleName]
	if !ok {
		m = &ModuleInstance{Exports: map[string]*ExportInstance{}}
		s.ModuleInstances[moduleName] = m
	}

	if _, ok := m.Exports[funcName]; ok {
		return fmt.Errorf("name %s already exists in module %s", funcName, moduleName)
	}

	sig, err := getSignature(fn.Type())
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	f := &FunctionInstance{
		Name:           fmt.Sprintf("%s.%s", moduleName, funcName),
		HostFunction:   &fn,
		Signature:      sig,
		ModuleInstance: m,
	}
	if err := s.engine.Compile(f); err != nil {
		return fmt.Errorf("failed to compile %s: %v", f.Name, err)
	}
	m.Exports[funcName] = &ExportInstance{Kind: ExportKindFunction, Function: f}
	s.Functions = append(s.Functions, f)
	return nil
}

// AddMemoryInstance exposes a host-allocated linear memory under the named
// module so guest modules can import it.
func (s *Store) AddMemoryInstance(moduleName, name string, min uint32, max *uint32) error {
	m, ok := s.ModuleInstances[moduleName]
	if !ok {
		m = &ModuleInstance{Exports: map[string]*ExportInstance{}}
		s.ModuleInstances[moduleName] = m
	}

	if _, ok := m.Exports[name]; ok {
		return fmt.Errorf("name %s already exists in module %s", name, moduleName)
	}

	memory := &MemoryInstance{
		Buffer: make([]byte, uint64(min)*PageSize),
		Min:    min,
		Max:    max,
	}
	m.Exports[name] = &ExportInstance{Kind: ExportKindMemory, Memory: memory}
	s.Memories = append(s.Memories, memory)
	return nil
}
