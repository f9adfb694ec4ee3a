package wasm

// PageSize is the size of a linear memory page: 64KiB.
const PageSize uint64 = 65536

// Engine executes functions compiled from a module.
type Engine interface {
	// Call invokes a function instance f with the given args.
	// Returns the values left by the function.
	Call(f *FunctionInstance, args ...uint64) (returns []uint64, err error)
	// Compile compiles down the function instance.
	Compile(f *FunctionInstance) error
}
