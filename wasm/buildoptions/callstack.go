//go:build !disable_callstack_overflow_check

// Package buildoptions holds compile-time switches selected via build tags.
package buildoptions

// CallStackHeightLimit caps the depth of guest call frames so runaway
// recursion traps instead of exhausting host memory.
const (
	CheckCallStackOverflow = true
	CallStackHeightLimit   = 2000
)
