//go:build disable_callstack_overflow_check

package buildoptions

const (
	CheckCallStackOverflow = false
	CallStackHeightLimit   = int(^uint(0) >> 1)
)
