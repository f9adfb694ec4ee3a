package wasi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmlite/wasmlite/wasm"
	"github.com/wasmlite/wasmlite/wasm/interp"
)

func testCtx() (*wasm.HostFunctionCallContext, *wasm.MemoryInstance) {
	mem := &wasm.MemoryInstance{Buffer: make([]byte, wasm.PageSize), Min: 1}
	return &wasm.HostFunctionCallContext{Memory: mem}, mem
}

func putIovec(mem *wasm.MemoryInstance, iovPtr, offset, length uint32) {
	binary.LittleEndian.PutUint32(mem.Buffer[iovPtr:], offset)
	binary.LittleEndian.PutUint32(mem.Buffer[iovPtr+4:], length)
}

func TestEnvironment_fd_write(t *testing.T) {
	var stdout, stderr bytes.Buffer
	env := NewEnvironment(Stdout(&stdout), Stderr(&stderr))

	ctx, mem := testCtx()
	copy(mem.Buffer, "wasi")
	putIovec(mem, 16, 0, 4)

	require.Equal(t, ESUCCESS, env.fd_write(ctx, 1, 16, 1, 24))
	require.Equal(t, "wasi", stdout.String())
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(mem.Buffer[24:]))

	require.Equal(t, ESUCCESS, env.fd_write(ctx, 2, 16, 1, 24))
	require.Equal(t, "wasi", stderr.String())
}

func TestEnvironment_fd_write_badDescriptor(t *testing.T) {
	env := NewEnvironment()
	ctx, _ := testCtx()
	require.Equal(t, EBADF, env.fd_write(ctx, 5, 16, 1, 24))
	require.Equal(t, EBADF, env.fd_write(ctx, 0, 16, 1, 24))
}

func TestEnvironment_fd_write_fault(t *testing.T) {
	env := NewEnvironment(Stdout(&bytes.Buffer{}))
	ctx, mem := testCtx()

	// iovec list out of bounds.
	require.Equal(t, EFAULT, env.fd_write(ctx, 1, uint32(wasm.PageSize)-4, 1, 24))

	// iovec points past the end of memory.
	putIovec(mem, 16, uint32(wasm.PageSize)-2, 4)
	require.Equal(t, EFAULT, env.fd_write(ctx, 1, 16, 1, 24))

	// nwritten pointer out of bounds.
	putIovec(mem, 16, 0, 4)
	require.Equal(t, EFAULT, env.fd_write(ctx, 1, 16, 1, uint32(wasm.PageSize)-2))
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// shortWriter accepts at most five bytes per call and reports no error.
type shortWriter struct{ n int }

func (w *shortWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > 5 {
		n = 5
	}
	w.n += n
	return n, nil
}

func TestEnvironment_fd_write_writerFailure(t *testing.T) {
	ctx, mem := testCtx()
	copy(mem.Buffer, "Hello, World!\n")
	putIovec(mem, 16, 0, 14)

	env := NewEnvironment(Stdout(errWriter{}))
	require.Equal(t, EIO, env.fd_write(ctx, 1, 16, 1, 24))

	// A short write without an error is not the host's to diagnose: the
	// call succeeds and nwritten carries the actual count.
	w := &shortWriter{}
	env = NewEnvironment(Stdout(w))
	require.Equal(t, ESUCCESS, env.fd_write(ctx, 1, 16, 1, 24))
	require.Equal(t, uint32(5), binary.LittleEndian.Uint32(mem.Buffer[24:]))
	require.Equal(t, 5, w.n)
}

func TestEnvironment_fd_read(t *testing.T) {
	env := NewEnvironment(Stdin(strings.NewReader("hello")))
	ctx, mem := testCtx()
	putIovec(mem, 16, 32, 5)
	putIovec(mem, 24, 64, 5)

	require.Equal(t, ESUCCESS, env.fd_read(ctx, 0, 16, 2, 8))
	require.Equal(t, []byte("hello"), mem.Buffer[32:37])
	require.Equal(t, uint32(5), binary.LittleEndian.Uint32(mem.Buffer[8:]))

	require.Equal(t, EBADF, env.fd_read(ctx, 1, 16, 1, 8))
}

func TestEnvironment_fd_close(t *testing.T) {
	env := NewEnvironment()
	ctx, _ := testCtx()
	for fd := uint32(0); fd <= 2; fd++ {
		require.Equal(t, ESUCCESS, env.fd_close(ctx, fd))
	}
	require.Equal(t, EBADF, env.fd_close(ctx, 9))
}

func TestEnvironment_args(t *testing.T) {
	opt, err := Args([]string{"a", "bc"})
	require.NoError(t, err)
	env := NewEnvironment(opt)
	ctx, mem := testCtx()

	require.Equal(t, ESUCCESS, env.args_sizes_get(ctx, 0, 4))
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(mem.Buffer[0:]))
	require.Equal(t, uint32(5), binary.LittleEndian.Uint32(mem.Buffer[4:])) // "a\x00bc\x00"

	require.Equal(t, ESUCCESS, env.args_get(ctx, 0, 8))
	require.Equal(t, uint32(8), binary.LittleEndian.Uint32(mem.Buffer[0:]))
	require.Equal(t, uint32(10), binary.LittleEndian.Uint32(mem.Buffer[4:]))
	require.Equal(t, []byte("a\x00bc\x00"), mem.Buffer[8:13])
}

func TestEnvironment_environ(t *testing.T) {
	opt, err := Environ([]string{"A=1"})
	require.NoError(t, err)
	env := NewEnvironment(opt)
	ctx, mem := testCtx()

	require.Equal(t, ESUCCESS, env.environ_sizes_get(ctx, 0, 4))
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(mem.Buffer[0:]))
	require.Equal(t, uint32(4), binary.LittleEndian.Uint32(mem.Buffer[4:]))

	require.Equal(t, ESUCCESS, env.environ_get(ctx, 0, 8))
	require.Equal(t, []byte("A=1\x00"), mem.Buffer[8:12])
}

func TestProcExit(t *testing.T) {
	require.PanicsWithError(t, "module closed with exit code 5", func() {
		proc_exit(nil, 5)
	})
}

func TestNewNullTerminatedStrings(t *testing.T) {
	s, err := newNullTerminatedStrings("arg", nil)
	require.NoError(t, err)
	require.Empty(t, s.nullTerminatedValues)
	require.Zero(t, s.totalBufSize)

	s, err = newNullTerminatedStrings("arg", []string{"ab", ""})
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("ab\x00"), []byte("\x00")}, s.nullTerminatedValues)
	require.Equal(t, uint32(4), s.totalBufSize)
}

func TestEnvironment_Register(t *testing.T) {
	store := wasm.NewStore(interp.NewEngine())
	require.NoError(t, NewEnvironment().Register(store))

	for _, moduleName := range []string{"wasi_unstable", "wasi_snapshot_preview1"} {
		m, ok := store.ModuleInstances[moduleName]
		require.True(t, ok, moduleName)
		for _, name := range []string{
			"proc_exit", "fd_write", "fd_read", "fd_close",
			"args_get", "args_sizes_get", "environ_get", "environ_sizes_get",
		} {
			e, ok := m.Exports[name]
			require.True(t, ok, name)
			require.Equal(t, wasm.ExportKindFunction, e.Kind)
		}
	}
}
