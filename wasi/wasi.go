// Package wasi exposes a subset of the WASI snapshot-01 system interface to
// guest modules: the standard streams, command-line arguments and the
// environment. Filesystem access beyond the standard streams is out of scope.
package wasi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"

	"github.com/wasmlite/wasmlite/wasm"
)

const (
	wasiUnstableName         = "wasi_unstable"
	wasiSnapshotPreview1Name = "wasi_snapshot_preview1"
)

// Environment binds WASI host functions to host-side streams and strings.
// The zero value is not usable; construct with NewEnvironment.
type Environment struct {
	args    *nullTerminatedStrings
	environ *nullTerminatedStrings
	stdin   io.Reader
	stdout,
	stderr io.Writer
}

// Option configures an Environment.
type Option func(*Environment)

func Stdin(reader io.Reader) Option {
	return func(w *Environment) {
		w.stdin = reader
	}
}

func Stdout(writer io.Writer) Option {
	return func(w *Environment) {
		w.stdout = writer
	}
}

func Stderr(writer io.Writer) Option {
	return func(w *Environment) {
		w.stderr = writer
	}
}

// Args sets the command-line arguments visible to args_get and
// args_sizes_get. It errors if the encoded size overflows uint32.
func Args(args []string) (Option, error) {
	strings, err := newNullTerminatedStrings("arg", args)
	if err != nil {
		return nil, err
	}
	return func(w *Environment) {
		w.args = strings
	}, nil
}

// Environ sets the environment visible to environ_get and
// environ_sizes_get. Entries are of the form "KEY=VALUE".
func Environ(environ []string) (Option, error) {
	strings, err := newNullTerminatedStrings("environment variable", environ)
	if err != nil {
		return nil, err
	}
	return func(w *Environment) {
		w.environ = strings
	}, nil
}

// NewEnvironment returns an Environment bound to the process streams unless
// overridden by opts.
func NewEnvironment(opts ...Option) *Environment {
	ret := &Environment{
		args:    &nullTerminatedStrings{},
		environ: &nullTerminatedStrings{},
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	// apply functional options
	for _, f := range opts {
		f(ret)
	}

	return ret
}

// Register exports the host functions into store under both the
// wasi_unstable and wasi_snapshot_preview1 module names, so guests compiled
// against either resolve their imports.
func (w *Environment) Register(store *wasm.Store) (err error) {
	for _, wasiName := range []string{
		wasiUnstableName,
		wasiSnapshotPreview1Name,
	} {
		for name, fn := range map[string]interface{}{
			"proc_exit":         proc_exit,
			"fd_write":          w.fd_write,
			"fd_read":           w.fd_read,
			"fd_close":          w.fd_close,
			"args_get":          w.args_get,
			"args_sizes_get":    w.args_sizes_get,
			"environ_get":       w.environ_get,
			"environ_sizes_get": w.environ_sizes_get,
		} {
			if err = store.AddHostFunction(wasiName, name, reflect.ValueOf(fn)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExitError is raised by proc_exit and carries the guest's exit code out of
// the interpreter.
type ExitError struct {
	Code uint32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("module closed with exit code %d", e.Code)
}

func proc_exit(ctx *wasm.HostFunctionCallContext, exitCode uint32) {
	panic(&ExitError{Code: exitCode})
}

// fd_write scatters the iovec list at iovsPtr to the stream behind fd and
// stores the byte count at nwrittenPtr. The errno is whatever the host
// decides; guests see it verbatim.
func (w *Environment) fd_write(ctx *wasm.HostFunctionCallContext, fd, iovsPtr, iovsLen, nwrittenPtr uint32) Errno {
	var writer io.Writer

	switch fd {
	case 1:
		writer = w.stdout
	case 2:
		writer = w.stderr
	default:
		return EBADF
	}

	var nwritten uint32
	for i := uint32(0); i < iovsLen; i++ {
		iovPtr := iovsPtr + i*8
		offset, ok := ctx.Memory.ReadUint32(iovPtr)
		if !ok {
			return EFAULT
		}
		l, ok := ctx.Memory.ReadUint32(iovPtr + 4)
		if !ok {
			return EFAULT
		}
		buf, ok := ctx.Memory.ReadBytes(offset, l)
		if !ok {
			return EFAULT
		}
		n, err := writer.Write(buf)
		nwritten += uint32(n)
		if err != nil {
			return EIO
		}
	}
	if !ctx.Memory.PutUint32(nwrittenPtr, nwritten) {
		return EFAULT
	}
	return ESUCCESS
}

// fd_read gathers into the iovec list at iovsPtr from the stream behind fd
// and stores the byte count at nreadPtr.
func (w *Environment) fd_read(ctx *wasm.HostFunctionCallContext, fd, iovsPtr, iovsLen, nreadPtr uint32) Errno {
	var reader io.Reader

	switch fd {
	case 0:
		reader = w.stdin
	default:
		return EBADF
	}

	var nread uint32
	for i := uint32(0); i < iovsLen; i++ {
		iovPtr := iovsPtr + i*8
		offset, ok := ctx.Memory.ReadUint32(iovPtr)
		if !ok {
			return EFAULT
		}
		l, ok := ctx.Memory.ReadUint32(iovPtr + 4)
		if !ok {
			return EFAULT
		}
		buf, ok := ctx.Memory.ReadBytes(offset, l)
		if !ok {
			return EFAULT
		}
		n, err := reader.Read(buf)
		nread += uint32(n)
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return EIO
		}
	}
	if !ctx.Memory.PutUint32(nreadPtr, nread) {
		return EFAULT
	}
	return ESUCCESS
}

// fd_close is a no-op for the standard streams, which stay open for the life
// of the store.
func (w *Environment) fd_close(ctx *wasm.HostFunctionCallContext, fd uint32) Errno {
	switch fd {
	case 0, 1, 2:
		return ESUCCESS
	default:
		return EBADF
	}
}

func (w *Environment) args_get(ctx *wasm.HostFunctionCallContext, argv, argvBuf uint32) Errno {
	return writeStrings(ctx.Memory, w.args, argv, argvBuf)
}

func (w *Environment) args_sizes_get(ctx *wasm.HostFunctionCallContext, argc, argvBufSize uint32) Errno {
	return writeSizes(ctx.Memory, w.args, argc, argvBufSize)
}

func (w *Environment) environ_get(ctx *wasm.HostFunctionCallContext, environ, environBuf uint32) Errno {
	return writeStrings(ctx.Memory, w.environ, environ, environBuf)
}

func (w *Environment) environ_sizes_get(ctx *wasm.HostFunctionCallContext, environc, environBufSize uint32) Errno {
	return writeSizes(ctx.Memory, w.environ, environc, environBufSize)
}

// writeStrings stores one pointer per string at ptrs and the null-terminated
// string data consecutively at buf, per the args_get/environ_get layout.
func writeStrings(mem *wasm.MemoryInstance, s *nullTerminatedStrings, ptrs, buf uint32) Errno {
	for _, value := range s.nullTerminatedValues {
		if !mem.PutUint32(ptrs, buf) {
			return EFAULT
		}
		ptrs += 4

		dst, ok := mem.ReadBytes(buf, uint32(len(value)))
		if !ok {
			return EFAULT
		}
		copy(dst, value)
		buf += uint32(len(value))
	}
	return ESUCCESS
}

func writeSizes(mem *wasm.MemoryInstance, s *nullTerminatedStrings, countPtr, bufSizePtr uint32) Errno {
	if !mem.PutUint32(countPtr, uint32(len(s.nullTerminatedValues))) {
		return EFAULT
	}
	if !mem.PutUint32(bufSizePtr, s.totalBufSize) {
		return EFAULT
	}
	return ESUCCESS
}

// nullTerminatedStrings holds null-terminated byte strings and ensures the
// count and total buffer size fit in uint32, as required by the ABI.
type nullTerminatedStrings struct {
	nullTerminatedValues [][]byte
	totalBufSize         uint32
}

func newNullTerminatedStrings(kind string, values []string) (*nullTerminatedStrings, error) {
	if values == nil {
		return &nullTerminatedStrings{nullTerminatedValues: [][]byte{}}, nil
	}
	if uint64(len(values)) > math.MaxUint32 {
		return nil, fmt.Errorf("%s count exceeds the max of uint32: %v", kind, len(values))
	}
	strings := make([][]byte, len(values))
	totalBufSize := uint32(0)
	for i, value := range values {
		valueLen := uint64(len(value)) + 1 // + 1 for "\x00"
		if valueLen > uint64(math.MaxUint32-totalBufSize) {
			return nil, fmt.Errorf("required buffer size for %s values exceeds the max of uint32", kind)
		}
		totalBufSize += uint32(valueLen)
		strings[i] = make([]byte, valueLen)
		copy(strings[i], value)
	}

	return &nullTerminatedStrings{nullTerminatedValues: strings, totalBufSize: totalBufSize}, nil
}
