// Package wasmlite runs WebAssembly 1.0 (MVP) binaries against a WASI
// snapshot-01 host. It wires the binary decoder, the interpreter engine and
// the WASI host functions into one runtime.
package wasmlite

import (
	"fmt"

	"github.com/wasmlite/wasmlite/wasi"
	"github.com/wasmlite/wasmlite/wasm"
	"github.com/wasmlite/wasmlite/wasm/interp"
)

// Runtime owns a store whose engine interprets function bodies, with the
// WASI host functions already registered. Both fields are exported so callers
// can reach the lower layers, e.g. to add further host functions.
type Runtime struct {
	Store *wasm.Store
	WASI  *wasi.Environment
}

// New returns a Runtime with the WASI host functions registered under both
// the wasi_unstable and wasi_snapshot_preview1 module names.
func New(opts ...wasi.Option) (*Runtime, error) {
	store := wasm.NewStore(interp.NewEngine())
	env := wasi.NewEnvironment(opts...)
	if err := env.Register(store); err != nil {
		return nil, fmt.Errorf("register wasi host functions: %w", err)
	}
	return &Runtime{Store: store, WASI: env}, nil
}

// Instantiate decodes a WebAssembly binary and registers it in the store
// under name.
func (r *Runtime) Instantiate(source []byte, name string) error {
	m, err := wasm.DecodeModule(source)
	if err != nil {
		return fmt.Errorf("decode module: %w", err)
	}
	if err := r.Store.Instantiate(m, name); err != nil {
		return fmt.Errorf("instantiate module: %w", err)
	}
	return nil
}

// Call invokes the exported function funcName of the named module.
func (r *Runtime) Call(moduleName, funcName string, args ...uint64) ([]uint64, error) {
	ret, _, err := r.Store.CallFunction(moduleName, funcName, args...)
	return ret, err
}
