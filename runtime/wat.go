package runtime

import (
	"context"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wippyai/wasm-frame-host/errors"
)

// LoadWAT compiles WebAssembly text and loads the result.
func (r *Runtime) LoadWAT(ctx context.Context, watText string) (*Module, error) {
	wasm, err := wasmtime.Wat2Wasm(watText)
	if err != nil {
		return nil, errors.Load("parse WAT", err)
	}
	return r.LoadWASM(ctx, wasm)
}
