package engine

import (
	"context"

	"go.uber.org/zap"

	framehost "github.com/wippyai/wasm-frame-host"
)

// ExportAllocator implements framehost.Allocator by calling the engine's
// alloc and free exports.
type ExportAllocator struct {
	inst      Instance
	ctx       context.Context
	allocName string
	freeName  string
}

// NewExportAllocator binds the allocator exports named by abi.
func NewExportAllocator(inst Instance, abi ABI) *ExportAllocator {
	return &ExportAllocator{
		inst:      inst,
		ctx:       context.Background(),
		allocName: abi.Alloc,
		freeName:  abi.Free,
	}
}

// SetContext sets the context used for allocator calls made during the
// next engine operation.
func (a *ExportAllocator) SetContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	a.ctx = ctx
}

func (a *ExportAllocator) Alloc(size uint32) (uint32, error) {
	res, err := a.inst.Call(a.ctx, a.allocName, I32Arg(size))
	if err != nil {
		return 0, err
	}
	if len(res) != 1 {
		return 0, nil
	}
	return I32Result(res[0]), nil
}

func (a *ExportAllocator) Free(ptr, size uint32) error {
	if _, err := a.inst.Call(a.ctx, a.freeName, I32Arg(ptr), I32Arg(size)); err != nil {
		Logger().Warn("free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
		return err
	}
	return nil
}

var _ framehost.Allocator = (*ExportAllocator)(nil)
