package sandbox

import (
	"context"
	"fmt"

	framehost "github.com/wippyai/wasm-frame-host"
	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/wire"
)

// Names of the registered native engines.
const (
	PullName = "sandbox"
	PushName = "sandbox-push"
)

// heapBase leaves the low kilobyte of memory unused so that no
// allocation returns a small pointer.
const heapBase = 1024

// ReadyMessage is logged from init.
const ReadyMessage = "arena ready"

func init() {
	engine.RegisterNative(PullName, func(cfg engine.Config) engine.Compiled {
		return &Module{mode: wire.ModePull, limit: cfg.MemoryLimitPages}
	})
	engine.RegisterNative(PushName, func(cfg engine.Config) engine.Compiled {
		return &Module{mode: wire.ModePush, limit: cfg.MemoryLimitPages}
	})
}

// Module is the compiled form of the arena engine.
type Module struct {
	mode  wire.Mode
	limit uint32
}

// NewModule returns the arena engine in the given output mode with memory
// capped at limit pages (0 for no cap).
func NewModule(mode wire.Mode, limit uint32) *Module {
	return &Module{mode: mode, limit: limit}
}

func (m *Module) Describe() engine.ModuleDesc {
	imports := []engine.Import{
		engine.PlatformImport(engine.ImportRandom),
		engine.PlatformImport(engine.ImportLog),
		engine.PlatformImport(engine.ImportThrow),
	}
	if m.mode == wire.ModePush {
		imports = append(imports,
			engine.PlatformImport(engine.ImportStartFrame),
			engine.PlatformImport(engine.ImportEndFrame),
			engine.PlatformImport(engine.ImportDrawRectangle))
	}
	return engine.ModuleDesc{
		Exports:   engine.Exports(m.mode),
		Imports:   imports,
		HasMemory: true,
	}
}

func (m *Module) Instantiate(_ context.Context, host engine.Host) (engine.Instance, error) {
	if host == nil {
		return nil, errors.Instantiation(errors.InvalidInput(errors.PhaseInstantiate, "nil host"))
	}
	mem := engine.NewLinearMemory(1, m.limit)
	return &Instance{
		mode: m.mode,
		host: host,
		mem:  mem,
		heap: newHeap(mem, heapBase),
	}, nil
}

// Instance is one running arena. It is not safe for concurrent use.
type Instance struct {
	host   engine.Host
	mem    *engine.LinearMemory
	heap   *heap
	arena  *Arena
	mode   wire.Mode
	closed bool
}

func (i *Instance) Memory() framehost.Memory { return i.mem }

// Arena returns the game state, or nil before init.
func (i *Instance) Arena() *Arena { return i.arena }

// Live returns the number of heap blocks currently allocated.
func (i *Instance) Live() int { return i.heap.inUse() }

func (i *Instance) Call(_ context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.closed {
		return nil, errors.Closed(errors.PhaseUpdate, "instance")
	}
	sig, ok := engine.Exports(i.mode)[name]
	if !ok {
		return nil, errors.NotFound(errors.PhaseUpdate, "export", name)
	}
	if len(args) != len(sig.Params) {
		return nil, errors.InvalidInput(errors.PhaseUpdate,
			fmt.Sprintf("%s takes %d arguments, got %d", name, len(sig.Params), len(args)))
	}

	switch name {
	case engine.ExportAlloc:
		return []uint64{engine.I32Arg(i.heap.alloc(engine.I32Result(args[0])))}, nil
	case engine.ExportFree:
		if err := i.heap.release(engine.I32Result(args[0]), engine.I32Result(args[1])); err != nil {
			return nil, errors.Trap(errors.PhaseAlloc, name, err)
		}
		return nil, nil
	case engine.ExportInit:
		return nil, i.init()
	default:
		if i.mode == wire.ModePush {
			return nil, i.updatePush(args)
		}
		return nil, i.updatePull(args)
	}
}

func (i *Instance) init() error {
	if i.arena != nil {
		return i.throw("init called twice")
	}
	i.arena = NewArena(WorldWidth, WorldHeight, i.host.Random)
	i.host.Log([]byte(ReadyMessage))
	return nil
}

// step decodes the input snapshot and advances the game.
func (i *Instance) step(ptr, length uint32, delta float32) error {
	if i.arena == nil {
		return i.throw("update called before init")
	}
	data, err := i.mem.Read(ptr, length)
	if err != nil {
		return i.throw(err.Error())
	}
	in, err := wire.DecodeInput(data)
	if err != nil {
		return i.throw(err.Error())
	}
	i.arena.Step(in, delta)
	return nil
}

func (i *Instance) updatePull(args []uint64) error {
	ret := engine.I32Result(args[0])
	if err := i.step(engine.I32Result(args[1]), engine.I32Result(args[2]), engine.F32Result(args[4])); err != nil {
		return err
	}

	out, err := wire.EncodeFrame(i.arena.Frame(wire.ChannelsByte))
	if err != nil {
		return i.throw(err.Error())
	}
	ptr := i.heap.alloc(uint32(len(out)))
	if ptr == 0 {
		return errors.AllocationFailed(uint32(len(out)), fmt.Errorf("engine heap exhausted at %d pages", i.mem.Pages()))
	}
	if err := i.mem.Write(ptr, out); err != nil {
		return errors.Trap(errors.PhaseUpdate, engine.ExportUpdate, err)
	}
	if err := i.mem.WriteU32(ret, ptr); err != nil {
		return errors.Trap(errors.PhaseUpdate, engine.ExportUpdate, err)
	}
	if err := i.mem.WriteU32(ret+4, uint32(len(out))); err != nil {
		return errors.Trap(errors.PhaseUpdate, engine.ExportUpdate, err)
	}
	return nil
}

func (i *Instance) updatePush(args []uint64) error {
	if err := i.step(engine.I32Result(args[0]), engine.I32Result(args[1]), engine.F32Result(args[3])); err != nil {
		return err
	}

	if err := i.host.StartFrame(); err != nil {
		return err
	}
	var drawErr error
	i.arena.Draw(func(c wire.DrawCommand) {
		if drawErr != nil {
			return
		}
		drawErr = i.host.DrawRectangle(
			float32(c.Left), float32(c.Bottom), float32(c.Right), float32(c.Top),
			float32(c.Red), float32(c.Green), float32(c.Blue))
	})
	if drawErr != nil {
		return drawErr
	}
	return i.host.EndFrame()
}

// throw raises msg through the platform and aborts the call.
func (i *Instance) throw(msg string) error {
	if err := i.host.Throw([]byte(msg)); err != nil {
		return err
	}
	return errors.EngineThrow(errors.PhaseUpdate, msg)
}

func (i *Instance) Close(context.Context) error {
	i.closed = true
	return nil
}

var (
	_ engine.Compiled = (*Module)(nil)
	_ engine.Instance = (*Instance)(nil)
)
