package runtime

import (
	"context"

	"github.com/wippyai/wasm-frame-host/bridge"
	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/wire"
)

// Module is a loaded engine whose output mode is fixed.
type Module struct {
	runtime  *Runtime
	compiled engine.Compiled
	abi      engine.ABI
	name     string
}

// ABI returns the resolved frame ABI.
func (m *Module) ABI() engine.ABI { return m.abi }

// Mode returns the module's output mode.
func (m *Module) Mode() wire.Mode { return m.abi.Mode }

// Name identifies the module in logs: a content digest or native name.
func (m *Module) Name() string { return m.name }

// InstantiatePull creates a pull-mode instance. It fails with
// KindModeConflict for a push-mode module. A nil platform gets a default
// one logging to the runtime's logger.
func (m *Module) InstantiatePull(ctx context.Context, p *bridge.Platform) (*PullInstance, error) {
	if m.abi.Mode != wire.ModePull {
		return nil, errors.ModeConflict(errors.PhaseInstantiate, "module draws through push primitives; use InstantiatePush")
	}
	c, err := m.instantiate(ctx, p)
	if err != nil {
		return nil, err
	}
	inst := &PullInstance{core: c}
	if err := inst.bindSlot(ctx); err != nil {
		c.close(ctx)
		return nil, err
	}
	return inst, nil
}

// InstantiatePush creates a push-mode instance. It fails with
// KindModeConflict for a pull-mode module.
func (m *Module) InstantiatePush(ctx context.Context, p *bridge.Platform) (*PushInstance, error) {
	if m.abi.Mode != wire.ModePush {
		return nil, errors.ModeConflict(errors.PhaseInstantiate, "module returns pull frames; use InstantiatePull")
	}
	c, err := m.instantiate(ctx, p)
	if err != nil {
		return nil, err
	}
	return &PushInstance{core: c, queue: render.NewQueue()}, nil
}

func (m *Module) instantiate(ctx context.Context, p *bridge.Platform) (*core, error) {
	if p == nil {
		p = bridge.New(bridge.WithLogger(m.runtime.logger))
	}
	inst, err := m.compiled.Instantiate(ctx, p)
	if err != nil {
		return nil, err
	}
	if inst.Memory() == nil {
		inst.Close(ctx)
		return nil, errors.Instantiation(errors.Protocol(errors.PhaseInstantiate, "engine has no linear memory"))
	}
	return newCore(m, inst, p), nil
}
