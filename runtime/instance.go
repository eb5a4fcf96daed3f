package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-frame-host/bridge"
	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/marshal"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/wire"
)

// State is the lifecycle state of an instance.
type State uint8

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// core is the lifecycle and call plumbing shared by both instance kinds.
type core struct {
	inst     engine.Instance
	abi      engine.ABI
	platform *bridge.Platform
	alloc    *engine.ExportAllocator
	marshal  *marshal.Marshaller
	logger   *zap.Logger
	fatal    error
	id       string
	frames   uint64
	state    State
}

func newCore(m *Module, inst engine.Instance, p *bridge.Platform) *core {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	logger := m.runtime.logger.With(zap.String("instance", id.String()), zap.Stringer("mode", m.abi.Mode))
	alloc := engine.NewExportAllocator(inst, m.abi)
	return &core{
		inst:     inst,
		abi:      m.abi,
		platform: p,
		alloc:    alloc,
		marshal:  marshal.New(inst.Memory(), alloc, marshal.WithLogger(logger)),
		logger:   logger,
		id:       id.String(),
	}
}

// ID returns the instance's session id.
func (c *core) ID() string { return c.id }

// State returns the lifecycle state.
func (c *core) State() State { return c.state }

// Frames returns the number of successful updates.
func (c *core) Frames() uint64 { return c.frames }

// Err returns the error that failed the instance, if any.
func (c *core) Err() error { return c.fatal }

// Marshaller exposes the instance's marshalling context.
func (c *core) Marshaller() *marshal.Marshaller { return c.marshal }

// Init calls the engine's init export. It must be called exactly once
// before the first update.
func (c *core) Init(ctx context.Context) error {
	switch c.state {
	case StateReady:
		return errors.New(errors.PhaseInit, errors.KindAlreadyInit).Detail("init already called").Build()
	case StateFailed:
		return c.fatal
	case StateClosed:
		return errors.Closed(errors.PhaseInit, "instance")
	}
	if err := c.call(ctx, errors.PhaseInit, c.abi.Init); err != nil {
		return c.fail(err)
	}
	c.state = StateReady
	c.logger.Debug("engine initialized")
	return nil
}

// ready checks that an update may run.
func (c *core) ready(t wire.TimeSample) error {
	switch c.state {
	case StateUninitialized:
		return errors.NotInitialized(errors.PhaseUpdate, "engine")
	case StateFailed:
		return c.fatal
	case StateClosed:
		return errors.Closed(errors.PhaseUpdate, "instance")
	}
	if n := c.marshal.Outstanding(); n != 0 {
		return c.fail(errors.Protocol(errors.PhaseUpdate, fmt.Sprintf("%d buffers still owned from the previous frame", n)))
	}
	return t.Validate()
}

// call invokes an export and invalidates cached views, since the engine
// may have grown memory. An error raised through the platform takes
// precedence over the backend's error.
func (c *core) call(ctx context.Context, phase errors.Phase, name string, args ...uint64) error {
	c.alloc.SetContext(ctx)
	_, err := c.inst.Call(ctx, name, args...)
	c.marshal.Invalidate()
	if fault := c.platform.TakeFault(); fault != nil {
		return fault
	}
	if err != nil {
		if _, ok := err.(*errors.Error); ok {
			return err
		}
		return errors.Trap(phase, name, err)
	}
	return nil
}

// fail moves the instance to StateFailed when err is fatal.
func (c *core) fail(err error) error {
	if errors.IsFrameFatal(err) || errors.IsSessionFatal(err) {
		c.state = StateFailed
		c.fatal = err
		c.logger.Error("instance failed", zap.Uint64("frame", c.frames), zap.Error(err))
	}
	return err
}

func (c *core) close(ctx context.Context) error {
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	return c.inst.Close(ctx)
}

// input encodes the snapshot and passes it to fn inside a marshalling
// scope, so the input buffer is released on every path.
func (c *core) input(in wire.InputState, fn func(s *marshal.Scope, buf *marshal.Buffer) error) error {
	data, err := wire.EncodeInput(in)
	if err != nil {
		return err
	}
	return c.marshal.Scope(func(s *marshal.Scope) error {
		buf, err := s.EncodeBytes(data)
		if err != nil {
			return err
		}
		return fn(s, buf)
	})
}

// PullInstance is an engine whose update returns a serialized frame.
// It is not safe for concurrent use.
type PullInstance struct {
	*core
	slot      uint32
	ownedSlot bool
}

// bindSlot resolves the return slot: the engine's own when exported,
// otherwise an 8-byte buffer allocated once for the instance's lifetime.
func (i *PullInstance) bindSlot(ctx context.Context) error {
	i.alloc.SetContext(ctx)
	if i.abi.Retptr != "" {
		res, err := i.inst.Call(ctx, i.abi.Retptr)
		if err != nil {
			return errors.Trap(errors.PhaseInstantiate, i.abi.Retptr, err)
		}
		if len(res) != 1 {
			return errors.Protocol(errors.PhaseInstantiate, "return slot export returned no pointer")
		}
		i.slot = engine.I32Result(res[0])
		return nil
	}
	slot, err := i.marshal.Alloc(8)
	if err != nil {
		return err
	}
	i.slot = slot
	i.ownedSlot = true
	return nil
}

// Update runs one frame: the input snapshot and time sample go in, the
// decoded frame comes out. The input and output buffers are released
// before Update returns.
func (i *PullInstance) Update(ctx context.Context, in wire.InputState, t wire.TimeSample) (wire.Frame, error) {
	if err := i.ready(t); err != nil {
		return wire.Frame{}, err
	}

	var frame wire.Frame
	err := i.input(in, func(s *marshal.Scope, buf *marshal.Buffer) error {
		err := i.call(ctx, errors.PhaseUpdate, i.abi.Update,
			engine.I32Arg(i.slot),
			engine.I32Arg(buf.Ptr()),
			engine.I32Arg(buf.Len()),
			engine.F32Arg(float32(t.Elapsed)),
			engine.F32Arg(float32(t.Delta)))
		if err != nil {
			return err
		}

		ptr, length, err := i.marshal.ReadPair(i.slot)
		if err != nil {
			return err
		}
		out, err := s.Adopt(ptr, length)
		if err != nil {
			return err
		}
		data, err := out.Bytes()
		if err != nil {
			return err
		}
		frame, err = wire.DecodeFrame(data, wire.ChannelsByte)
		return err
	})
	if err != nil {
		return wire.Frame{}, i.fail(err)
	}
	i.frames++
	return frame, nil
}

// Frame runs Update; pull engines always produce a frame.
func (i *PullInstance) Frame(ctx context.Context, in wire.InputState, t wire.TimeSample) (wire.Frame, bool, error) {
	frame, err := i.Update(ctx, in, t)
	if err != nil {
		return wire.Frame{}, false, err
	}
	return frame, true, nil
}

// Close frees the host-owned return slot and closes the engine.
func (i *PullInstance) Close(ctx context.Context) error {
	if i.ownedSlot && i.state != StateClosed {
		i.alloc.SetContext(ctx)
		if err := i.alloc.Free(i.slot, 8); err != nil {
			i.logger.Warn("free return slot", zap.Error(err))
		}
	}
	return i.close(ctx)
}

// PushInstance is an engine that draws through the platform during update.
// It is not safe for concurrent use.
type PushInstance struct {
	*core
	queue *render.Queue
}

// Update runs one frame, routing the engine's drawing into q for the
// duration of the call. The caller drains q afterwards.
func (i *PushInstance) Update(ctx context.Context, in wire.InputState, t wire.TimeSample, q *render.Queue) error {
	if q == nil {
		return errors.InvalidInput(errors.PhaseUpdate, "push update needs a command queue")
	}
	if err := i.ready(t); err != nil {
		return err
	}

	i.platform.Bind(q)
	defer i.platform.Unbind()

	err := i.input(in, func(_ *marshal.Scope, buf *marshal.Buffer) error {
		return i.call(ctx, errors.PhaseUpdate, i.abi.Update,
			engine.I32Arg(buf.Ptr()),
			engine.I32Arg(buf.Len()),
			engine.F32Arg(float32(t.Elapsed)),
			engine.F32Arg(float32(t.Delta)))
	})
	if err != nil {
		return i.fail(err)
	}
	i.frames++
	return nil
}

// Frame runs Update on the instance's own queue and drains it. ok is false
// when the engine did not start a frame.
func (i *PushInstance) Frame(ctx context.Context, in wire.InputState, t wire.TimeSample) (wire.Frame, bool, error) {
	if err := i.Update(ctx, in, t, i.queue); err != nil {
		return wire.Frame{}, false, err
	}
	frame, ok, err := i.queue.Drain()
	if err != nil {
		return wire.Frame{}, false, i.fail(err)
	}
	return frame, ok, nil
}

func (i *PushInstance) Close(ctx context.Context) error {
	return i.close(ctx)
}
