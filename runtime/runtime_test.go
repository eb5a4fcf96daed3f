package runtime

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-frame-host/bridge"
	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/marshal"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/testbed"
	"github.com/wippyai/wasm-frame-host/wire"
)

var backends = []string{engine.WazeroName, engine.WasmtimeName}

var step = wire.TimeSample{Elapsed: 0.016, Delta: 0.016}

func newRuntime(t *testing.T, backend string, opts ...Option) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, append([]Option{WithBackend(backend)}, opts...)...)
	if err != nil {
		t.Fatalf("New(%s): %v", backend, err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func loadPull(t *testing.T, rt *Runtime, wat string, p *bridge.Platform) *PullInstance {
	t.Helper()
	ctx := context.Background()
	mod, err := rt.LoadWASM(ctx, testbed.Compile(t, wat))
	if err != nil {
		t.Fatalf("LoadWASM: %v", err)
	}
	inst, err := mod.InstantiatePull(ctx, p)
	if err != nil {
		t.Fatalf("InstantiatePull: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst
}

func loadPush(t *testing.T, rt *Runtime, wat string) *PushInstance {
	t.Helper()
	ctx := context.Background()
	mod, err := rt.LoadWASM(ctx, testbed.Compile(t, wat))
	if err != nil {
		t.Fatalf("LoadWASM: %v", err)
	}
	inst, err := mod.InstantiatePush(ctx, nil)
	if err != nil {
		t.Fatalf("InstantiatePush: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst
}

func counter(t *testing.T, inst *PullInstance, name string) uint32 {
	t.Helper()
	res, err := inst.inst.Call(context.Background(), name)
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return engine.I32Result(res[0])
}

func TestRuntime_DefaultBackend(t *testing.T) {
	ctx := context.Background()
	rt, err := New(ctx)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close(ctx)
	if rt.Backend() != engine.WazeroName {
		t.Errorf("Backend() = %q, want %q", rt.Backend(), engine.WazeroName)
	}
}

func TestRuntime_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), WithBackend("quickjs"))
	if !errors.HasKind(err, errors.KindNotFound) {
		t.Fatalf("New(quickjs) error = %v, want not_found", err)
	}
}

func TestPull_Lifecycle(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			core, logs := observer.New(zap.InfoLevel)
			p := bridge.New(bridge.WithLogger(zap.New(core)))
			inst := loadPull(t, newRuntime(t, backend), testbed.Pull(), p)

			if inst.State() != StateUninitialized {
				t.Fatalf("state = %v, want uninitialized", inst.State())
			}
			if _, err := inst.Update(ctx, 0, step); !errors.HasKind(err, errors.KindNotInitialized) {
				t.Fatalf("Update before Init error = %v, want not_initialized", err)
			}
			if err := inst.Init(ctx); err != nil {
				t.Fatalf("Init: %v", err)
			}
			if err := inst.Init(ctx); !errors.HasKind(err, errors.KindAlreadyInit) {
				t.Fatalf("second Init error = %v, want already_initialized", err)
			}
			if got := logs.FilterMessage("engine").Len(); got != 1 {
				t.Errorf("engine logs = %d, want 1", got)
			}

			frame, err := inst.Update(ctx, wire.InputState(0).With(wire.Up, true), step)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if frame.Convention != wire.ChannelsByte || len(frame.Commands) != 1 {
				t.Fatalf("frame = %+v, want one byte-channel command", frame)
			}
			want := wire.DrawCommand{Left: 10, Top: 60, Right: 50, Bottom: 20, Red: 255}
			if frame.Commands[0] != want {
				t.Errorf("command = %+v, want %+v", frame.Commands[0], want)
			}
			if inst.Frames() != 1 {
				t.Errorf("Frames() = %d, want 1", inst.Frames())
			}

			if err := inst.Close(ctx); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := inst.Update(ctx, 0, step); !errors.HasKind(err, errors.KindClosed) {
				t.Fatalf("Update after Close error = %v, want closed", err)
			}
		})
	}
}

func TestPull_BufferDiscipline(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			inst := loadPull(t, newRuntime(t, backend), testbed.Pull(), nil)
			if err := inst.Init(ctx); err != nil {
				t.Fatalf("Init: %v", err)
			}

			const frames = 50
			for n := 0; n < frames; n++ {
				if _, err := inst.Update(ctx, wire.InputState(n), step); err != nil {
					t.Fatalf("frame %d: %v", n, err)
				}
				if out := inst.Marshaller().Outstanding(); out != 0 {
					t.Fatalf("frame %d: %d buffers outstanding", n, out)
				}
			}

			// one return slot plus an input and an output buffer per frame
			allocs, frees := counter(t, inst, "allocs"), counter(t, inst, "frees")
			if allocs != 1+2*frames {
				t.Errorf("allocs = %d, want %d", allocs, 1+2*frames)
			}
			if frees != 2*frames {
				t.Errorf("frees = %d, want %d", frees, 2*frames)
			}
			if got := counter(t, inst, "frames"); got != frames {
				t.Errorf("engine frames = %d, want %d", got, frames)
			}
		})
	}
}

func TestPull_InputRoundTrip(t *testing.T) {
	ctx := context.Background()
	inst := loadPull(t, newRuntime(t, engine.WazeroName), testbed.Echo(), nil)
	if inst.abi.Retptr == "" {
		t.Fatal("Echo should export a return slot")
	}
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for n := 0; n < 1<<10; n++ {
		in := wire.InputState(n)
		data, err := wire.EncodeInput(in)
		if err != nil {
			t.Fatalf("EncodeInput(%v): %v", in, err)
		}

		var echoed []byte
		err = inst.input(in, func(s *marshal.Scope, buf *marshal.Buffer) error {
			if err := inst.call(ctx, errors.PhaseUpdate, inst.abi.Update,
				engine.I32Arg(inst.slot), engine.I32Arg(buf.Ptr()), engine.I32Arg(buf.Len()),
				engine.F32Arg(0), engine.F32Arg(0)); err != nil {
				return err
			}
			ptr, length, err := inst.Marshaller().ReadPair(inst.slot)
			if err != nil {
				return err
			}
			out, err := s.Adopt(ptr, length)
			if err != nil {
				return err
			}
			echoed, err = out.Bytes()
			return err
		})
		if err != nil {
			t.Fatalf("input %d: %v", n, err)
		}
		got, err := wire.DecodeInput(echoed)
		if err != nil {
			t.Fatalf("DecodeInput(%s): %v", echoed, err)
		}
		if got != in || string(echoed) != string(data) {
			t.Fatalf("input %d came back as %v (%s)", n, got, echoed)
		}
	}
}

func TestPull_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		wat  string
		kind errors.Kind
	}{
		{"throw", testbed.Throw(), errors.KindEngineThrow},
		{"trap", testbed.Trap(), errors.KindTrap},
		{"garbage", testbed.Garbage(), errors.KindDecode},
	}
	for _, backend := range backends {
		for _, tt := range tests {
			t.Run(backend+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				inst := loadPull(t, newRuntime(t, backend), tt.wat, nil)
				if err := inst.Init(ctx); err != nil {
					t.Fatalf("Init: %v", err)
				}

				_, err := inst.Update(ctx, 0, step)
				if !errors.HasKind(err, tt.kind) {
					t.Fatalf("Update error = %v, want %s", err, tt.kind)
				}
				if !errors.IsFrameFatal(err) {
					t.Errorf("IsFrameFatal(%v) = false", err)
				}
				if inst.State() != StateFailed {
					t.Errorf("state = %v, want failed", inst.State())
				}
				if inst.Marshaller().Outstanding() != 0 {
					t.Errorf("%d buffers outstanding after failure", inst.Marshaller().Outstanding())
				}

				again, err2 := inst.Update(ctx, 0, step)
				if err2 != err || len(again.Commands) != 0 {
					t.Errorf("Update after failure = %v, want the recorded error %v", err2, err)
				}
			})
		}
	}
}

func TestPull_ThrowMessage(t *testing.T) {
	ctx := context.Background()
	inst := loadPull(t, newRuntime(t, engine.WazeroName), testbed.Throw(), nil)
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, err := inst.Update(ctx, 0, step)
	e, ok := err.(*errors.Error)
	if !ok {
		t.Fatalf("Update error = %T %v, want *errors.Error", err, err)
	}
	if e.Value != testbed.ThrowMessage {
		t.Errorf("Value = %v, want %q", e.Value, testbed.ThrowMessage)
	}
	if e.Detail != "panicked at game::arena::update: index out of bounds" {
		t.Errorf("Detail = %q", e.Detail)
	}
}

func TestPull_InvalidTime(t *testing.T) {
	ctx := context.Background()
	inst := loadPull(t, newRuntime(t, engine.WazeroName), testbed.Pull(), nil)
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, err := inst.Update(ctx, 0, wire.TimeSample{Elapsed: 1, Delta: -1})
	if !errors.HasKind(err, errors.KindInvalidData) {
		t.Fatalf("Update error = %v, want invalid_data", err)
	}
	if inst.State() != StateReady {
		t.Errorf("state = %v, rejected time should not fail the instance", inst.State())
	}
}

func TestPush_Update(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			inst := loadPush(t, newRuntime(t, backend), testbed.Push())
			if err := inst.Init(ctx); err != nil {
				t.Fatalf("Init: %v", err)
			}

			if err := inst.Update(ctx, 0, step, nil); !errors.HasKind(err, errors.KindInvalidInput) {
				t.Fatalf("Update(nil queue) error = %v, want invalid_input", err)
			}

			q := render.NewQueue()
			if err := inst.Update(ctx, 0, step, q); err != nil {
				t.Fatalf("Update: %v", err)
			}
			frame, ok, err := q.Drain()
			if err != nil || !ok {
				t.Fatalf("Drain = %v, %v", ok, err)
			}
			want := wire.DrawCommand{Left: 10, Bottom: 20, Right: 50, Top: 60, Red: 1, Green: 0.5}
			if len(frame.Commands) != 1 || frame.Commands[0] != want {
				t.Fatalf("commands = %+v, want [%+v]", frame.Commands, want)
			}
			if frame.Convention != wire.ChannelsUnit {
				t.Errorf("convention = %v, want unit", frame.Convention)
			}

			frame, ok, err = inst.Frame(ctx, 0, step)
			if err != nil || !ok || len(frame.Commands) != 1 {
				t.Fatalf("Frame = %+v, %v, %v", frame, ok, err)
			}
		})
	}
}

func TestPush_Unterminated(t *testing.T) {
	ctx := context.Background()
	inst := loadPush(t, newRuntime(t, engine.WazeroName), testbed.PushUnterminated())
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	_, _, err := inst.Frame(ctx, 0, step)
	if !errors.HasKind(err, errors.KindProtocol) {
		t.Fatalf("Frame error = %v, want protocol", err)
	}
	if inst.State() != StateFailed {
		t.Errorf("state = %v, want failed", inst.State())
	}
}

func TestModule_ModeExclusivity(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, engine.WazeroName)

	pull, err := rt.LoadWAT(ctx, testbed.Pull())
	if err != nil {
		t.Fatalf("LoadWAT(pull): %v", err)
	}
	if _, err := pull.InstantiatePush(ctx, nil); !errors.HasKind(err, errors.KindModeConflict) {
		t.Errorf("pull.InstantiatePush error = %v, want mode_conflict", err)
	}

	push, err := rt.LoadWAT(ctx, testbed.Push())
	if err != nil {
		t.Fatalf("LoadWAT(push): %v", err)
	}
	if push.Mode() != wire.ModePush {
		t.Errorf("Mode() = %v, want push", push.Mode())
	}
	if _, err := push.InstantiatePull(ctx, nil); !errors.HasKind(err, errors.KindModeConflict) {
		t.Errorf("push.InstantiatePull error = %v, want mode_conflict", err)
	}

	if _, err := rt.LoadWAT(ctx, testbed.Conflict()); !errors.HasKind(err, errors.KindModeConflict) {
		t.Errorf("LoadWAT(conflict) error = %v, want mode_conflict", err)
	}
	if _, err := rt.LoadWAT(ctx, testbed.NoAlloc); !errors.HasKind(err, errors.KindMissingExport) {
		t.Errorf("LoadWAT(no alloc) error = %v, want missing_export", err)
	}
	if _, err := rt.LoadWAT(ctx, "(module"); !errors.HasKind(err, errors.KindInvalidData) {
		t.Errorf("LoadWAT(bad text) error = %v, want invalid_data", err)
	}
}

func TestRuntime_LoadNativeUnknown(t *testing.T) {
	rt := newRuntime(t, engine.WazeroName)
	if _, err := rt.LoadNative(context.Background(), "missing"); !errors.HasKind(err, errors.KindNotFound) {
		t.Fatalf("LoadNative error = %v, want not_found", err)
	}
}
