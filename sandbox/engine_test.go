package sandbox

import (
	"context"
	"testing"

	"github.com/wippyai/wasm-frame-host/bridge"
	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/runtime"
	"github.com/wippyai/wasm-frame-host/wire"
)

func newTestMemory(pages, limit uint32) *engine.LinearMemory {
	return engine.NewLinearMemory(pages, limit)
}

var step = wire.TimeSample{Elapsed: 0.1, Delta: 0.1}

func newRuntime(t *testing.T, opts ...runtime.Option) *runtime.Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

func TestSandbox_Registered(t *testing.T) {
	names := engine.Natives()
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found[PullName] || !found[PushName] {
		t.Fatalf("Natives() = %v, want %s and %s", names, PullName, PushName)
	}
}

func TestSandbox_DescribeMatchesABI(t *testing.T) {
	for _, mode := range []wire.Mode{wire.ModePull, wire.ModePush} {
		abi, err := engine.Inspect(NewModule(mode, 0).Describe())
		if err != nil {
			t.Fatalf("Inspect(%v): %v", mode, err)
		}
		if abi.Mode != mode {
			t.Errorf("mode = %v, want %v", abi.Mode, mode)
		}
		if abi.Retptr != "" {
			t.Errorf("%v: sandbox should not export a return slot", mode)
		}
	}
}

func TestSandbox_PullFrames(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	mod, err := rt.LoadNative(ctx, PullName)
	if err != nil {
		t.Fatalf("LoadNative: %v", err)
	}
	p := bridge.New(bridge.WithSeed(7))
	inst, err := mod.InstantiatePull(ctx, p)
	if err != nil {
		t.Fatalf("InstantiatePull: %v", err)
	}
	defer inst.Close(ctx)

	if err := inst.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.Logs() != 1 {
		t.Errorf("logs = %d, want the ready message", p.Logs())
	}

	rec := render.NewRecorder(WorldWidth, WorldHeight)
	consumer := render.NewConsumer(rec)
	up := wire.InputState(0).With(wire.Up, true)
	for n := 0; n < 100; n++ {
		frame, err := inst.Update(ctx, up, wire.TimeSample{Elapsed: float64(n) * 0.016, Delta: 0.016})
		if err != nil {
			t.Fatalf("frame %d: %v", n, err)
		}
		if err := consumer.Present(frame); err != nil {
			t.Fatalf("present %d: %v", n, err)
		}
	}
	if got := len(rec.Fills()); got < 5 {
		t.Fatalf("fills = %d, want player and walls at least", got)
	}
	if inst.Marshaller().Outstanding() != 0 {
		t.Errorf("outstanding buffers = %d", inst.Marshaller().Outstanding())
	}
}

func TestSandbox_HeapBalancedAcrossFrames(t *testing.T) {
	ctx := context.Background()
	host := bridge.New(bridge.WithSeed(1))
	c := NewModule(wire.ModePull, 0)
	raw, err := c.Instantiate(ctx, host)
	if err != nil {
		t.Fatal(err)
	}
	inst := raw.(*Instance)
	if _, err := inst.Call(ctx, engine.ExportInit); err != nil {
		t.Fatal(err)
	}

	slot := inst.heap.alloc(8)
	in, _ := wire.EncodeInput(0)
	for n := 0; n < 20; n++ {
		ptr := inst.heap.alloc(uint32(len(in)))
		if err := inst.mem.Write(ptr, in); err != nil {
			t.Fatal(err)
		}
		args := []uint64{engine.I32Arg(slot), engine.I32Arg(ptr), engine.I32Arg(uint32(len(in))), engine.F32Arg(0), engine.F32Arg(0.016)}
		if _, err := inst.Call(ctx, engine.ExportUpdate, args...); err != nil {
			t.Fatalf("update %d: %v", n, err)
		}
		out, _ := inst.mem.ReadU32(slot)
		length, _ := inst.mem.ReadU32(slot + 4)
		if _, err := inst.Call(ctx, engine.ExportFree, engine.I32Arg(ptr), engine.I32Arg(uint32(len(in)))); err != nil {
			t.Fatal(err)
		}
		if _, err := inst.Call(ctx, engine.ExportFree, engine.I32Arg(out), engine.I32Arg(length)); err != nil {
			t.Fatal(err)
		}
	}
	if inst.Live() != 1 {
		t.Fatalf("live blocks = %d, want only the return slot", inst.Live())
	}
}

func TestSandbox_PushFrames(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	mod, err := rt.LoadNative(ctx, PushName)
	if err != nil {
		t.Fatalf("LoadNative: %v", err)
	}
	if _, err := mod.InstantiatePull(ctx, nil); !errors.HasKind(err, errors.KindModeConflict) {
		t.Fatalf("InstantiatePull on push engine = %v, want mode_conflict", err)
	}
	inst, err := mod.InstantiatePush(ctx, bridge.New(bridge.WithSeed(3)))
	if err != nil {
		t.Fatalf("InstantiatePush: %v", err)
	}
	defer inst.Close(ctx)
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	frame, ok, err := inst.Frame(ctx, 0, step)
	if err != nil || !ok {
		t.Fatalf("Frame = %v, %v", ok, err)
	}
	if frame.Convention != wire.ChannelsUnit {
		t.Errorf("convention = %v, want unit", frame.Convention)
	}
	player := frame.Commands[0]
	want := wire.DrawCommand{Left: 475, Top: 275, Right: 485, Bottom: 265, Red: 1, Green: 1, Blue: 1}
	if player != want {
		t.Errorf("player = %+v, want %+v", player, want)
	}

	r := render.NewRaster(WorldWidth, WorldHeight)
	if err := render.NewConsumer(r).Present(frame); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if c := r.At(480, 270); c != (render.Color{R: 255, G: 255, B: 255}) {
		t.Errorf("pixel under player = %+v, want white", c)
	}
}

func TestSandbox_Errors(t *testing.T) {
	ctx := context.Background()
	host := bridge.New()
	raw, _ := NewModule(wire.ModePull, 0).Instantiate(ctx, host)
	inst := raw.(*Instance)

	args := []uint64{engine.I32Arg(8), engine.I32Arg(0), engine.I32Arg(0), engine.F32Arg(0), engine.F32Arg(0)}
	if _, err := inst.Call(ctx, engine.ExportUpdate, args...); !errors.HasKind(err, errors.KindEngineThrow) {
		t.Fatalf("update before init = %v, want engine_throw", err)
	}
	host.TakeFault()

	if _, err := inst.Call(ctx, engine.ExportInit); err != nil {
		t.Fatal(err)
	}
	junk := []byte(`{"up_key":1}`)
	ptr := inst.heap.alloc(uint32(len(junk)))
	inst.mem.Write(ptr, junk)
	args[1], args[2] = engine.I32Arg(ptr), engine.I32Arg(uint32(len(junk)))
	if _, err := inst.Call(ctx, engine.ExportUpdate, args...); !errors.HasKind(err, errors.KindEngineThrow) {
		t.Fatalf("update with bad input = %v, want engine_throw", err)
	}
	if host.TakeFault() == nil {
		t.Error("throw not recorded by the platform")
	}

	if _, err := inst.Call(ctx, "greet"); !errors.HasKind(err, errors.KindNotFound) {
		t.Errorf("unknown export = %v", err)
	}
	if _, err := inst.Call(ctx, engine.ExportAlloc); !errors.HasKind(err, errors.KindInvalidInput) {
		t.Errorf("alloc without size = %v", err)
	}
	if _, err := inst.Call(ctx, engine.ExportFree, engine.I32Arg(12345), engine.I32Arg(4)); !errors.HasKind(err, errors.KindTrap) {
		t.Errorf("bad free = %v", err)
	}
	inst.Close(ctx)
	if _, err := inst.Call(ctx, engine.ExportInit); !errors.HasKind(err, errors.KindClosed) {
		t.Errorf("call after close = %v", err)
	}
}

func TestSandbox_AllocationFailureIsSessionFatal(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, runtime.WithMemoryLimitPages(1))
	mod, err := rt.LoadNative(ctx, PullName)
	if err != nil {
		t.Fatal(err)
	}
	inst, err := mod.InstantiatePull(ctx, bridge.New(bridge.WithRandom(func() float32 { return 0.9 })))
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close(ctx)
	if err := inst.Init(ctx); err != nil {
		t.Fatal(err)
	}

	var last error
	for n := 0; n < 10000 && last == nil; n++ {
		_, last = inst.Update(ctx, 0, wire.TimeSample{Elapsed: float64(n), Delta: 1})
	}
	if !errors.IsSessionFatal(last) {
		t.Fatalf("error = %v, want an allocation failure once enemies fill the heap", last)
	}
}
