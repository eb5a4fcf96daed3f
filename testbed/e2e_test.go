package testbed

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/wippyai/wasm-frame-host/bridge"
	"github.com/wippyai/wasm-frame-host/driver"
	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/input"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/runtime"
	"github.com/wippyai/wasm-frame-host/sandbox"
	"github.com/wippyai/wasm-frame-host/wire"
)

var backends = []string{engine.WazeroName, engine.WasmtimeName}

func newRuntime(t *testing.T, backend string) *runtime.Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := runtime.New(ctx, runtime.WithBackend(backend))
	if err != nil {
		t.Fatalf("create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

// runFrames drives src for n frames of 100ms with in held and presents on
// a raster the size of the sandbox world.
func runFrames(t *testing.T, src driver.FrameSource, in wire.InputState, n int) (*render.Raster, driver.Stats) {
	t.Helper()
	ctx := context.Background()

	var latch input.Latch
	latch.Store(in)
	clock := driver.NewManualClock(time.Unix(0, 0))
	raster := render.NewRaster(sandbox.WorldWidth, sandbox.WorldHeight)
	d := driver.New(src, render.NewConsumer(raster), &latch,
		driver.WithClock(clock),
		driver.WithQuitOnFlag(false))

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 0; i < n; i++ {
		clock.Advance(100 * time.Millisecond)
		if err := d.Step(ctx); err != nil {
			t.Fatalf("frame %d: %v", i+1, err)
		}
	}
	return raster, d.Stats()
}

func TestEndToEnd_PullFixture(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			rt := newRuntime(t, backend)

			mod, err := rt.LoadWASM(ctx, Compile(t, Pull()))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			inst, err := mod.InstantiatePull(ctx, nil)
			if err != nil {
				t.Fatalf("instantiate: %v", err)
			}
			defer inst.Close(ctx)

			raster, stats := runFrames(t, inst, wire.InputState(0).With(wire.Up, true), 3)
			if stats.Frames != 3 || stats.Empty != 0 {
				t.Fatalf("stats = %+v, want 3 drawn frames", stats)
			}

			// (10,20)-(50,60) engine-up lands at (10,480) 40x40.
			red := render.Color{R: 255}
			for _, p := range []struct{ x, y int }{{10, 480}, {49, 519}, {30, 500}} {
				if got := raster.At(p.x, p.y); got != red {
					t.Errorf("At(%d,%d) = %v, want red", p.x, p.y, got)
				}
			}
			for _, p := range []struct{ x, y int }{{9, 480}, {10, 479}, {50, 500}, {30, 520}} {
				if got := raster.At(p.x, p.y); got != (render.Color{}) {
					t.Errorf("At(%d,%d) = %v, want background", p.x, p.y, got)
				}
			}
		})
	}
}

func TestEndToEnd_PullReserialization(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, engine.WazeroName)

	mod, err := rt.LoadWASM(ctx, Compile(t, Pull()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inst, err := mod.InstantiatePull(ctx, nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	frame, err := inst.Update(ctx, wire.InputState(0), wire.TimeSample{Elapsed: 0, Delta: 0.1})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	data, err := wire.EncodeFrame(frame)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	goldie.New(t).Assert(t, "pull_frame", data)
}

func TestEndToEnd_PushFixtureMatchesPullGeometry(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			rt := newRuntime(t, backend)

			mod, err := rt.LoadWASM(ctx, Compile(t, Push()))
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			inst, err := mod.InstantiatePush(ctx, nil)
			if err != nil {
				t.Fatalf("instantiate: %v", err)
			}
			defer inst.Close(ctx)

			raster, _ := runFrames(t, inst, 0, 2)
			// Push colours are unit range: (1, 0.5, 0) -> (255, 127, 0).
			want := render.Color{R: 255, G: 127}
			if got := raster.At(10, 480); got != want {
				t.Fatalf("At(10,480) = %v, want %v", got, want)
			}
			if got := raster.At(50, 480); got != (render.Color{}) {
				t.Fatalf("At(50,480) = %v, want background", got)
			}
		})
	}
}

// The sandbox arena: up_key held, elapsed 0, delta 0.1 must draw at least
// one command, and its frame must survive re-serialization unchanged.
func TestEndToEnd_SandboxScenario(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, engine.WazeroName)

	mod, err := rt.LoadNative(ctx, sandbox.PullName)
	if err != nil {
		t.Fatalf("load native: %v", err)
	}
	inst, err := mod.InstantiatePull(ctx, bridge.New(bridge.WithSeed(1)))
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	defer inst.Close(ctx)
	if err := inst.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	up := wire.InputState(0).With(wire.Up, true)
	frame, err := inst.Update(ctx, up, wire.TimeSample{Elapsed: 0, Delta: 0.1})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(frame.Commands) < 1 {
		t.Fatal("frame has no draw commands")
	}

	first, err := wire.EncodeFrame(frame)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := wire.DecodeFrame(first, wire.ChannelsByte)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := wire.EncodeFrame(decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("re-serialization changed the frame:\n%s\n%s", first, second)
	}
}

func TestEndToEnd_SandboxPullAndPushAgree(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, engine.WazeroName)
	in := wire.InputState(0).With(wire.Right, true)

	pullMod, err := rt.LoadNative(ctx, sandbox.PullName)
	if err != nil {
		t.Fatalf("load pull: %v", err)
	}
	pull, err := pullMod.InstantiatePull(ctx, bridge.New(bridge.WithSeed(9)))
	if err != nil {
		t.Fatalf("instantiate pull: %v", err)
	}
	defer pull.Close(ctx)

	pushMod, err := rt.LoadNative(ctx, sandbox.PushName)
	if err != nil {
		t.Fatalf("load push: %v", err)
	}
	push, err := pushMod.InstantiatePush(ctx, bridge.New(bridge.WithSeed(9)))
	if err != nil {
		t.Fatalf("instantiate push: %v", err)
	}
	defer push.Close(ctx)

	pullRaster, _ := runFrames(t, pull, in, 20)
	pushRaster, _ := runFrames(t, push, in, 20)

	// Pull channels are floor(c*255) bytes and push channels are unit floats
	// of the same colours, so both surfaces must match pixel for pixel.
	if !bytes.Equal(pullRaster.Image().Pix, pushRaster.Image().Pix) {
		t.Fatal("pull and push renderings differ")
	}
}
