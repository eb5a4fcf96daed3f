package driver

import (
	"context"
	"testing"
	"time"

	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/input"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/wire"
)

type fakeSource struct {
	inits   int
	samples []wire.TimeSample
	inputs  []wire.InputState
	initErr error
	failAt  int // 1-based frame that fails; 0 never
	failErr error
	empty   bool
}

func (s *fakeSource) Init(context.Context) error {
	s.inits++
	return s.initErr
}

func (s *fakeSource) Frame(_ context.Context, in wire.InputState, t wire.TimeSample) (wire.Frame, bool, error) {
	s.samples = append(s.samples, t)
	s.inputs = append(s.inputs, in)
	if s.failAt == len(s.samples) {
		return wire.Frame{}, false, s.failErr
	}
	if s.empty {
		return wire.Frame{}, false, nil
	}
	return wire.Frame{
		Convention: wire.ChannelsByte,
		Commands:   []wire.DrawCommand{{Left: 10, Top: 60, Right: 50, Bottom: 20, Red: 255}},
	}, true, nil
}

func newDriver(src *fakeSource, latch *input.Latch) (*Driver, *ManualClock, *render.Recorder) {
	clock := NewManualClock(time.Unix(1000, 0))
	rec := render.NewRecorder(960, 540)
	d := New(src, render.NewConsumer(rec), latch, WithClock(clock))
	return d, clock, rec
}

func TestDriver_TimeSamples(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	d, clock, rec := newDriver(src, nil)

	if err := d.Step(ctx); !errors.HasKind(err, errors.KindNotInitialized) {
		t.Fatalf("Step before Start = %v, want not_initialized", err)
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if src.inits != 1 {
		t.Fatalf("inits = %d, want 1", src.inits)
	}

	steps := []time.Duration{100 * time.Millisecond, 16 * time.Millisecond, 0, -50 * time.Millisecond, 20 * time.Millisecond}
	for _, dt := range steps {
		clock.Advance(dt)
		if err := d.Step(ctx); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	first := src.samples[0]
	if first.Elapsed != 0.1 || first.Delta != 0.1 {
		t.Errorf("first sample = %+v, want delta measured from start", first)
	}
	for i, s := range src.samples {
		if s.Delta < 0 {
			t.Errorf("sample %d delta = %v", i, s.Delta)
		}
		if i > 0 && s.Elapsed < src.samples[i-1].Elapsed {
			t.Errorf("sample %d elapsed went back: %v < %v", i, s.Elapsed, src.samples[i-1].Elapsed)
		}
	}
	if src.samples[3].Delta != 0 {
		t.Errorf("delta after clock went back = %v, want 0", src.samples[3].Delta)
	}
	if got := d.Stats().Frames; got != uint64(len(steps)) {
		t.Errorf("Frames = %d, want %d", got, len(steps))
	}
	clears := 0
	for _, op := range rec.Ops {
		if op.Clear {
			clears++
		}
	}
	if clears != len(steps) {
		t.Errorf("presented %d frames, want %d", clears, len(steps))
	}
	if got := len(rec.Fills()); got != 1 {
		t.Errorf("fills after last clear = %d, want 1", got)
	}
}

func TestDriver_InputSnapshotPerFrame(t *testing.T) {
	ctx := context.Background()
	var latch input.Latch
	src := &fakeSource{}
	d, _, _ := newDriver(src, &latch)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	latch.Press(wire.Up)
	d.Step(ctx)
	latch.Release(wire.Up)
	latch.Press(wire.ShootRight)
	d.Step(ctx)

	if !src.inputs[0].Has(wire.Up) || src.inputs[0].Has(wire.ShootRight) {
		t.Errorf("frame 0 input = %v", src.inputs[0])
	}
	if src.inputs[1].Has(wire.Up) || !src.inputs[1].Has(wire.ShootRight) {
		t.Errorf("frame 1 input = %v", src.inputs[1])
	}
}

func TestDriver_NilLatchInput(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	var latch *input.Latch
	d := New(src, render.NewConsumer(render.NewRecorder(960, 540)), latch,
		WithClock(NewManualClock(time.Unix(1000, 0))))
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if len(src.inputs) != 1 || src.inputs[0] != 0 {
		t.Errorf("inputs = %v, want one empty snapshot", src.inputs)
	}
}

func TestDriver_HaltsOnFatalError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"throw", errors.EngineThrow(errors.PhaseBridge, "assertion failed")},
		{"decode", errors.Decode(errors.PhaseDecode, []string{"frame"}, "bad", nil)},
		{"allocation", errors.AllocationFailed(64, nil)},
		{"trap", errors.Trap(errors.PhaseUpdate, "update", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			src := &fakeSource{failAt: 2, failErr: tt.err}
			d, _, _ := newDriver(src, nil)
			if err := d.Start(ctx); err != nil {
				t.Fatalf("Start: %v", err)
			}
			if err := d.Step(ctx); err != nil {
				t.Fatalf("frame 1: %v", err)
			}
			err := d.Step(ctx)
			if !errors.HasKind(err, errors.KindHalted) || !errors.HasKind(err, errors.KindOf(tt.err)) {
				t.Fatalf("frame 2 error = %v, want halted by %v", err, tt.err)
			}
			if d.State() != StateHalted {
				t.Fatalf("state = %v, want halted", d.State())
			}

			err = d.Step(ctx)
			if !errors.HasKind(err, errors.KindHalted) {
				t.Fatalf("Step after halt = %v", err)
			}
			if len(src.samples) != 2 {
				t.Errorf("engine called %d times, want 2", len(src.samples))
			}
			if d.Stats().Err != tt.err {
				t.Errorf("Stats().Err = %v", d.Stats().Err)
			}
		})
	}
}

func TestDriver_RejectedFrameHalts(t *testing.T) {
	ctx := context.Background()
	src := &badFrameSource{}
	rec := render.NewRecorder(960, 540)
	d := New(src, render.NewConsumer(rec), nil, WithClock(NewManualClock(time.Unix(0, 0))))
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Step(ctx); !errors.HasKind(err, errors.KindDecode) {
		t.Fatalf("Step = %v, want decode", err)
	}
	if len(rec.Ops) != 0 {
		t.Errorf("surface touched: %+v", rec.Ops)
	}
}

type badFrameSource struct{}

func (badFrameSource) Init(context.Context) error { return nil }

func (badFrameSource) Frame(context.Context, wire.InputState, wire.TimeSample) (wire.Frame, bool, error) {
	return wire.Frame{
		Convention: wire.ChannelsByte,
		Commands:   []wire.DrawCommand{{Left: 50, Right: 10, Top: 60, Bottom: 20}},
	}, true, nil
}

func TestDriver_InitFailureHalts(t *testing.T) {
	src := &fakeSource{initErr: errors.EngineThrow(errors.PhaseBridge, "no")}
	d, _, _ := newDriver(src, nil)
	if err := d.Start(context.Background()); !errors.HasKind(err, errors.KindHalted) {
		t.Fatalf("Start = %v, want halted", err)
	}
	if d.State() != StateHalted {
		t.Errorf("state = %v", d.State())
	}
}

func TestDriver_EmptyFrame(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{empty: true}
	d, _, rec := newDriver(src, nil)
	d.Start(ctx)
	if err := d.Step(ctx); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if d.Stats().Empty != 1 || len(rec.Ops) != 0 {
		t.Errorf("Empty = %d, ops = %d", d.Stats().Empty, len(rec.Ops))
	}
}

func TestDriver_RunStopsOnQuit(t *testing.T) {
	var latch input.Latch
	src := &fakeSource{}
	var frames int
	d := New(src, render.NewConsumer(render.NewRecorder(960, 540)), &latch,
		WithFrameHook(func(s Stats) {
			frames++
			if s.Frames == 3 {
				latch.Press(wire.Quit)
			}
		}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Run(ctx, 200); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.State() != StateStopped {
		t.Errorf("state = %v, want stopped", d.State())
	}
	if frames != 4 {
		t.Errorf("frames = %d, want 4", frames)
	}
}

func TestDriver_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{}
	d := New(src, render.NewConsumer(render.NewRecorder(960, 540)), nil, WithQuitOnFlag(false))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx, 1000); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if d.State() != StateStopped {
		t.Errorf("state = %v, want stopped", d.State())
	}
	if err := d.Step(ctx); !errors.HasKind(err, errors.KindClosed) {
		t.Errorf("Step after stop = %v", err)
	}
}

func TestDriver_RunReturnsHalt(t *testing.T) {
	src := &fakeSource{failAt: 1, failErr: errors.Protocol(errors.PhaseUpdate, "unterminated frame")}
	d := New(src, render.NewConsumer(render.NewRecorder(960, 540)), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.Run(ctx, 200)
	if !errors.HasKind(err, errors.KindProtocol) {
		t.Fatalf("Run = %v, want protocol halt", err)
	}
}
