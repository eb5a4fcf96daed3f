package bridge

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/render"
)

func TestPlatform_Random(t *testing.T) {
	a, b := New(WithSeed(42)), New(WithSeed(42))
	for i := 0; i < 1000; i++ {
		x, y := a.Random(), b.Random()
		if x != y {
			t.Fatalf("seeded sources diverged at %d", i)
		}
		if x < 0 || x >= 1 {
			t.Fatalf("Random = %g outside [0, 1)", x)
		}
	}

	clamped := New(WithRandom(func() float32 { return 1 }))
	if v := clamped.Random(); v != 0 {
		t.Errorf("out-of-range source should yield 0, got %g", v)
	}
}

func TestPlatform_LogNeverFails(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := New(WithLogger(zap.New(core)))

	p.Log([]byte("hello"))
	p.Log([]byte{0xff, 'o', 'k'})
	p.Log([]byte("e\u0301"))

	if p.Logs() != 3 {
		t.Errorf("Logs = %d", p.Logs())
	}
	entries := logs.AllUntimed()
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	if got := entries[1].ContextMap()["msg"]; got != "\uFFFDok" {
		t.Errorf("invalid UTF-8 not replaced: %q", got)
	}
	if got := entries[2].ContextMap()["msg"]; got != "\u00e9" {
		t.Errorf("text not NFC-normalized: %q", got)
	}
}

func TestPlatform_Alert(t *testing.T) {
	var shown []string
	p := New(WithAlerter(AlertFunc(func(msg string) { shown = append(shown, msg) })))
	p.Alert([]byte("game over"))
	if len(shown) != 1 || shown[0] != "game over" {
		t.Errorf("shown = %q", shown)
	}

	// no alerter configured
	New().Alert([]byte("ignored"))
}

func TestPlatform_Throw(t *testing.T) {
	p := New()
	err := p.Throw([]byte("panicked at _ZN4game6update17h0123456789abcdefE: oops"))
	if !errors.HasKind(err, errors.KindEngineThrow) {
		t.Fatalf("expected engine_throw, got %v", err)
	}
	fault := p.TakeFault()
	if fault != err {
		t.Errorf("TakeFault = %v, want the thrown error", fault)
	}
	e, ok := fault.(*errors.Error)
	if !ok {
		t.Fatalf("fault type %T", fault)
	}
	if e.Detail != "panicked at game::update: oops" {
		t.Errorf("Detail = %q", e.Detail)
	}
	if p.TakeFault() != nil {
		t.Error("TakeFault should clear the fault")
	}
}

func TestPlatform_FirstFaultWins(t *testing.T) {
	p := New()
	first := p.Throw([]byte("first"))
	p.Throw([]byte("second"))
	if p.TakeFault() != first {
		t.Error("first fault should be kept")
	}
}

func TestPlatform_PushDrawing(t *testing.T) {
	p := New()
	q := render.NewQueue()
	p.Bind(q)

	if err := p.StartFrame(); err != nil {
		t.Fatal(err)
	}
	if err := p.DrawRectangle(10, 20, 50, 60, 1, 0.5, 0); err != nil {
		t.Fatal(err)
	}
	if err := p.EndFrame(); err != nil {
		t.Fatal(err)
	}
	p.Unbind()

	frame, ok, err := q.Drain()
	if err != nil || !ok {
		t.Fatalf("Drain = %v, %v", ok, err)
	}
	cmd := frame.Commands[0]
	if cmd.Left != 10 || cmd.Bottom != 20 || cmd.Right != 50 || cmd.Top != 60 {
		t.Errorf("geometry = %+v", cmd)
	}
	if cmd.Red != 1 || cmd.Green != 0.5 || cmd.Blue != 0 {
		t.Errorf("colour = %+v", cmd)
	}

	rect := render.Transform{Height: 540}.Rect(cmd)
	if rect != (render.Rect{X: 10, Y: 480, W: 40, H: 40}) {
		t.Errorf("surface rect = %+v", rect)
	}
	if p.TakeFault() != nil {
		t.Error("no fault expected")
	}
}

func TestPlatform_DrawingUnbound(t *testing.T) {
	tests := []struct {
		name string
		call func(p *Platform) error
	}{
		{"start_frame", func(p *Platform) error { return p.StartFrame() }},
		{"end_frame", func(p *Platform) error { return p.EndFrame() }},
		{"draw_rectangle", func(p *Platform) error { return p.DrawRectangle(0, 0, 1, 1, 0, 0, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			err := tt.call(p)
			if !errors.HasKind(err, errors.KindModeConflict) {
				t.Errorf("expected mode_conflict, got %v", err)
			}
			if p.TakeFault() != err {
				t.Error("fault not recorded")
			}
		})
	}
}

func TestPlatform_ProtocolFaultRecorded(t *testing.T) {
	p := New()
	p.Bind(render.NewQueue())
	err := p.DrawRectangle(0, 0, 1, 1, 0, 0, 0)
	if !errors.HasKind(err, errors.KindProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if p.TakeFault() != err {
		t.Error("fault not recorded")
	}
}
