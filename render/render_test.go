package render

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/wire"
)

func TestTransform_Rect(t *testing.T) {
	tr := Transform{Height: 540}
	got := tr.Rect(wire.DrawCommand{Left: 10, Bottom: 20, Right: 50, Top: 60})
	want := Rect{X: 10, Y: 480, W: 40, H: 40}
	if got != want {
		t.Errorf("Rect = %+v, want %+v", got, want)
	}

	full := tr.Rect(wire.DrawCommand{Left: 0, Bottom: 0, Right: 960, Top: 540})
	if full != (Rect{X: 0, Y: 0, W: 960, H: 540}) {
		t.Errorf("full-screen rect = %+v", full)
	}
}

func TestChannel(t *testing.T) {
	tests := []struct {
		v    float64
		conv wire.Convention
		want uint8
	}{
		{0, wire.ChannelsByte, 0},
		{255, wire.ChannelsByte, 255},
		{12.9, wire.ChannelsByte, 12},
		{300, wire.ChannelsByte, 255},
		{-4, wire.ChannelsByte, 0},
		{0, wire.ChannelsUnit, 0},
		{1, wire.ChannelsUnit, 255},
		{0.5, wire.ChannelsUnit, 127},
		{0.999, wire.ChannelsUnit, 254},
		{2, wire.ChannelsUnit, 255},
		{math.NaN(), wire.ChannelsUnit, 0},
	}
	for _, tt := range tests {
		if got := Channel(tt.v, tt.conv); got != tt.want {
			t.Errorf("Channel(%g, %v) = %d, want %d", tt.v, tt.conv, got, tt.want)
		}
	}
}

func TestConsumer_Present(t *testing.T) {
	rec := NewRecorder(960, 540)
	c := NewConsumer(rec)

	frame := wire.Frame{
		Convention: wire.ChannelsByte,
		Commands: []wire.DrawCommand{
			{Left: 10, Top: 60, Right: 50, Bottom: 20, Red: 255},
			{Left: 0, Top: 540, Right: 960, Bottom: 0, Red: 12, Green: 34, Blue: 56},
		},
	}
	if err := c.Present(frame); err != nil {
		t.Fatalf("Present: %v", err)
	}

	want := []Op{
		{Clear: true},
		{Rect: Rect{X: 10, Y: 480, W: 40, H: 40}, Color: Color{R: 255}},
		{Rect: Rect{X: 0, Y: 0, W: 960, H: 540}, Color: Color{R: 12, G: 34, B: 56}},
	}
	if len(rec.Ops) != len(want) {
		t.Fatalf("ops = %+v", rec.Ops)
	}
	for i := range want {
		if rec.Ops[i] != want[i] {
			t.Errorf("op %d = %+v, want %+v", i, rec.Ops[i], want[i])
		}
	}
}

func TestConsumer_PresentEmptyClears(t *testing.T) {
	rec := NewRecorder(10, 10)
	if err := NewConsumer(rec).Present(wire.Frame{Convention: wire.ChannelsUnit}); err != nil {
		t.Fatal(err)
	}
	if len(rec.Ops) != 1 || !rec.Ops[0].Clear {
		t.Errorf("ops = %+v", rec.Ops)
	}
}

func TestConsumer_RejectsWholeFrame(t *testing.T) {
	rec := NewRecorder(960, 540)
	c := NewConsumer(rec)

	frame := wire.Frame{
		Convention: wire.ChannelsByte,
		Commands: []wire.DrawCommand{
			{Left: 10, Top: 60, Right: 50, Bottom: 20, Red: 255},
			{Left: 10, Top: 60, Right: 50, Bottom: 20, Red: 256},
		},
	}
	err := c.Present(frame)
	if errors.KindOf(err) != errors.KindDecode {
		t.Fatalf("expected decode error, got %v", err)
	}
	if !errors.IsFrameFatal(err) {
		t.Error("rejected frame should be frame fatal")
	}
	if len(rec.Ops) != 0 {
		t.Errorf("nothing should be drawn, got %+v", rec.Ops)
	}
}

func TestConsumer_WithHeight(t *testing.T) {
	rec := NewRecorder(100, 100)
	c := NewConsumer(rec, WithHeight(540))
	if c.Transform().Height != 540 {
		t.Errorf("Height = %g", c.Transform().Height)
	}
}

func TestQueue(t *testing.T) {
	q := NewQueue()
	cmd := wire.DrawCommand{Left: 10, Bottom: 20, Right: 50, Top: 60, Red: 1, Green: 0.5}

	if err := q.Draw(cmd); !errors.HasKind(err, errors.KindProtocol) {
		t.Errorf("Draw before Begin: %v", err)
	}
	if err := q.End(); !errors.HasKind(err, errors.KindProtocol) {
		t.Errorf("End before Begin: %v", err)
	}
	if _, ok, err := q.Drain(); ok || err != nil {
		t.Errorf("Drain without frame = %v, %v", ok, err)
	}

	if err := q.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := q.Begin(); !errors.HasKind(err, errors.KindProtocol) {
		t.Errorf("nested Begin: %v", err)
	}
	if err := q.Draw(cmd); err != nil {
		t.Fatal(err)
	}
	if err := q.End(); err != nil {
		t.Fatal(err)
	}
	frame, ok, err := q.Drain()
	if err != nil || !ok {
		t.Fatalf("Drain = %v, %v", ok, err)
	}
	if frame.Convention != wire.ChannelsUnit || len(frame.Commands) != 1 || frame.Commands[0] != cmd {
		t.Errorf("frame = %+v", frame)
	}
	if q.Len() != 0 {
		t.Error("Drain should reset the queue")
	}
}

func TestQueue_BeginDiscardsEarlierFrame(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 2; i++ {
		q.Begin()
		q.Draw(wire.DrawCommand{Right: float64(i + 1), Top: 1})
		q.End()
	}
	frame, _, _ := q.Drain()
	if len(frame.Commands) != 1 || frame.Commands[0].Right != 2 {
		t.Errorf("frame = %+v", frame)
	}
}

func TestQueue_Unterminated(t *testing.T) {
	q := NewQueue()
	q.Begin()
	q.Draw(wire.DrawCommand{})
	_, ok, err := q.Drain()
	if ok || !errors.HasKind(err, errors.KindProtocol) {
		t.Errorf("Drain = %v, %v", ok, err)
	}
	if _, ok, err := q.Drain(); ok || err != nil {
		t.Errorf("queue not reset after unterminated frame: %v, %v", ok, err)
	}
}

func TestRaster(t *testing.T) {
	r := NewRaster(960, 540)
	c := NewConsumer(r)
	frame := wire.Frame{
		Convention: wire.ChannelsUnit,
		Commands:   []wire.DrawCommand{{Left: 10, Bottom: 20, Right: 50, Top: 60, Red: 1, Green: 0.5}},
	}
	if err := c.Present(frame); err != nil {
		t.Fatal(err)
	}

	want := Color{R: 255, G: 127}
	if got := r.At(10, 480); got != want {
		t.Errorf("inside = %+v, want %+v", got, want)
	}
	if got := r.At(49, 519); got != want {
		t.Errorf("corner = %+v, want %+v", got, want)
	}
	if got := r.At(50, 480); got != (Color{}) {
		t.Errorf("right edge is exclusive, got %+v", got)
	}
	if got := r.At(10, 479); got != (Color{}) {
		t.Errorf("above rect = %+v", got)
	}

	// off-surface rectangles are clipped
	r.FillRect(Rect{X: -10, Y: -10, W: 5, H: 5}, Color{B: 255})
	r.FillRect(Rect{X: 950, Y: 530, W: 100, H: 100}, Color{B: 255})
	if got := r.At(959, 539); got != (Color{B: 255}) {
		t.Errorf("clipped fill = %+v", got)
	}

	var buf bytes.Buffer
	if err := r.WritePNG(&buf); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 960 || b.Dy() != 540 {
		t.Errorf("png bounds = %v", b)
	}
}
