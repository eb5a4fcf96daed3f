package render

import (
	"math"

	"github.com/wippyai/wasm-frame-host/wire"
)

// Rect is a rectangle in surface space, origin top-left, y down.
type Rect struct {
	X, Y, W, H float64
}

// Color is a surface colour.
type Color struct {
	R, G, B uint8
}

// Transform maps engine space to a surface of fixed height.
type Transform struct {
	Height float64
}

// Rect converts the geometry of a command.
func (t Transform) Rect(c wire.DrawCommand) Rect {
	return Rect{
		X: c.Left,
		Y: t.Height - c.Top,
		W: c.Right - c.Left,
		H: c.Top - c.Bottom,
	}
}

// Color converts the channels of a command.
func (t Transform) Color(c wire.DrawCommand, conv wire.Convention) Color {
	return Color{
		R: Channel(c.Red, conv),
		G: Channel(c.Green, conv),
		B: Channel(c.Blue, conv),
	}
}

// Channel converts one channel value to a byte.
func Channel(v float64, conv wire.Convention) uint8 {
	if conv == wire.ChannelsUnit {
		v *= 255
	}
	v = math.Floor(v)
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}
