package web

import (
	"fmt"

	"github.com/wippyai/wasm-frame-host/render"
)

type helloMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type frameMessage struct {
	Type  string `json:"type"`
	Seq   uint64 `json:"seq"`
	Rects []rect `json:"rects"`
}

type rect struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Color string  `json:"c"`
}

type clientMessage struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
	Down bool   `json:"down,omitempty"`
}

// frameSurface collects the rectangles of one frame.
type frameSurface struct {
	width, height int
	rects         []rect
}

func (f *frameSurface) Size() (int, int) { return f.width, f.height }
func (f *frameSurface) Clear()           { f.rects = f.rects[:0] }

func (f *frameSurface) FillRect(r render.Rect, c render.Color) {
	f.rects = append(f.rects, rect{
		X:     r.X,
		Y:     r.Y,
		W:     r.W,
		H:     r.H,
		Color: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B),
	})
}
