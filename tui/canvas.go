package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-frame-host/render"
)

const halfBlock = "▀"

// Canvas is a render.Surface drawn into terminal cells. Drawing happens in
// world units of width x height and is scaled to the cell grid.
type Canvas struct {
	width, height int
	cols, rows    int
	pixels        []render.Color // cols x rows*2, row major
	background    render.Color
}

// NewCanvas creates a canvas for a world of the given size. It has no
// cells until Resize is called.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{width: width, height: height}
}

// Size returns the world size.
func (c *Canvas) Size() (int, int) { return c.width, c.height }

// Grid returns the cell grid size.
func (c *Canvas) Grid() (cols, rows int) { return c.cols, c.rows }

// Resize sets the cell grid. The content is cleared.
func (c *Canvas) Resize(cols, rows int) {
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	c.cols, c.rows = cols, rows
	c.pixels = make([]render.Color, cols*rows*2)
	c.Clear()
}

// Clear fills every pixel with the background.
func (c *Canvas) Clear() {
	for i := range c.pixels {
		c.pixels[i] = c.background
	}
}

// FillRect fills r, scaled to the grid. Anything inside the world covers
// at least one pixel.
func (c *Canvas) FillRect(r render.Rect, col render.Color) {
	if c.cols == 0 || c.rows == 0 || c.width <= 0 || c.height <= 0 {
		return
	}
	sx := float64(c.cols) / float64(c.width)
	sy := float64(c.rows*2) / float64(c.height)

	x0, x1 := span(r.X, r.W, sx, c.cols)
	y0, y1 := span(r.Y, r.H, sy, c.rows*2)
	for y := y0; y < y1; y++ {
		row := c.pixels[y*c.cols : (y+1)*c.cols]
		for x := x0; x < x1; x++ {
			row[x] = col
		}
	}
}

// span scales [pos, pos+size) and clamps it to [0, limit).
func span(pos, size, scale float64, limit int) (int, int) {
	lo := int(math.Floor(pos * scale))
	hi := int(math.Ceil((pos + size) * scale))
	if hi <= lo {
		hi = lo + 1
	}
	if lo < 0 {
		lo = 0
	}
	if hi > limit {
		hi = limit
	}
	if lo >= hi {
		return 0, 0
	}
	return lo, hi
}

// Pixel returns the colour at pixel (x, y) of the grid.
func (c *Canvas) Pixel(x, y int) render.Color {
	if x < 0 || y < 0 || x >= c.cols || y >= c.rows*2 {
		return c.background
	}
	return c.pixels[y*c.cols+x]
}

// Render draws the grid as styled text, one line per cell row. Runs of
// cells with equal colours share one style.
func (c *Canvas) Render() string {
	var b strings.Builder
	for r := 0; r < c.rows; r++ {
		top := c.pixels[2*r*c.cols : (2*r+1)*c.cols]
		bottom := c.pixels[(2*r+1)*c.cols : (2*r+2)*c.cols]
		for x := 0; x < c.cols; {
			n := 1
			for x+n < c.cols && top[x+n] == top[x] && bottom[x+n] == bottom[x] {
				n++
			}
			style := lipgloss.NewStyle().
				Foreground(hex(top[x])).
				Background(hex(bottom[x]))
			b.WriteString(style.Render(strings.Repeat(halfBlock, n)))
			x += n
		}
		if r < c.rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func hex(c render.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

var _ render.Surface = (*Canvas)(nil)
