package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
)

// Raster is a Surface backed by an RGBA image.
type Raster struct {
	img        *image.RGBA
	background color.RGBA
}

// NewRaster creates a raster cleared to black.
func NewRaster(width, height int) *Raster {
	r := &Raster{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		background: color.RGBA{A: 255},
	}
	r.Clear()
	return r
}

func (r *Raster) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

func (r *Raster) Clear() {
	draw.Draw(r.img, r.img.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
}

// FillRect fills the pixels covered by rect, clipped to the image.
func (r *Raster) FillRect(rect Rect, c Color) {
	area := image.Rect(
		int(math.Round(rect.X)),
		int(math.Round(rect.Y)),
		int(math.Round(rect.X+rect.W)),
		int(math.Round(rect.Y+rect.H)),
	).Intersect(r.img.Bounds())
	if area.Empty() {
		return
	}
	fill := color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
	draw.Draw(r.img, area, image.NewUniform(fill), image.Point{}, draw.Src)
}

// At returns the colour of one pixel.
func (r *Raster) At(x, y int) Color {
	c := r.img.RGBAAt(x, y)
	return Color{R: c.R, G: c.G, B: c.B}
}

// Image returns the backing image.
func (r *Raster) Image() *image.RGBA { return r.img }

// WritePNG encodes the current image as PNG.
func (r *Raster) WritePNG(w io.Writer) error {
	return png.Encode(w, r.img)
}
