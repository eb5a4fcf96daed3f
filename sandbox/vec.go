package sandbox

import "math"

type vec2 struct{ x, y float32 }

func (v vec2) add(o vec2) vec2      { return vec2{v.x + o.x, v.y + o.y} }
func (v vec2) sub(o vec2) vec2      { return vec2{v.x - o.x, v.y - o.y} }
func (v vec2) scale(s float32) vec2 { return vec2{v.x * s, v.y * s} }
func (v vec2) length() float32      { return float32(math.Hypot(float64(v.x), float64(v.y))) }

func (v vec2) normalize() vec2 {
	l := v.length()
	if l == 0 {
		return vec2{}
	}
	return v.scale(1 / l)
}

// pulse oscillates between lo and hi as t advances.
func pulse(lo, hi, t float32) float32 {
	v := (float32(math.Sin(float64(t))) + 1) / 2
	return lo + v*(hi-lo)
}
