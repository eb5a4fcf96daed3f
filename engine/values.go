package engine

import "math"

// I32Arg encodes an i32 argument slot.
func I32Arg(v uint32) uint64 { return uint64(v) }

// F32Arg encodes an f32 argument slot.
func F32Arg(v float32) uint64 { return uint64(math.Float32bits(v)) }

// I32Result decodes an i32 result slot.
func I32Result(v uint64) uint32 { return uint32(v) }

// F32Result decodes an f32 result slot.
func F32Result(v uint64) float32 { return math.Float32frombits(uint32(v)) }
