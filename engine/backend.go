package engine

import (
	"context"

	framehost "github.com/wippyai/wasm-frame-host"
)

// ValueType is a core wasm value type as seen across the frame ABI.
type ValueType byte

const (
	I32 ValueType = iota + 1
	I64
	F32
	F64
)

func (v ValueType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return "unknown"
	}
}

// Signature is a function type.
type Signature struct {
	Params  []ValueType
	Results []ValueType
}

// Equal reports whether two signatures have identical params and results.
func (s Signature) Equal(o Signature) bool {
	return equalTypes(s.Params, o.Params) && equalTypes(s.Results, o.Results)
}

func (s Signature) String() string {
	return "(" + typeList(s.Params) + ") -> (" + typeList(s.Results) + ")"
}

func equalTypes(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeList(ts []ValueType) string {
	s := ""
	for i, t := range ts {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s
}

// Import names a function the module expects the host to provide.
type Import struct {
	Module string
	Name   string
	Sig    Signature
}

// ModuleDesc describes the exports and imports of a compiled module.
type ModuleDesc struct {
	Exports   map[string]Signature
	Imports   []Import
	HasMemory bool
}

// Host receives the calls an engine makes into the platform during init
// and update. Text arrives as raw bytes copied out of engine memory.
// Rectangles are given by their engine-space corners with unit colour
// channels.
//
// A non-nil error aborts the engine call in progress.
type Host interface {
	Random() float32
	Log(msg []byte)
	Alert(msg []byte)
	Throw(msg []byte) error
	StartFrame() error
	EndFrame() error
	DrawRectangle(minX, minY, maxX, maxY, red, green, blue float32) error
}

// Backend compiles modules for one execution engine.
type Backend interface {
	Name() string
	Compile(ctx context.Context, src []byte) (Compiled, error)
	Close(ctx context.Context) error
}

// Compiled is a module ready to be instantiated any number of times. Its
// resources belong to the backend that compiled it.
type Compiled interface {
	Describe() ModuleDesc
	Instantiate(ctx context.Context, host Host) (Instance, error)
}

// Instance is one running engine. Arguments and results are raw 64-bit
// slots; use I32Arg/F32Arg to build them. Instances are not safe for
// concurrent use.
type Instance interface {
	Memory() framehost.Memory
	Call(ctx context.Context, name string, args ...uint64) ([]uint64, error)
	Close(ctx context.Context) error
}
