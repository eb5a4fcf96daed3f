// Package testbed holds WAT engine fixtures shared by tests across the
// module, plus end-to-end tests that drive them through every layer.
package testbed

import (
	"fmt"
	"strings"
	"testing"

	"github.com/bytecodealliance/wasmtime-go"
)

// FrameJSON is the frame every Pull fixture returns from update.
const FrameJSON = `[{"left":10,"top":60,"right":50,"bottom":20,"red":255,"green":0,"blue":0}]`

// ThrowMessage is the text the Throw fixture passes to throw.
const ThrowMessage = "panicked at _ZN4game5arena6update17h0123456789abcdefE: index out of bounds"

// ReadyMessage is logged by fixtures from init.
const ReadyMessage = "engine ready"

// Compile converts WAT text to a wasm binary, failing the test on error.
func Compile(tb testing.TB, wat string) []byte {
	tb.Helper()
	bin, err := wasmtime.Wat2Wasm(wat)
	if err != nil {
		tb.Fatalf("wat2wasm: %v", err)
	}
	return bin
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// bump is a bump allocator over memory that grows one page at a time and
// returns 0 when growth is refused. free only counts calls.
const bump = `
  (global $heap (mut i32) (i32.const 4096))
  (global $allocs (mut i32) (i32.const 0))
  (global $frees (mut i32) (i32.const 0))
  (func $alloc (export "%[1]s") (param $size i32) (result i32)
    (local $ptr i32) (local $end i32)
    global.get $heap
    local.set $ptr
    local.get $ptr
    local.get $size
    i32.add
    i32.const 7
    i32.add
    i32.const -8
    i32.and
    local.set $end
    (block $fits
      (loop $grow
        local.get $end
        memory.size
        i32.const 65536
        i32.mul
        i32.le_u
        br_if $fits
        i32.const 1
        memory.grow
        i32.const -1
        i32.eq
        if
          i32.const 0
          return
        end
        br $grow))
    local.get $end
    global.set $heap
    global.get $allocs
    i32.const 1
    i32.add
    global.set $allocs
    local.get $ptr)
  (func (export "%[2]s") (param i32 i32)
    global.get $frees
    i32.const 1
    i32.add
    global.set $frees)
  (func (export "allocs") (result i32) global.get $allocs)
  (func (export "frees") (result i32) global.get $frees)
`

func allocator(allocName, freeName string) string {
	return fmt.Sprintf(bump, allocName, freeName)
}

// Pull is a pull-mode engine: init logs ReadyMessage, update returns
// FrameJSON in a freshly allocated buffer through the host's return slot.
// The export "frames" counts update calls.
func Pull() string {
	return fmt.Sprintf(`(module
  (import "platform" "log" (func $log (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 1024) "%[1]s")
  (data (i32.const 2048) "%[3]s")
  (global $frames (mut i32) (i32.const 0))
  %[5]s
  (func (export "init")
    i32.const 2048
    i32.const %[4]d
    call $log)
  (func (export "update") (param $ret i32) (param $ptr i32) (param $len i32) (param $elapsed f32) (param $delta f32)
    (local $out i32)
    i32.const %[2]d
    call $alloc
    local.set $out
    local.get $out
    i32.const 1024
    i32.const %[2]d
    memory.copy
    local.get $ret
    local.get $out
    i32.store
    local.get $ret
    i32.const %[2]d
    i32.store offset=4
    global.get $frames
    i32.const 1
    i32.add
    global.set $frames)
  (func (export "frames") (result i32) global.get $frames)
)`, escape(FrameJSON), len(FrameJSON), ReadyMessage, len(ReadyMessage), allocator("alloc", "free"))
}

// Echo is a pull-mode engine using wasm-bindgen export names: update
// copies its input into a new buffer and returns it through the return
// slot at address 8.
func Echo() string {
	return fmt.Sprintf(`(module
  (memory (export "memory") 1)
  %s
  (func (export "__wbindgen_global_argument_ptr") (result i32) i32.const 8)
  (func (export "init"))
  (func (export "update") (param $ret i32) (param $ptr i32) (param $len i32) (param $elapsed f32) (param $delta f32)
    (local $out i32)
    local.get $len
    call $alloc
    local.set $out
    local.get $out
    local.get $ptr
    local.get $len
    memory.copy
    local.get $ret
    local.get $out
    i32.store
    local.get $ret
    local.get $len
    i32.store offset=4)
)`, allocator("__wbindgen_malloc", "__wbindgen_free"))
}

// Throw is a pull-mode engine whose update raises ThrowMessage through
// __wbindgen_throw.
func Throw() string {
	return fmt.Sprintf(`(module
  (import "platform" "__wbindgen_throw" (func $throw (param i32 i32)))
  (memory (export "memory") 1)
  (data (i32.const 1024) "%s")
  %s
  (func (export "init"))
  (func (export "update") (param i32 i32 i32 f32 f32)
    i32.const 1024
    i32.const %d
    call $throw
    unreachable)
)`, escape(ThrowMessage), allocator("alloc", "free"), len(ThrowMessage))
}

// Trap is a pull-mode engine whose update traps without throwing.
func Trap() string {
	return fmt.Sprintf(`(module
  (memory (export "memory") 1)
  %s
  (func (export "init"))
  (func (export "update") (param i32 i32 i32 f32 f32)
    unreachable)
)`, allocator("alloc", "free"))
}

// Garbage is a pull-mode engine whose update returns text that is not a
// frame.
func Garbage() string {
	const junk = `{"not":"a frame"`
	return fmt.Sprintf(`(module
  (memory (export "memory") 1)
  (data (i32.const 1024) "%[1]s")
  %[3]s
  (func (export "init"))
  (func (export "update") (param $ret i32) (param i32 i32 f32 f32)
    (local $out i32)
    i32.const %[2]d
    call $alloc
    local.set $out
    local.get $out
    i32.const 1024
    i32.const %[2]d
    memory.copy
    local.get $ret
    local.get $out
    i32.store
    local.get $ret
    i32.const %[2]d
    i32.store offset=4)
)`, escape(junk), len(junk), allocator("alloc", "free"))
}

// Push is a push-mode engine: update draws one rectangle
// (10, 20, 50, 60) coloured (1, 0.5, 0) between start_frame and end_frame.
func Push() string {
	return fmt.Sprintf(`(module
  (import "platform" "start_frame" (func $start))
  (import "platform" "end_frame" (func $end))
  (import "platform" "draw_rectangle" (func $rect (param f32 f32 f32 f32 f32 f32 f32)))
  (import "platform" "random" (func $random (result f32)))
  (memory (export "memory") 1)
  %s
  (func (export "init"))
  (func (export "update") (param i32 i32 f32 f32)
    call $start
    f32.const 10
    f32.const 20
    f32.const 50
    f32.const 60
    f32.const 1
    f32.const 0.5
    f32.const 0
    call $rect
    call $end)
)`, allocator("alloc", "free"))
}

// PushUnterminated is a push-mode engine whose update never calls
// end_frame.
func PushUnterminated() string {
	return fmt.Sprintf(`(module
  (import "platform" "start_frame" (func $start))
  (import "platform" "end_frame" (func $end))
  (import "platform" "draw_rectangle" (func $rect (param f32 f32 f32 f32 f32 f32 f32)))
  (memory (export "memory") 1)
  %s
  (func (export "init"))
  (func (export "update") (param i32 i32 f32 f32)
    call $start)
)`, allocator("alloc", "free"))
}

// Conflict has a pull-shaped update but imports push primitives.
func Conflict() string {
	return fmt.Sprintf(`(module
  (import "platform" "draw_rectangle" (func $rect (param f32 f32 f32 f32 f32 f32 f32)))
  (memory (export "memory") 1)
  %s
  (func (export "init"))
  (func (export "update") (param i32 i32 i32 f32 f32))
)`, allocator("alloc", "free"))
}

// NoAlloc lacks the allocation exports.
const NoAlloc = `(module
  (memory (export "memory") 1)
  (func (export "init"))
  (func (export "update") (param i32 i32 i32 f32 f32))
)`

// BadUpdate exports update with a shape that matches neither mode.
func BadUpdate() string {
	return fmt.Sprintf(`(module
  (memory (export "memory") 1)
  %s
  (func (export "init"))
  (func (export "update") (param i32))
)`, allocator("alloc", "free"))
}

// UnknownImport imports a host function the platform does not provide.
func UnknownImport() string {
	return fmt.Sprintf(`(module
  (import "platform" "open_window" (func))
  (memory (export "memory") 1)
  %s
  (func (export "init"))
  (func (export "update") (param i32 i32 i32 f32 f32))
)`, allocator("alloc", "free"))
}
