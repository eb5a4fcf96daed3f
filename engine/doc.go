// Package engine provides the low-level execution backends for frame engines.
//
// A backend compiles a module, describes its exports and imports, and
// creates instances whose host calls are routed to a Host. Three backends
// are registered:
//
//	wazero   - pure-Go WebAssembly runtime (default)
//	wasmtime - wasmtime through cgo
//	native   - Go engines that speak the same ABI over a LinearMemory
//
// # Frame ABI
//
// Inspect checks a ModuleDesc against the frame ABI and resolves export
// names, accepting wasm-bindgen aliases:
//
//	memory                          linear memory
//	alloc  / __wbindgen_malloc      (size i32) -> ptr i32
//	free   / __wbindgen_free        (ptr i32, len i32)
//	init                            ()
//	update                          pull: (retptr, ptr, len i32, elapsed, delta f32)
//	                                push: (ptr, len i32, elapsed, delta f32)
//	retptr / __wbindgen_global_argument_ptr   () -> i32, optional, pull only
//
// Host functions live in the "platform" import module: random, log, alert,
// throw (alias __wbindgen_throw), start_frame, end_frame, draw_rectangle.
// The drawing primitives are push-only; a module whose update shape and
// imports disagree is rejected with KindModeConflict.
//
// # Thread Safety
//
// Backends are safe for concurrent use. Instances are NOT thread-safe and
// should be used by a single goroutine.
//
// Most users should use the runtime package for a simpler API.
package engine
