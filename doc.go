// Package framehost connects a compiled simulation engine to a host that
// owns input capture, frame timing and pixel drawing.
//
// The engine is a core WebAssembly module (or a Go-native engine speaking
// the same ABI) with its own linear memory. Once per display frame the host
// serializes an input snapshot into engine memory, calls update with the
// elapsed and delta time, and reads render output back out.
//
// # Architecture Overview
//
//	framehost/       Root package with core Memory and Allocator interfaces
//	├── errors/      Structured error types (Phase + Kind)
//	├── marshal/     Text encoding, cached memory views, owned buffers
//	├── wire/        Versioned input and draw command messages
//	├── engine/      Backends (wazero, wasmtime, native) and ABI inspection
//	├── bridge/      Capabilities the engine calls back into during update
//	├── runtime/     init/update state machine over a backend instance
//	├── render/      Draw command consumption, command queue, surfaces
//	├── input/       Tear-free input latch and key bindings
//	├── driver/      Frame scheduling loop
//	├── sandbox/     Demo engine for the native backend
//	├── tui/         Terminal surface (bubbletea)
//	├── web/         Browser surface over websocket
//	├── config/      YAML configuration with CUE schema validation
//	└── logging/     zap logger construction
//
// # Quick Start
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.LoadWASM(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.InstantiatePull(ctx, bridge.NewPlatform())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	if err := inst.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	frame, err := inst.Update(ctx, wire.InputState(0).With(wire.Up, true), wire.TimeSample{Delta: 0.1})
//
// # Output Modes
//
// A module is either pull (update returns serialized draw commands) or push
// (update draws through bridge primitives). The mode is derived from the
// module's update signature and imports when it is loaded; a module that
// mixes both is rejected before it is instantiated.
//
// # Memory Model
//
// Engine memory can grow during any allocation or engine call. Views over
// it are cached by the marshal package and invalidated explicitly; every
// accessor revalidates before dereferencing.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instances are NOT
// thread-safe and are driven by a single frame loop.
package framehost
