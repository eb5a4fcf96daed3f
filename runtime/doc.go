// Package runtime drives a compiled simulation engine one frame at a time.
//
// # Quick Start
//
//	ctx := context.Background()
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
//	inst, err := mod.InstantiatePull(ctx, bridge.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	if err := inst.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	frame, err := inst.Update(ctx, input, wire.TimeSample{Elapsed: 0.016, Delta: 0.016})
//
// # Loading Engines
//
//	LoadWASM(bytes)  - core WebAssembly module on the configured backend
//	LoadWAT(text)    - WebAssembly text, compiled first
//	LoadNative(name) - Go-native engine registered with engine.RegisterNative
//
// The output mode is fixed when the module is loaded. InstantiatePull
// returns an instance whose Update yields a wire.Frame; InstantiatePush
// returns one whose Update fills a render.Queue. Asking for the other kind
// fails with errors.KindModeConflict.
//
// # Lifecycle
//
//	Uninitialized --Init--> Ready --Update--> Ready
//	                          |
//	                     fatal error --> Failed
//	any state --Close--> Closed
//
// Update before Init fails with errors.KindNotInitialized. Once an
// instance has failed every call returns the error that failed it.
//
// # Buffers
//
// Each Update allocates the input snapshot in engine memory and releases it
// before returning, on success and failure alike. A pull frame returned by
// the engine is adopted, decoded and released exactly once. Views over
// engine memory are invalidated after every call into the engine.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instances are not: one
// update is in flight at a time.
package runtime
