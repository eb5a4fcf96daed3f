// Package errors provides structured error types for the frame host.
//
// Errors are categorized by Phase (where in the frame protocol the error
// occurred) and Kind (error category). The kinds that matter to the frame
// driver are:
//
//	not_initialized  update called before init
//	decode           malformed data crossing the boundary
//	allocation       engine memory exhausted; fatal for the session
//	engine_throw     the engine signalled a fatal condition through the bridge
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindDecode).
//		Path("frame", "3", "top").
//		Detail("top below bottom").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotInitialized(errors.PhaseUpdate, "engine")
//	err := errors.OutOfBounds(errors.PhaseDecode, ptr, length, size)
//
// IsFrameFatal and IsSessionFatal classify errors for the scheduling loop.
// All errors implement the standard error interface and support errors.Is/As.
package errors
