// Package driver schedules frames: it owns the clock, calls the engine
// once per tick with the latest input snapshot and forwards the output to
// a presenter.
//
// The driver runs on a single goroutine and never starts a frame before
// the previous one has returned. A frame-fatal error halts it; once halted
// Step returns the halting error without calling the engine again.
package driver
