// Package wire defines the typed messages that cross the engine boundary:
// the per-frame input snapshot, the time sample, and draw commands.
//
// Messages are JSON on the wire, matching the field names the engine
// expects. Decoding is strict: the field set is fixed, every field is
// required, unknown fields are rejected, and every draw command is
// validated against its channel convention. Failures are reported as
// structured decode errors rather than generic parse failures.
package wire
