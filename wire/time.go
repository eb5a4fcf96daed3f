package wire

import (
	"math"

	"github.com/wippyai/wasm-frame-host/errors"
)

// TimeSample is the time passed to one update call, in seconds.
type TimeSample struct {
	// Elapsed is measured from engine init and never decreases.
	Elapsed float64
	// Delta is the time since the previous frame.
	Delta float64
}

// Validate rejects negative, NaN and infinite values.
func (t TimeSample) Validate() error {
	if !finiteNonNegative(t.Elapsed) {
		return errors.InvalidData(errors.PhaseEncode, []string{"time", "elapsed"}, "must be finite and non-negative")
	}
	if !finiteNonNegative(t.Delta) {
		return errors.InvalidData(errors.PhaseEncode, []string{"time", "delta"}, "must be finite and non-negative")
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
