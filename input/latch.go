package input

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wippyai/wasm-frame-host/wire"
)

// Latch holds the current input flags. It is safe for concurrent use.
type Latch struct {
	bits atomic.Uint32
}

// Snapshot returns the flags as of the call. A nil Latch reports no keys.
func (l *Latch) Snapshot() wire.InputState {
	if l == nil {
		return 0
	}
	return wire.InputState(l.bits.Load())
}

// Set turns f on or off.
func (l *Latch) Set(f wire.Flag, on bool) {
	for {
		old := l.bits.Load()
		next := uint32(wire.InputState(old).With(f, on))
		if old == next || l.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Press turns f on.
func (l *Latch) Press(f wire.Flag) { l.Set(f, true) }

// Release turns f off.
func (l *Latch) Release(f wire.Flag) { l.Set(f, false) }

// Store replaces every flag at once.
func (l *Latch) Store(s wire.InputState) {
	l.bits.Store(uint32(s & wire.AllFlags))
}

// Reset clears every flag.
func (l *Latch) Reset() { l.bits.Store(0) }

// DefaultHold is how long a key stays down after its last press event when
// the source reports no key releases.
const DefaultHold = 150 * time.Millisecond

// Hold emulates key releases for sources that only report presses, such as
// terminals. Each press keeps the flag set until hold has passed without
// another press for it.
type Hold struct {
	latch     *Latch
	hold      time.Duration
	mu        sync.Mutex
	deadlines [wire.FlagCount]time.Time
}

// NewHold wraps l. A hold of zero uses DefaultHold.
func NewHold(l *Latch, hold time.Duration) *Hold {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Hold{latch: l, hold: hold}
}

// Press sets f and extends its deadline from now.
func (h *Hold) Press(f wire.Flag, now time.Time) {
	i := index(f)
	if i < 0 {
		return
	}
	h.mu.Lock()
	h.deadlines[i] = now.Add(h.hold)
	h.mu.Unlock()
	h.latch.Press(f)
}

// Expire releases every held flag whose deadline has passed.
func (h *Hold) Expire(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, d := range h.deadlines {
		if !d.IsZero() && !now.Before(d) {
			h.deadlines[i] = time.Time{}
			h.latch.Release(wire.Flag(1 << i))
		}
	}
}

func index(f wire.Flag) int {
	for i := 0; i < wire.FlagCount; i++ {
		if f == 1<<i {
			return i
		}
	}
	return -1
}
