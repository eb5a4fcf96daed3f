package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/wire"
)

// DefaultFPS is the nominal display refresh rate.
const DefaultFPS = 60

// FrameSource is an initialized engine producing one frame per call.
// ok is false when the engine produced no frame this time.
type FrameSource interface {
	Init(ctx context.Context) error
	Frame(ctx context.Context, in wire.InputState, t wire.TimeSample) (frame wire.Frame, ok bool, err error)
}

// Presenter consumes frames, typically a *render.Consumer.
type Presenter interface {
	Present(frame wire.Frame) error
}

// InputSource yields the input snapshot for the next frame.
type InputSource interface {
	Snapshot() wire.InputState
}

// State is the driver's scheduling state.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateHalted
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Stats describes the frames run so far.
type Stats struct {
	Frames    uint64
	Empty     uint64 // frames where the engine drew nothing
	Elapsed   time.Duration
	LastDelta time.Duration
	LastInput wire.InputState
	Err       error
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(d *Driver) { d.clock = c }
}

// WithLogger sets the driver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithQuitOnFlag controls whether an input snapshot with wire.Quit set
// stops the driver. Enabled by default.
func WithQuitOnFlag(on bool) Option {
	return func(d *Driver) { d.quitOnFlag = on }
}

// WithFrameHook registers fn to run after each presented frame.
func WithFrameHook(fn func(Stats)) Option {
	return func(d *Driver) { d.hook = fn }
}

// Driver runs the frame loop. It is not safe for concurrent use.
type Driver struct {
	source     FrameSource
	presenter  Presenter
	input      InputSource
	clock      Clock
	logger     *zap.Logger
	hook       func(Stats)
	start      time.Time
	last       time.Time
	stats      Stats
	state      State
	quitOnFlag bool
}

// New creates a driver. A nil input source always reports no keys.
func New(source FrameSource, presenter Presenter, input InputSource, opts ...Option) *Driver {
	d := &Driver{
		source:     source,
		presenter:  presenter,
		input:      input,
		clock:      SystemClock,
		logger:     zap.NewNop(),
		quitOnFlag: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the scheduling state.
func (d *Driver) State() State { return d.state }

// Stats returns a copy of the frame statistics.
func (d *Driver) Stats() Stats { return d.stats }

// Start records the start time and initializes the engine. The first
// frame's delta is measured from here.
func (d *Driver) Start(ctx context.Context) error {
	if d.state != StateIdle {
		return errors.Protocol(errors.PhaseDrive, fmt.Sprintf("start in state %s", d.state))
	}
	d.start = d.clock.Now()
	d.last = d.start
	if err := d.source.Init(ctx); err != nil {
		return d.halt(err)
	}
	d.state = StateRunning
	d.logger.Info("driver started")
	return nil
}

// Step runs one frame. It returns the halting error, wrapped as
// KindHalted, once the driver has halted.
func (d *Driver) Step(ctx context.Context) error {
	switch d.state {
	case StateIdle:
		return errors.NotInitialized(errors.PhaseDrive, "driver")
	case StateHalted:
		return errors.Halted(d.stats.Err)
	case StateStopped:
		return errors.Closed(errors.PhaseDrive, "driver")
	}

	now := d.clock.Now()
	elapsed := now.Sub(d.start)
	if elapsed < d.stats.Elapsed {
		elapsed = d.stats.Elapsed
	}
	delta := now.Sub(d.last)
	if delta < 0 {
		delta = 0
	}
	if now.After(d.last) {
		d.last = now
	}

	var in wire.InputState
	if d.input != nil {
		in = d.input.Snapshot()
	}
	t := wire.TimeSample{Elapsed: elapsed.Seconds(), Delta: delta.Seconds()}

	frame, ok, err := d.source.Frame(ctx, in, t)
	if err != nil {
		return d.fault(err)
	}
	if ok {
		if err := d.presenter.Present(frame); err != nil {
			return d.fault(err)
		}
	} else {
		d.stats.Empty++
	}

	d.stats.Frames++
	d.stats.Elapsed = elapsed
	d.stats.LastDelta = delta
	d.stats.LastInput = in
	if d.hook != nil {
		d.hook(d.stats)
	}

	if d.quitOnFlag && in.Has(wire.Quit) {
		d.Stop()
	}
	return nil
}

// fault halts on frame-fatal errors and passes others through.
func (d *Driver) fault(err error) error {
	if errors.IsFrameFatal(err) || errors.IsSessionFatal(err) {
		return d.halt(err)
	}
	d.logger.Warn("frame skipped", zap.Uint64("frame", d.stats.Frames), zap.Error(err))
	return err
}

func (d *Driver) halt(err error) error {
	d.state = StateHalted
	d.stats.Err = err
	d.logger.Error("driver halted", zap.Uint64("frame", d.stats.Frames), zap.Error(err))
	return errors.Halted(err)
}

// Stop ends scheduling. An in-flight frame is never interrupted.
func (d *Driver) Stop() {
	if d.state == StateRunning || d.state == StateIdle {
		d.state = StateStopped
		d.logger.Info("driver stopped", zap.Uint64("frames", d.stats.Frames))
	}
}

// Run starts the driver if needed and steps it fps times a second until ctx
// is done, the quit flag is seen, or a fatal error halts it. Ticks that
// arrive while a frame is running are dropped. Run returns nil when stopped
// by ctx or the quit flag.
func (d *Driver) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if d.state == StateIdle {
		if err := d.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for d.state == StateRunning {
		select {
		case <-ctx.Done():
			d.Stop()
			return nil
		case <-ticker.C:
			if err := d.Step(ctx); err != nil && d.state == StateHalted {
				return err
			}
		}
	}
	if d.state == StateHalted {
		return errors.Halted(d.stats.Err)
	}
	return nil
}
