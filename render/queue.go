package render

import (
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/wire"
)

// Queue collects push-model drawing during one engine call. Begin starts a
// frame and discards anything drawn before, matching a surface clear. Draw
// is only valid between Begin and End.
type Queue struct {
	cmds    []wire.DrawCommand
	open    bool
	started bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Begin() error {
	if q.open {
		return errors.Protocol(errors.PhaseBridge, "start_frame inside an open frame")
	}
	q.cmds = q.cmds[:0]
	q.open = true
	q.started = true
	return nil
}

func (q *Queue) Draw(cmd wire.DrawCommand) error {
	if !q.open {
		return errors.Protocol(errors.PhaseBridge, "draw_rectangle outside start_frame/end_frame")
	}
	q.cmds = append(q.cmds, cmd)
	return nil
}

func (q *Queue) End() error {
	if !q.open {
		return errors.Protocol(errors.PhaseBridge, "end_frame without start_frame")
	}
	q.open = false
	return nil
}

// Len returns the number of queued commands.
func (q *Queue) Len() int { return len(q.cmds) }

// Drain returns the completed frame and resets the queue. ok is false when
// no frame was started. An unterminated frame is a protocol error and is
// discarded.
func (q *Queue) Drain() (frame wire.Frame, ok bool, err error) {
	defer q.reset()
	if q.open {
		return wire.Frame{}, false, errors.Protocol(errors.PhaseRender, "frame not terminated with end_frame")
	}
	if !q.started {
		return wire.Frame{}, false, nil
	}
	cmds := make([]wire.DrawCommand, len(q.cmds))
	copy(cmds, q.cmds)
	return wire.Frame{Commands: cmds, Convention: wire.ChannelsUnit}, true, nil
}

func (q *Queue) reset() {
	q.cmds = q.cmds[:0]
	q.open = false
	q.started = false
}
