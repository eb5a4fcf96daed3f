package render

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/wire"
)

// Consumer presents frames on a surface.
type Consumer struct {
	surface   Surface
	transform Transform
	logger    *zap.Logger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithHeight overrides the engine world height used for the vertical flip.
// It defaults to the surface height.
func WithHeight(h float64) Option {
	return func(c *Consumer) { c.transform.Height = h }
}

// WithLogger sets the logger used for rejected frames.
func WithLogger(l *zap.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewConsumer creates a consumer drawing on s.
func NewConsumer(s Surface, opts ...Option) *Consumer {
	_, h := s.Size()
	c := &Consumer{
		surface:   s,
		transform: Transform{Height: float64(h)},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transform returns the engine-to-surface transform in use.
func (c *Consumer) Transform() Transform { return c.transform }

// Surface returns the surface being drawn on.
func (c *Consumer) Surface() Surface { return c.surface }

// Present validates every command of the frame, then clears the surface
// once and fills each rectangle in order. An invalid frame is rejected as
// a whole and nothing is drawn.
func (c *Consumer) Present(frame wire.Frame) error {
	if err := frame.Validate(); err != nil {
		var path []string
		var e *errors.Error
		if stderrors.As(err, &e) {
			path = e.Path
		}
		c.logger.Warn("frame rejected", zap.Int("commands", len(frame.Commands)), zap.Error(err))
		return errors.Decode(errors.PhaseRender, path, "frame rejected", err)
	}

	c.surface.Clear()
	for _, cmd := range frame.Commands {
		c.surface.FillRect(c.transform.Rect(cmd), c.transform.Color(cmd, frame.Convention))
	}
	return nil
}
