package bridge

import (
	"math/rand"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/wire"
)

// Alerter shows a notice to the user.
type Alerter interface {
	Alert(msg string)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(msg string)

func (f AlertFunc) Alert(msg string) { f(msg) }

// Platform is the engine.Host handed to one engine instance.
type Platform struct {
	random  func() float32
	logger  *zap.Logger
	alerter Alerter
	queue   *render.Queue
	fault   error
	logs    int
}

// Option configures a Platform.
type Option func(*Platform)

// WithSeed makes Random deterministic.
func WithSeed(seed int64) Option {
	return func(p *Platform) {
		r := rand.New(rand.NewSource(seed))
		p.random = r.Float32
	}
}

// WithRandom replaces the random source. f must return values in [0, 1).
func WithRandom(f func() float32) Option {
	return func(p *Platform) { p.random = f }
}

// WithLogger sets the logger engine diagnostics are written to.
func WithLogger(l *zap.Logger) Option {
	return func(p *Platform) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithAlerter sets where alerts are shown. Alerts are logged either way.
func WithAlerter(a Alerter) Option {
	return func(p *Platform) { p.alerter = a }
}

// New creates a Platform seeded from the global random source.
func New(opts ...Option) *Platform {
	p := &Platform{
		random: rand.Float32,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Random returns a value in [0, 1).
func (p *Platform) Random() float32 {
	v := p.random()
	if v < 0 || v >= 1 || v != v {
		return 0
	}
	return v
}

// Log records an engine diagnostic. It never fails.
func (p *Platform) Log(msg []byte) {
	p.logs++
	p.logger.Info("engine", zap.String("msg", Text(msg)))
}

// Logs returns how many diagnostics the engine has logged.
func (p *Platform) Logs() int { return p.logs }

// Alert shows a notice to the user.
func (p *Platform) Alert(msg []byte) {
	text := Text(msg)
	p.logger.Warn("engine alert", zap.String("msg", text))
	if p.alerter != nil {
		p.alerter.Alert(text)
	}
}

// Throw records a fatal engine condition and aborts the current call.
func (p *Platform) Throw(msg []byte) error {
	err := errors.EngineThrow(errors.PhaseBridge, Text(msg))
	p.logger.Error("engine threw", zap.String("msg", err.Detail))
	return p.record(err)
}

// Bind routes push drawing to q until Unbind.
func (p *Platform) Bind(q *render.Queue) { p.queue = q }

// Unbind stops routing push drawing.
func (p *Platform) Unbind() { p.queue = nil }

func (p *Platform) StartFrame() error {
	if p.queue == nil {
		return p.record(unbound(engine.ImportStartFrame))
	}
	return p.record(p.queue.Begin())
}

func (p *Platform) EndFrame() error {
	if p.queue == nil {
		return p.record(unbound(engine.ImportEndFrame))
	}
	return p.record(p.queue.End())
}

// DrawRectangle queues a rectangle given by its engine-space corners
// (minX, minY) and (maxX, maxY) with unit colour channels.
func (p *Platform) DrawRectangle(minX, minY, maxX, maxY, red, green, blue float32) error {
	if p.queue == nil {
		return p.record(unbound(engine.ImportDrawRectangle))
	}
	return p.record(p.queue.Draw(wire.DrawCommand{
		Left:   float64(minX),
		Bottom: float64(minY),
		Right:  float64(maxX),
		Top:    float64(maxY),
		Red:    float64(red),
		Green:  float64(green),
		Blue:   float64(blue),
	}))
}

// TakeFault returns the first error raised through the platform since the
// last call and clears it.
func (p *Platform) TakeFault() error {
	err := p.fault
	p.fault = nil
	return err
}

func (p *Platform) record(err error) error {
	if err != nil && p.fault == nil {
		p.fault = err
	}
	return err
}

func unbound(name string) error {
	return errors.ModeConflict(errors.PhaseBridge, name+" called with no push frame bound")
}

// Text decodes engine text for display: invalid UTF-8 is replaced and the
// result is NFC-normalized.
func Text(msg []byte) string {
	s := string(msg)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return norm.NFC.String(s)
}

var _ engine.Host = (*Platform)(nil)
