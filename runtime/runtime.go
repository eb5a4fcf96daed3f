package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
)

// Runtime compiles engines on one backend.
type Runtime struct {
	backend engine.Backend
	natives engine.Backend
	logger  *zap.Logger
	cfg     engine.Config
}

type options struct {
	logger  *zap.Logger
	backend string
	cfg     engine.Config
}

// Option configures a Runtime.
type Option func(*options)

// WithBackend selects the backend by registry name. Default is wazero.
func WithBackend(name string) Option {
	return func(o *options) { o.backend = name }
}

// WithMemoryLimitPages caps engine linear memory in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.cfg.MemoryLimitPages = pages }
}

// WithCacheSize sets how many compiled modules are kept. Negative disables
// the cache.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cfg.CacheSize = n }
}

// WithLogger sets the logger for the runtime and the instances it creates.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := options{logger: zap.NewNop(), backend: engine.WazeroName}
	for _, opt := range opts {
		opt(&o)
	}

	backend, err := engine.Open(ctx, o.backend, o.cfg)
	if err != nil {
		return nil, errors.Load("create backend", err)
	}

	return &Runtime{
		backend: backend,
		logger:  o.logger.With(zap.String("backend", backend.Name())),
		cfg:     o.cfg,
	}, nil
}

// Backend returns the name of the backend in use.
func (r *Runtime) Backend() string {
	return r.backend.Name()
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	if r.natives != nil {
		if err := r.natives.Close(ctx); err != nil {
			return err
		}
	}
	return r.backend.Close(ctx)
}

// LoadWASM compiles a core WebAssembly module and checks it against the
// frame ABI. A module that mixes output modes is rejected here.
func (r *Runtime) LoadWASM(ctx context.Context, wasm []byte) (*Module, error) {
	compiled, err := r.backend.Compile(ctx, wasm)
	if err != nil {
		return nil, err
	}
	return r.newModule(compiled, engine.Digest(wasm))
}

// LoadNative resolves a registered Go-native engine. It does not depend on
// the configured backend.
func (r *Runtime) LoadNative(ctx context.Context, name string) (*Module, error) {
	if r.natives == nil {
		r.natives = engine.NewNativeBackend(r.cfg)
	}
	compiled, err := r.natives.Compile(ctx, []byte(name))
	if err != nil {
		return nil, err
	}
	return r.newModule(compiled, engine.NativeName+":"+name)
}

func (r *Runtime) newModule(compiled engine.Compiled, name string) (*Module, error) {
	abi, err := engine.Inspect(compiled.Describe())
	if err != nil {
		return nil, err
	}
	r.logger.Debug("module loaded",
		zap.String("module", name),
		zap.Stringer("mode", abi.Mode),
		zap.Strings("imports", abi.Imports))
	return &Module{
		runtime:  r,
		compiled: compiled,
		abi:      abi,
		name:     name,
	}, nil
}
