package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/wippyai/wasm-frame-host/errors"
)

// Config holds configuration shared by all backends.
type Config struct {
	// MemoryLimitPages caps linear memory per instance in 64KiB pages.
	// 0 means the backend default.
	MemoryLimitPages uint32

	// CacheSize is the number of compiled modules kept per backend.
	// 0 means DefaultCacheSize; negative disables caching.
	CacheSize int
}

// Factory creates a backend.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available by name. Registering a name twice
// replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	registry[name] = f
	registryMu.Unlock()
}

// Open creates the named backend.
func Open(ctx context.Context, name string, cfg Config) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "backend", name)
	}
	return f(ctx, cfg)
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(WazeroName, func(ctx context.Context, cfg Config) (Backend, error) {
		return NewWazeroBackend(ctx, cfg), nil
	})
	Register(WasmtimeName, func(_ context.Context, cfg Config) (Backend, error) {
		return NewWasmtimeBackend(cfg), nil
	})
	Register(NativeName, func(_ context.Context, cfg Config) (Backend, error) {
		return NewNativeBackend(cfg), nil
	})
}
