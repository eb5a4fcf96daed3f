package engine

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-frame-host/errors"
)

// NativeName is the registry name of the backend for Go-native engines.
const NativeName = "native"

// NativeFactory builds a Go-native engine module under the given limits.
type NativeFactory func(cfg Config) Compiled

var (
	nativeMu sync.RWMutex
	natives  = map[string]NativeFactory{}
)

// RegisterNative makes a Go-native engine available to the native backend.
func RegisterNative(name string, f NativeFactory) {
	nativeMu.Lock()
	natives[name] = f
	nativeMu.Unlock()
}

// Natives returns the registered native engine names, sorted.
func Natives() []string {
	nativeMu.RLock()
	defer nativeMu.RUnlock()
	names := make([]string, 0, len(natives))
	for name := range natives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NativeBackend resolves Go-native engines by name. Compile takes the
// engine name in place of a binary.
type NativeBackend struct {
	cfg Config
}

// NewNativeBackend creates a native backend with the given limits.
func NewNativeBackend(cfg Config) *NativeBackend {
	return &NativeBackend{cfg: cfg}
}

func (b *NativeBackend) Name() string { return NativeName }

func (b *NativeBackend) Compile(_ context.Context, src []byte) (Compiled, error) {
	name := string(src)
	nativeMu.RLock()
	f, ok := natives[name]
	nativeMu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseLoad, "native engine", name)
	}
	Logger().Debug("native engine resolved", zap.String("engine", name))
	return f(b.cfg), nil
}

func (b *NativeBackend) Close(context.Context) error { return nil }
