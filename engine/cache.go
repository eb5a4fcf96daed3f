package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"

	"github.com/bluele/gcache"
	"go.uber.org/zap"
)

// DefaultCacheSize is the number of compiled modules a backend keeps.
const DefaultCacheSize = 16

// Digest returns the hex SHA-256 of a module binary.
func Digest(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// moduleCache is an LRU of compiled modules keyed by content digest.
type moduleCache struct {
	cache gcache.Cache
}

func newModuleCache(size int) *moduleCache {
	if size < 0 {
		return &moduleCache{}
	}
	if size == 0 {
		size = DefaultCacheSize
	}
	c := gcache.New(size).
		LRU().
		EvictedFunc(func(key, _ interface{}) {
			Logger().Debug("compiled module evicted", zap.Any("digest", key))
		}).
		Build()
	return &moduleCache{cache: c}
}

// getOrCompile returns the cached module for src or compiles and stores it.
func (c *moduleCache) getOrCompile(ctx context.Context, src []byte, compile func(context.Context, []byte) (Compiled, error)) (Compiled, bool, error) {
	if c.cache == nil {
		m, err := compile(ctx, src)
		return m, false, err
	}

	key := Digest(src)
	v, err := c.cache.Get(key)
	switch {
	case err == nil:
		return v.(Compiled), true, nil
	case stderrors.Is(err, gcache.KeyNotFoundError):
	default:
		return nil, false, err
	}

	m, err := compile(ctx, src)
	if err != nil {
		return nil, false, err
	}
	if err := c.cache.Set(key, m); err != nil {
		Logger().Warn("cache compiled module", zap.String("digest", key), zap.Error(err))
	}
	return m, false, nil
}

func (c *moduleCache) len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len(false)
}

func (c *moduleCache) purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}
