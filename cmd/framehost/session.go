package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-frame-host/bridge"
	"github.com/wippyai/wasm-frame-host/config"
	"github.com/wippyai/wasm-frame-host/driver"
	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/runtime"
	"github.com/wippyai/wasm-frame-host/wire"
)

// instance is what both instance kinds offer the driver.
type instance interface {
	driver.FrameSource
	Close(ctx context.Context) error
}

// session is a loaded module and one instance of it.
type session struct {
	rt       *runtime.Runtime
	module   *runtime.Module
	instance instance
}

// loadModule creates the runtime and loads the configured engine.
func loadModule(ctx context.Context, cfg config.Config, logger *zap.Logger) (*runtime.Runtime, *runtime.Module, error) {
	rt, err := runtime.New(ctx,
		runtime.WithBackend(cfg.Engine.Backend),
		runtime.WithMemoryLimitPages(cfg.Engine.MemoryLimitPages),
		runtime.WithCacheSize(cfg.Engine.CacheSize),
		runtime.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}

	engine.SetLogger(logger.Named("engine"))

	var mod *runtime.Module
	if cfg.Engine.Native != "" {
		mod, err = rt.LoadNative(ctx, cfg.Engine.Native)
	} else {
		mod, err = loadFile(ctx, rt, cfg.Engine.Path)
	}
	if err != nil {
		rt.Close(ctx)
		return nil, nil, err
	}

	if cfg.Engine.Mode != "" {
		want, err := wire.ParseMode(cfg.Engine.Mode)
		if err != nil {
			rt.Close(ctx)
			return nil, nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "engine.mode")
		}
		if want != mod.Mode() {
			rt.Close(ctx)
			return nil, nil, errors.ModeConflict(errors.PhaseLoad,
				fmt.Sprintf("configured for %s mode but %s is %s mode", want, mod.Name(), mod.Mode()))
		}
	}
	return rt, mod, nil
}

func loadFile(ctx context.Context, rt *runtime.Runtime, path string) (*runtime.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".wat") {
		return rt.LoadWAT(ctx, string(data))
	}
	return rt.LoadWASM(ctx, data)
}

// openSession loads the engine and instantiates it for its mode.
func openSession(ctx context.Context, cfg config.Config, logger *zap.Logger, alerts bridge.Alerter) (*session, error) {
	rt, mod, err := loadModule(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	popts := []bridge.Option{bridge.WithLogger(logger)}
	if cfg.Frame.Seed != 0 {
		popts = append(popts, bridge.WithSeed(cfg.Frame.Seed))
	}
	if alerts != nil {
		popts = append(popts, bridge.WithAlerter(alerts))
	}
	platform := bridge.New(popts...)

	var inst instance
	switch mod.Mode() {
	case wire.ModePush:
		inst, err = mod.InstantiatePush(ctx, platform)
	default:
		inst, err = mod.InstantiatePull(ctx, platform)
	}
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}

	logger.Info("engine loaded",
		zap.String("module", mod.Name()),
		zap.String("backend", rt.Backend()),
		zap.Stringer("mode", mod.Mode()))
	return &session{rt: rt, module: mod, instance: inst}, nil
}

func (s *session) Close(ctx context.Context) error {
	err := s.instance.Close(ctx)
	if cerr := s.rt.Close(ctx); err == nil {
		err = cerr
	}
	return err
}
