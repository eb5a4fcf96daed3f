package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-frame-host/driver"
	"github.com/wippyai/wasm-frame-host/input"
	"github.com/wippyai/wasm-frame-host/logging"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/wire"
)

// SnapshotOptions holds flags for the snapshot command.
type SnapshotOptions struct {
	Output string
	Frames int
	Delta  time.Duration
	Keys   []string
	Seed   int64
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Run a fixed number of frames on a simulated clock and save the last as PNG",
		Long: `Run the engine for --frames frames, advancing a simulated clock by --dt
before each, with the --keys flags held throughout, and write the final
frame to a PNG file. With a fixed --seed the output is reproducible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "frame.png", "PNG file to write")
	cmd.Flags().IntVarP(&opts.Frames, "frames", "n", 60, "frames to run")
	cmd.Flags().DurationVar(&opts.Delta, "dt", time.Second/60, "simulated time per frame")
	cmd.Flags().StringSliceVar(&opts.Keys, "keys", nil, "input flags held on every frame, e.g. up_key,shoot_right")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "seed for the platform random source")

	return cmd
}

func runSnapshot(cmd *cobra.Command, rootOpts *RootOptions, opts *SnapshotOptions) error {
	if opts.Frames <= 0 {
		return fmt.Errorf("--frames must be positive, got %d", opts.Frames)
	}
	if opts.Delta < 0 {
		return fmt.Errorf("--dt must not be negative, got %s", opts.Delta)
	}
	held, err := parseFlags(opts.Keys)
	if err != nil {
		return err
	}

	cfg, err := rootOpts.load()
	if err != nil {
		return err
	}
	cfg.Frame.Seed = opts.Seed

	logger, err := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx := cmd.Context()
	sess, err := openSession(ctx, cfg, logger.Logger, nil)
	if err != nil {
		return err
	}
	defer sess.Close(context.Background())

	var latch input.Latch
	latch.Store(held)

	clock := driver.NewManualClock(time.Unix(0, 0))
	raster := render.NewRaster(cfg.Frame.Width, cfg.Frame.Height)
	d := driver.New(sess.instance, render.NewConsumer(raster), &latch,
		driver.WithClock(clock),
		driver.WithLogger(logger.Logger),
		driver.WithQuitOnFlag(false))
	if err := d.Start(ctx); err != nil {
		return err
	}
	for i := 0; i < opts.Frames; i++ {
		clock.Advance(opts.Delta)
		if err := d.Step(ctx); err != nil {
			return fmt.Errorf("frame %d: %w", i+1, err)
		}
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := raster.WritePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("write png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	stats := d.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %dx%d after %d frames (%s simulated)\n",
		opts.Output, cfg.Frame.Width, cfg.Frame.Height, stats.Frames, stats.Elapsed)
	return nil
}

// parseFlags turns wire field names into an input state.
func parseFlags(names []string) (wire.InputState, error) {
	var s wire.InputState
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		f, ok := wire.FlagByName(name)
		if !ok {
			return 0, fmt.Errorf("unknown input flag %q", name)
		}
		s = s.With(f, true)
	}
	return s, nil
}
