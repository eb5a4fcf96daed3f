package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-frame-host/bridge"
	"github.com/wippyai/wasm-frame-host/config"
	"github.com/wippyai/wasm-frame-host/driver"
	"github.com/wippyai/wasm-frame-host/input"
	"github.com/wippyai/wasm-frame-host/logging"
	"github.com/wippyai/wasm-frame-host/render"
	"github.com/wippyai/wasm-frame-host/tui"
	"github.com/wippyai/wasm-frame-host/web"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Surface string
	Addr    string
	FPS     int
	Frames  uint64
	Seed    int64
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine on a live surface",
		Long: `Run the engine until it is quit, halted by a fatal engine error, or
interrupted.

Surfaces:
  tui       draw in the terminal (keys: see the footer)
  web       serve a canvas page and stream frames over websocket
  headless  draw into an in-memory image; combine with --frames`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, &cfg); err != nil {
				return err
			}
			return runSession(cmd, cfg, opts.Frames)
		},
	}

	cmd.Flags().StringVarP(&opts.Surface, "surface", "s", "", "tui|web|headless")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address for the web surface")
	cmd.Flags().IntVar(&opts.FPS, "fps", 0, "frames per second")
	cmd.Flags().Uint64Var(&opts.Frames, "frames", 0, "stop after this many frames (0 runs until quit)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "seed for the platform random source")

	return cmd
}

func (o *RunOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.Surface != "" {
		cfg.Surface = o.Surface
	}
	if o.Addr != "" {
		cfg.Web.Addr = o.Addr
	}
	if cmd.Flags().Changed("fps") {
		cfg.Frame.FPS = o.FPS
	}
	if cmd.Flags().Changed("seed") {
		cfg.Frame.Seed = o.Seed
	}
	return cfg.Validate()
}

func runSession(cmd *cobra.Command, cfg config.Config, frames uint64) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Surface == config.SurfaceTUI {
		// Console log lines would tear the screen.
		cfg.Log.Quiet = true
	}
	logger, err := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logger.Close()

	var alerter bridge.Alerter
	if cfg.Surface != config.SurfaceTUI {
		alerter = bridge.AlertFunc(func(msg string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "alert: %s\n", msg)
		})
	}

	sess, err := openSession(ctx, cfg, logger.Logger, alerter)
	if err != nil {
		return err
	}
	defer sess.Close(context.Background())

	keymap, err := cfg.Keymap()
	if err != nil {
		return err
	}
	latch := &input.Latch{}

	var d *driver.Driver
	dopts := []driver.Option{driver.WithLogger(logger.Logger)}
	if frames > 0 {
		dopts = append(dopts, driver.WithFrameHook(func(s driver.Stats) {
			if s.Frames >= frames {
				d.Stop()
			}
		}))
	}

	switch cfg.Surface {
	case config.SurfaceTUI:
		canvas := tui.NewCanvas(cfg.Frame.Width, cfg.Frame.Height)
		d = driver.New(sess.instance, render.NewConsumer(canvas, render.WithLogger(logger.Logger)), latch, dopts...)
		if err := d.Start(ctx); err != nil {
			return err
		}
		model := tui.New(ctx, d, canvas, latch, tui.Options{
			Title:  "framehost " + sess.module.Name(),
			FPS:    cfg.Frame.FPS,
			Keymap: keymap,
			Hold:   cfg.KeyHold(),
		})
		err = tui.Run(ctx, model)
		printStats(cmd.OutOrStdout(), d.Stats())
		return err

	case config.SurfaceWeb:
		srv := web.NewServer(latch,
			web.WithKeymap(keymap),
			web.WithSize(cfg.Frame.Width, cfg.Frame.Height),
			web.WithLogger(logger.Logger))
		d = driver.New(sess.instance, srv, latch, dopts...)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		serveErr := make(chan error, 1)
		go func() {
			err := srv.ListenAndServe(ctx, cfg.Web.Addr)
			if err != nil {
				cancel()
			}
			serveErr <- err
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s/\n", cfg.Web.Addr)

		err := d.Run(ctx, cfg.Frame.FPS)
		cancel()
		if serr := <-serveErr; err == nil {
			err = serr
		}
		printStats(cmd.OutOrStdout(), d.Stats())
		return err

	default:
		raster := render.NewRaster(cfg.Frame.Width, cfg.Frame.Height)
		d = driver.New(sess.instance, render.NewConsumer(raster, render.WithLogger(logger.Logger)), latch, dopts...)
		err := d.Run(ctx, cfg.Frame.FPS)
		printStats(cmd.OutOrStdout(), d.Stats())
		return err
	}
}

func printStats(w io.Writer, s driver.Stats) {
	fmt.Fprintf(w, "frames=%d empty=%d elapsed=%s\n", s.Frames, s.Empty, s.Elapsed.Round(time.Millisecond))
}
