package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-frame-host/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Engine     string
	Backend    string
	LogFile    string
	Verbose    bool
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "framehost",
		Short: "Drive a frame engine one display frame at a time",
		Long: `framehost loads a simulation engine (a WebAssembly module or a built-in
Go engine), feeds it input and time once per frame and draws what it
returns in the terminal, in a browser, or into a PNG.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVarP(&opts.Engine, "engine", "e", "", "engine: a .wasm/.wat file or a built-in engine name")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "wasm backend (wazero|wasmtime)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "also write logs to this rolling file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// load reads the config file and applies the global flags on top.
func (o *RootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.Engine != "" {
		if isEnginePath(o.Engine) {
			cfg.Engine.Path, cfg.Engine.Native = o.Engine, ""
		} else {
			cfg.Engine.Path, cfg.Engine.Native = "", o.Engine
		}
	}
	if o.Backend != "" {
		cfg.Engine.Backend = o.Backend
	}
	if o.LogFile != "" {
		cfg.Log.File = o.LogFile
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

func isEnginePath(s string) bool {
	switch strings.ToLower(filepath.Ext(s)) {
	case ".wasm", ".wat":
		return true
	}
	return strings.ContainsRune(s, filepath.Separator) || strings.ContainsRune(s, '/')
}
