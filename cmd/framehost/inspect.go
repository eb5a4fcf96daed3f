package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-frame-host/engine"
	"github.com/wippyai/wasm-frame-host/runtime"
)

// moduleReport is the inspect output.
type moduleReport struct {
	Module     string         `yaml:"module"`
	Backend    string         `yaml:"backend"`
	Mode       string         `yaml:"mode"`
	Convention string         `yaml:"convention"`
	Exports    exportReport   `yaml:"exports"`
	Imports    []importReport `yaml:"imports"`
}

type exportReport struct {
	Alloc  string `yaml:"alloc"`
	Free   string `yaml:"free"`
	Init   string `yaml:"init"`
	Update string `yaml:"update"`
	Retptr string `yaml:"retptr,omitempty"`
}

type importReport struct {
	Name      string `yaml:"name"`
	Signature string `yaml:"signature"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show how the host binds to an engine",
		Long: `Load the engine without running it and print its output mode and the
exports and platform imports the host binds. A module that mixes pull and
push shapes, or lacks a required export, is reported as an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, mod, err := loadModule(ctx, cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			report := newModuleReport(rt, mod)
			switch format {
			case "yaml":
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(report)
			case "text":
				writeReport(cmd.OutOrStdout(), report)
				return nil
			default:
				return fmt.Errorf("invalid format %q: must be text or yaml", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text|yaml)")
	return cmd
}

func newModuleReport(rt *runtime.Runtime, mod *runtime.Module) moduleReport {
	abi := mod.ABI()
	r := moduleReport{
		Module:     mod.Name(),
		Backend:    rt.Backend(),
		Mode:       abi.Mode.String(),
		Convention: abi.Mode.Convention().String(),
		Exports: exportReport{
			Alloc:  abi.Alloc,
			Free:   abi.Free,
			Init:   abi.Init,
			Update: abi.Update,
			Retptr: abi.Retptr,
		},
	}
	for _, name := range abi.Imports {
		sig, _ := engine.PlatformSignature(name)
		r.Imports = append(r.Imports, importReport{Name: name, Signature: sig.String()})
	}
	return r
}

func writeReport(w io.Writer, r moduleReport) {
	fmt.Fprintf(w, "Module:     %s\n", r.Module)
	fmt.Fprintf(w, "Backend:    %s\n", r.Backend)
	fmt.Fprintf(w, "Mode:       %s\n", r.Mode)
	fmt.Fprintf(w, "Convention: %s\n", r.Convention)
	fmt.Fprintf(w, "\nExports:\n")
	fmt.Fprintf(w, "  alloc   %s\n", r.Exports.Alloc)
	fmt.Fprintf(w, "  free    %s\n", r.Exports.Free)
	fmt.Fprintf(w, "  init    %s\n", r.Exports.Init)
	fmt.Fprintf(w, "  update  %s\n", r.Exports.Update)
	if r.Exports.Retptr != "" {
		fmt.Fprintf(w, "  retptr  %s\n", r.Exports.Retptr)
	}
	fmt.Fprintf(w, "\nImports (%s):\n", engine.PlatformModule)
	for _, imp := range r.Imports {
		fmt.Fprintf(w, "  %-16s %s\n", imp.Name, imp.Signature)
	}
}
