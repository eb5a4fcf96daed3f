package engine

import (
	"sort"
	"strings"

	"github.com/wippyai/wasm-frame-host/errors"
	"github.com/wippyai/wasm-frame-host/wire"
)

// Export and import names of the frame ABI. Each export accepts the
// wasm-bindgen name as an alias.
const (
	ExportMemory = "memory"
	ExportAlloc  = "alloc"
	ExportFree   = "free"
	ExportInit   = "init"
	ExportUpdate = "update"
	ExportRetptr = "retptr"

	bindgenAlloc  = "__wbindgen_malloc"
	bindgenFree   = "__wbindgen_free"
	bindgenRetptr = "__wbindgen_global_argument_ptr"

	// PlatformModule is the import module every host function lives in.
	PlatformModule = "platform"

	ImportRandom        = "random"
	ImportLog           = "log"
	ImportAlert         = "alert"
	ImportThrow         = "throw"
	ImportStartFrame    = "start_frame"
	ImportEndFrame      = "end_frame"
	ImportDrawRectangle = "draw_rectangle"

	bindgenThrow = "__wbindgen_throw"
)

var (
	sigAlloc  = Signature{Params: []ValueType{I32}, Results: []ValueType{I32}}
	sigFree   = Signature{Params: []ValueType{I32, I32}}
	sigInit   = Signature{}
	sigRetptr = Signature{Results: []ValueType{I32}}

	sigUpdatePull = Signature{Params: []ValueType{I32, I32, I32, F32, F32}}
	sigUpdatePush = Signature{Params: []ValueType{I32, I32, F32, F32}}

	sigText = Signature{Params: []ValueType{I32, I32}}
)

// platformImports lists every host function and its signature.
var platformImports = map[string]Signature{
	ImportRandom:        {Results: []ValueType{F32}},
	ImportLog:           sigText,
	ImportAlert:         sigText,
	ImportThrow:         sigText,
	bindgenThrow:        sigText,
	ImportStartFrame:    {},
	ImportEndFrame:      {},
	ImportDrawRectangle: {Params: []ValueType{F32, F32, F32, F32, F32, F32, F32}},
}

// drawImports are the primitives only a push-mode engine may import.
var drawImports = []string{ImportStartFrame, ImportEndFrame, ImportDrawRectangle}

// PlatformImports returns the names of every host function, sorted.
func PlatformImports() []string {
	names := make([]string, 0, len(platformImports))
	for name := range platformImports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PlatformSignature returns the signature of a host function.
func PlatformSignature(name string) (Signature, bool) {
	sig, ok := platformImports[name]
	return sig, ok
}

// Exports returns the signatures of the exports a module of the given mode
// must provide, under their plain names.
func Exports(mode wire.Mode) map[string]Signature {
	update := sigUpdatePull
	if mode == wire.ModePush {
		update = sigUpdatePush
	}
	return map[string]Signature{
		ExportAlloc:  sigAlloc,
		ExportFree:   sigFree,
		ExportInit:   sigInit,
		ExportUpdate: update,
	}
}

// PlatformImport returns the import entry for a host function.
func PlatformImport(name string) Import {
	return Import{Module: PlatformModule, Name: name, Sig: platformImports[name]}
}

// ABI is the resolved frame ABI of one module.
type ABI struct {
	Mode    wire.Mode
	Alloc   string
	Free    string
	Init    string
	Update  string
	Retptr  string // empty when the host must allocate the return slot
	Imports []string
}

// ImportsFunc reports whether the module imports the named host function.
func (a ABI) ImportsFunc(name string) bool {
	for _, n := range a.Imports {
		if n == name {
			return true
		}
	}
	return false
}

// Inspect derives the ABI from a module description. It fails when an
// export is missing or malformed, when an import is not a known host
// function, or when the update shape and the imported primitives disagree
// on the output mode.
func Inspect(desc ModuleDesc) (ABI, error) {
	var abi ABI
	var missing []string

	if !desc.HasMemory {
		missing = append(missing, ExportMemory)
	}

	resolve := func(want Signature, names ...string) (string, error) {
		for _, name := range names {
			sig, ok := desc.Exports[name]
			if !ok {
				continue
			}
			if !sig.Equal(want) {
				return "", errors.New(errors.PhaseLoad, errors.KindProtocol).
					Path("export", name).
					Detail("signature %s, want %s", sig, want).
					Build()
			}
			return name, nil
		}
		return "", nil
	}

	var err error
	if abi.Alloc, err = resolve(sigAlloc, ExportAlloc, bindgenAlloc); err != nil {
		return ABI{}, err
	}
	if abi.Alloc == "" {
		missing = append(missing, ExportAlloc)
	}
	if abi.Free, err = resolve(sigFree, ExportFree, bindgenFree); err != nil {
		return ABI{}, err
	}
	if abi.Free == "" {
		missing = append(missing, ExportFree)
	}
	if abi.Init, err = resolve(sigInit, ExportInit); err != nil {
		return ABI{}, err
	}
	if abi.Init == "" {
		missing = append(missing, ExportInit)
	}
	if abi.Retptr, err = resolve(sigRetptr, ExportRetptr, bindgenRetptr); err != nil {
		return ABI{}, err
	}

	if sig, ok := desc.Exports[ExportUpdate]; ok {
		abi.Update = ExportUpdate
		switch {
		case sig.Equal(sigUpdatePull):
			abi.Mode = wire.ModePull
		case sig.Equal(sigUpdatePush):
			abi.Mode = wire.ModePush
		default:
			return ABI{}, errors.New(errors.PhaseLoad, errors.KindProtocol).
				Path("export", ExportUpdate).
				Detail("signature %s matches neither %s (pull) nor %s (push)", sig, sigUpdatePull, sigUpdatePush).
				Build()
		}
	} else {
		missing = append(missing, ExportUpdate)
	}

	if len(missing) > 0 {
		return ABI{}, errors.New(errors.PhaseLoad, errors.KindMissingExport).
			Cause(&errors.MissingExportsError{Exports: missing}).
			Detail("module does not implement the frame ABI").
			Build()
	}

	for _, imp := range desc.Imports {
		if imp.Module != PlatformModule {
			return ABI{}, errors.New(errors.PhaseLoad, errors.KindUnsupported).
				Path("import", imp.Module, imp.Name).
				Detail("unknown import module %q", imp.Module).
				Build()
		}
		want, ok := platformImports[imp.Name]
		if !ok {
			return ABI{}, errors.New(errors.PhaseLoad, errors.KindUnsupported).
				Path("import", imp.Module, imp.Name).
				Detail("unknown host function").
				Build()
		}
		if !imp.Sig.Equal(want) {
			return ABI{}, errors.New(errors.PhaseLoad, errors.KindProtocol).
				Path("import", imp.Module, imp.Name).
				Detail("signature %s, want %s", imp.Sig, want).
				Build()
		}
		abi.Imports = append(abi.Imports, imp.Name)
	}
	sort.Strings(abi.Imports)

	if err := checkMode(abi); err != nil {
		return ABI{}, err
	}
	return abi, nil
}

// checkMode enforces that exactly one output mode is in effect.
func checkMode(abi ABI) error {
	var drawing []string
	for _, name := range drawImports {
		if abi.ImportsFunc(name) {
			drawing = append(drawing, name)
		}
	}

	switch abi.Mode {
	case wire.ModePull:
		if len(drawing) > 0 {
			return errors.ModeConflict(errors.PhaseLoad,
				"pull-shaped update but module imports push primitives "+strings.Join(drawing, ", "))
		}
		return nil
	case wire.ModePush:
		if abi.Retptr != "" {
			return errors.ModeConflict(errors.PhaseLoad,
				"push-shaped update but module exports return slot "+abi.Retptr)
		}
		if len(drawing) != len(drawImports) {
			return errors.ModeConflict(errors.PhaseLoad,
				"push-shaped update but module does not import "+strings.Join(missingOf(drawImports, drawing), ", "))
		}
		return nil
	}
	return errors.ModeConflict(errors.PhaseLoad, "no output mode")
}

func missingOf(all, have []string) []string {
	var out []string
	for _, name := range all {
		found := false
		for _, h := range have {
			if h == name {
				found = true
				break
			}
		}
		if !found {
			out = append(out, name)
		}
	}
	return out
}
