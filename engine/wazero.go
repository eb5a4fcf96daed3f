package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	framehost "github.com/wippyai/wasm-frame-host"
	"github.com/wippyai/wasm-frame-host/errors"
)

// WazeroName is the registry name of the wazero backend.
const WazeroName = "wazero"

// WazeroBackend runs modules on the pure-Go wazero runtime.
type WazeroBackend struct {
	runtime  wazero.Runtime
	cache    *moduleCache
	hostErr  error
	hostOnce sync.Once
	mu       sync.Mutex
	compiled []*wazeroCompiled
}

// NewWazeroBackend creates a wazero runtime with the given limits.
func NewWazeroBackend(ctx context.Context, cfg Config) *WazeroBackend {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &WazeroBackend{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cache:   newModuleCache(cfg.CacheSize),
	}
}

func (b *WazeroBackend) Name() string { return WazeroName }

// Compile compiles a core wasm binary, reusing a cached result for
// identical bytes.
func (b *WazeroBackend) Compile(ctx context.Context, src []byte) (Compiled, error) {
	m, hit, err := b.cache.getOrCompile(ctx, src, b.compile)
	if err != nil {
		return nil, err
	}
	Logger().Debug("module compiled",
		zap.String("backend", WazeroName),
		zap.Int("bytes", len(src)),
		zap.Bool("cached", hit))
	return m, nil
}

func (b *WazeroBackend) compile(ctx context.Context, src []byte) (Compiled, error) {
	compiled, err := b.runtime.CompileModule(ctx, src)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	c := &wazeroCompiled{
		backend:  b,
		compiled: compiled,
		desc:     describeWazero(compiled),
	}
	b.mu.Lock()
	b.compiled = append(b.compiled, c)
	b.mu.Unlock()
	return c, nil
}

// Close releases the runtime and every module compiled on it.
func (b *WazeroBackend) Close(ctx context.Context) error {
	b.cache.purge()
	b.mu.Lock()
	b.compiled = nil
	b.mu.Unlock()
	return b.runtime.Close(ctx)
}

// initHostModule instantiates the shared "platform" module once. Each host
// function resolves the Host serving the current call from its context.
func (b *WazeroBackend) initHostModule(ctx context.Context) error {
	b.hostOnce.Do(func() {
		builder := b.runtime.NewHostModuleBuilder(PlatformModule)
		for _, name := range PlatformImports() {
			sig := platformImports[name]
			builder.NewFunctionBuilder().
				WithGoModuleFunction(wazeroHostFunc(name), wazeroTypes(sig.Params), wazeroTypes(sig.Results)).
				Export(name)
		}
		_, b.hostErr = builder.Instantiate(ctx)
	})
	return b.hostErr
}

// wazeroHostFunc adapts one platform import to the Host interface. A host
// error panics, which wazero turns into an error returned from the guest
// call that is in progress.
func wazeroHostFunc(name string) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		host := hostFrom(ctx)
		if host == nil {
			panic(errors.Protocol(errors.PhaseBridge, "host function "+name+" called outside an engine call"))
		}

		text := func() []byte {
			ptr, length := I32Result(stack[0]), I32Result(stack[1])
			data, ok := mod.Memory().Read(ptr, length)
			if !ok {
				panic(errors.OutOfBounds(errors.PhaseBridge, ptr, length, mod.Memory().Size()))
			}
			return copyText(data)
		}

		var err error
		switch name {
		case ImportRandom:
			stack[0] = F32Arg(host.Random())
		case ImportLog:
			host.Log(text())
		case ImportAlert:
			host.Alert(text())
		case ImportThrow, bindgenThrow:
			err = host.Throw(text())
		case ImportStartFrame:
			err = host.StartFrame()
		case ImportEndFrame:
			err = host.EndFrame()
		case ImportDrawRectangle:
			err = host.DrawRectangle(
				F32Result(stack[0]), F32Result(stack[1]), F32Result(stack[2]), F32Result(stack[3]),
				F32Result(stack[4]), F32Result(stack[5]), F32Result(stack[6]))
		}
		if err != nil {
			panic(err)
		}
	}
}

func wazeroTypes(ts []ValueType) []api.ValueType {
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		switch t {
		case I32:
			out[i] = api.ValueTypeI32
		case I64:
			out[i] = api.ValueTypeI64
		case F32:
			out[i] = api.ValueTypeF32
		case F64:
			out[i] = api.ValueTypeF64
		}
	}
	return out
}

func fromWazeroTypes(ts []api.ValueType) []ValueType {
	out := make([]ValueType, len(ts))
	for i, t := range ts {
		switch t {
		case api.ValueTypeI32:
			out[i] = I32
		case api.ValueTypeI64:
			out[i] = I64
		case api.ValueTypeF32:
			out[i] = F32
		case api.ValueTypeF64:
			out[i] = F64
		}
	}
	return out
}

func describeWazero(compiled wazero.CompiledModule) ModuleDesc {
	desc := ModuleDesc{Exports: make(map[string]Signature)}
	for name, def := range compiled.ExportedFunctions() {
		desc.Exports[name] = Signature{
			Params:  fromWazeroTypes(def.ParamTypes()),
			Results: fromWazeroTypes(def.ResultTypes()),
		}
	}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		desc.Imports = append(desc.Imports, Import{
			Module: module,
			Name:   name,
			Sig: Signature{
				Params:  fromWazeroTypes(def.ParamTypes()),
				Results: fromWazeroTypes(def.ResultTypes()),
			},
		})
	}
	_, desc.HasMemory = compiled.ExportedMemories()[ExportMemory]
	return desc
}

// wazeroCompiled is a compiled module bound to its backend's runtime.
type wazeroCompiled struct {
	backend  *WazeroBackend
	compiled wazero.CompiledModule
	desc     ModuleDesc
}

func (c *wazeroCompiled) Describe() ModuleDesc { return c.desc }

// Instantiate creates an anonymous instance so several instances of one
// module can coexist.
func (c *wazeroCompiled) Instantiate(ctx context.Context, host Host) (Instance, error) {
	if err := c.backend.initHostModule(ctx); err != nil {
		return nil, errors.Instantiation(err)
	}

	modConfig := wazero.NewModuleConfig().WithName("")
	mod, err := c.backend.runtime.InstantiateModule(withHost(ctx, host), c.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst := &WazeroInstance{
		module:    mod,
		host:      host,
		funcCache: make(map[string]api.Function),
	}
	if mem := mod.Memory(); mem != nil {
		inst.memory = &WazeroMemory{mem: mem}
	}
	return inst, nil
}

// WazeroInstance is a running wazero module.
type WazeroInstance struct {
	module    api.Module
	memory    *WazeroMemory
	host      Host
	funcCache map[string]api.Function
}

func (i *WazeroInstance) Memory() framehost.Memory {
	if i.memory == nil {
		return nil
	}
	return i.memory
}

// Call invokes an export with the instance's host attached to the context.
func (i *WazeroInstance) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.module == nil {
		return nil, errors.Closed(errors.PhaseUpdate, "instance")
	}
	fn, ok := i.funcCache[name]
	if !ok {
		fn = i.module.ExportedFunction(name)
		if fn == nil {
			return nil, errors.NotFound(errors.PhaseUpdate, "export", name)
		}
		i.funcCache[name] = fn
	}
	results, err := fn.Call(withHost(ctx, i.host), args...)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.module == nil {
		return nil
	}
	err := i.module.Close(ctx)
	i.module = nil
	i.memory = nil
	i.funcCache = nil
	return err
}

// WazeroMemory wraps wazero memory to implement framehost.Memory
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length, m.mem.Size())
	}
	return data, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, uint32(len(data)), m.mem.Size())
	}
	return nil
}

func (m *WazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 4, m.mem.Size())
	}
	return val, nil
}

func (m *WazeroMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, 4, m.mem.Size())
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

var _ framehost.Memory = (*WazeroMemory)(nil)
var _ Instance = (*WazeroInstance)(nil)
