package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/bytecodealliance/wasmtime-go"
	"go.uber.org/zap"

	framehost "github.com/wippyai/wasm-frame-host"
	"github.com/wippyai/wasm-frame-host/errors"
)

// WasmtimeName is the registry name of the wasmtime backend.
const WasmtimeName = "wasmtime"

// WasmtimeBackend runs modules on wasmtime through cgo.
type WasmtimeBackend struct {
	engine     *wasmtime.Engine
	cache      *moduleCache
	limitPages uint64
}

// NewWasmtimeBackend creates a wasmtime engine with the given limits.
// wasmtime has no per-store memory limiter here, so the page limit is
// checked when a module is compiled and again after every call.
func NewWasmtimeBackend(cfg Config) *WasmtimeBackend {
	return &WasmtimeBackend{
		engine:     wasmtime.NewEngine(),
		cache:      newModuleCache(cfg.CacheSize),
		limitPages: uint64(cfg.MemoryLimitPages),
	}
}

func (b *WasmtimeBackend) Name() string { return WasmtimeName }

func (b *WasmtimeBackend) Compile(ctx context.Context, src []byte) (Compiled, error) {
	m, hit, err := b.cache.getOrCompile(ctx, src, b.compile)
	if err != nil {
		return nil, err
	}
	Logger().Debug("module compiled",
		zap.String("backend", WasmtimeName),
		zap.Int("bytes", len(src)),
		zap.Bool("cached", hit))
	return m, nil
}

func (b *WasmtimeBackend) compile(_ context.Context, src []byte) (Compiled, error) {
	module, err := wasmtime.NewModule(b.engine, src)
	if err != nil {
		return nil, errors.Load("compile failed", err)
	}
	if err := b.checkMemoryType(module); err != nil {
		return nil, err
	}
	return &wasmtimeCompiled{backend: b, module: module, desc: describeWasmtime(module)}, nil
}

// checkMemoryType rejects a module whose exported memory starts above the
// page limit.
func (b *WasmtimeBackend) checkMemoryType(module *wasmtime.Module) error {
	if b.limitPages == 0 {
		return nil
	}
	for _, exp := range module.Exports() {
		mt := exp.Type().MemoryType()
		if mt == nil {
			continue
		}
		if mt.Minimum() > b.limitPages {
			return errors.Load(fmt.Sprintf("memory %q needs %d pages, limit is %d",
				exp.Name(), mt.Minimum(), b.limitPages), nil)
		}
	}
	return nil
}

func (b *WasmtimeBackend) Close(context.Context) error {
	b.cache.purge()
	return nil
}

func fromWasmtimeTypes(ts []*wasmtime.ValType) []ValueType {
	out := make([]ValueType, len(ts))
	for i, t := range ts {
		switch t.Kind() {
		case wasmtime.KindI32:
			out[i] = I32
		case wasmtime.KindI64:
			out[i] = I64
		case wasmtime.KindF32:
			out[i] = F32
		case wasmtime.KindF64:
			out[i] = F64
		}
	}
	return out
}

func describeWasmtime(module *wasmtime.Module) ModuleDesc {
	desc := ModuleDesc{Exports: make(map[string]Signature)}
	for _, exp := range module.Exports() {
		et := exp.Type()
		if ft := et.FuncType(); ft != nil {
			desc.Exports[exp.Name()] = Signature{
				Params:  fromWasmtimeTypes(ft.Params()),
				Results: fromWasmtimeTypes(ft.Results()),
			}
			continue
		}
		if et.MemoryType() != nil && exp.Name() == ExportMemory {
			desc.HasMemory = true
		}
	}
	for _, imp := range module.Imports() {
		ft := imp.Type().FuncType()
		if ft == nil {
			continue
		}
		name := ""
		if n := imp.Name(); n != nil {
			name = *n
		}
		desc.Imports = append(desc.Imports, Import{
			Module: imp.Module(),
			Name:   name,
			Sig: Signature{
				Params:  fromWasmtimeTypes(ft.Params()),
				Results: fromWasmtimeTypes(ft.Results()),
			},
		})
	}
	return desc
}

type wasmtimeCompiled struct {
	backend *WasmtimeBackend
	module  *wasmtime.Module
	desc    ModuleDesc
}

func (c *wasmtimeCompiled) Describe() ModuleDesc { return c.desc }

// Instantiate creates a store and linker private to the instance, so host
// functions close over the instance's Host directly.
func (c *wasmtimeCompiled) Instantiate(_ context.Context, host Host) (Instance, error) {
	store := wasmtime.NewStore(c.backend.engine)
	inst := &WasmtimeInstance{store: store, host: host, desc: c.desc, limitPages: c.backend.limitPages}
	linker := wasmtime.NewLinker(c.backend.engine)
	if err := inst.defineHost(linker); err != nil {
		return nil, errors.Instantiation(err)
	}

	instance, err := linker.Instantiate(store, c.module)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	inst.instance = instance
	if ext := instance.GetExport(store, ExportMemory); ext != nil {
		if mem := ext.Memory(); mem != nil {
			inst.memory = &WasmtimeMemory{mem: mem, store: store}
		}
	}
	return inst, nil
}

// WasmtimeInstance is a running wasmtime module.
type WasmtimeInstance struct {
	store    *wasmtime.Store
	instance *wasmtime.Instance
	memory   *WasmtimeMemory
	host       Host
	desc       ModuleDesc
	hostErr    error
	limitPages uint64
}

// fail records the first host error of the current call and returns the
// trap that unwinds the guest.
func (i *WasmtimeInstance) fail(err error) *wasmtime.Trap {
	if i.hostErr == nil {
		i.hostErr = err
	}
	return wasmtime.NewTrap(err.Error())
}

func (i *WasmtimeInstance) readText(caller *wasmtime.Caller, ptr, length int32) ([]byte, *wasmtime.Trap) {
	ext := caller.GetExport(ExportMemory)
	if ext == nil || ext.Memory() == nil {
		return nil, i.fail(errors.Protocol(errors.PhaseBridge, "engine has no memory export"))
	}
	data := ext.Memory().UnsafeData(caller)
	end := uint64(uint32(ptr)) + uint64(uint32(length))
	if end > uint64(len(data)) {
		return nil, i.fail(errors.OutOfBounds(errors.PhaseBridge, uint32(ptr), uint32(length), uint32(len(data))))
	}
	return copyText(data[uint32(ptr):end]), nil
}

func (i *WasmtimeInstance) defineHost(linker *wasmtime.Linker) error {
	check := func(err error) *wasmtime.Trap {
		if err != nil {
			return i.fail(err)
		}
		return nil
	}
	text := func(handle func([]byte) error) func(*wasmtime.Caller, int32, int32) *wasmtime.Trap {
		return func(caller *wasmtime.Caller, ptr, length int32) *wasmtime.Trap {
			msg, trap := i.readText(caller, ptr, length)
			if trap != nil {
				return trap
			}
			return check(handle(msg))
		}
	}
	throw := text(func(msg []byte) error { return i.host.Throw(msg) })

	funcs := map[string]interface{}{
		ImportRandom: func() float32 { return i.host.Random() },
		ImportLog:    text(func(msg []byte) error { i.host.Log(msg); return nil }),
		ImportAlert:  text(func(msg []byte) error { i.host.Alert(msg); return nil }),
		ImportThrow:  throw,
		bindgenThrow: throw,
		ImportStartFrame: func() *wasmtime.Trap {
			return check(i.host.StartFrame())
		},
		ImportEndFrame: func() *wasmtime.Trap {
			return check(i.host.EndFrame())
		},
		ImportDrawRectangle: func(minX, minY, maxX, maxY, red, green, blue float32) *wasmtime.Trap {
			return check(i.host.DrawRectangle(minX, minY, maxX, maxY, red, green, blue))
		},
	}
	for _, name := range PlatformImports() {
		if err := linker.FuncWrap(PlatformModule, name, funcs[name]); err != nil {
			return fmt.Errorf("define %s.%s: %w", PlatformModule, name, err)
		}
	}
	return nil
}

func (i *WasmtimeInstance) Memory() framehost.Memory {
	if i.memory == nil {
		return nil
	}
	return i.memory
}

// Call converts raw argument slots to the export's declared types. A host
// error raised during the call takes precedence over the resulting trap.
func (i *WasmtimeInstance) Call(_ context.Context, name string, args ...uint64) ([]uint64, error) {
	if i.instance == nil {
		return nil, errors.Closed(errors.PhaseUpdate, "instance")
	}
	sig, ok := i.desc.Exports[name]
	fn := i.instance.GetFunc(i.store, name)
	if !ok || fn == nil {
		return nil, errors.NotFound(errors.PhaseUpdate, "export", name)
	}
	if len(args) != len(sig.Params) {
		return nil, errors.InvalidInput(errors.PhaseUpdate,
			fmt.Sprintf("%s takes %d arguments, got %d", name, len(sig.Params), len(args)))
	}

	in := make([]interface{}, len(args))
	for n, slot := range args {
		switch sig.Params[n] {
		case I32:
			in[n] = int32(I32Result(slot))
		case I64:
			in[n] = int64(slot)
		case F32:
			in[n] = F32Result(slot)
		case F64:
			in[n] = math.Float64frombits(slot)
		}
	}

	i.hostErr = nil
	out, err := fn.Call(i.store, in...)
	if hostErr := i.hostErr; hostErr != nil {
		i.hostErr = nil
		return nil, hostErr
	}
	if err != nil {
		return nil, err
	}
	if err := i.checkLimit(name); err != nil {
		return nil, err
	}
	return wasmtimeResults(out), nil
}

// checkLimit fails the call when the engine grew its memory past the page
// limit. The failure is an allocation failure, so the session ends.
func (i *WasmtimeInstance) checkLimit(name string) error {
	if i.limitPages == 0 || i.memory == nil {
		return nil
	}
	pages := i.memory.mem.Size(i.store)
	if pages <= i.limitPages {
		return nil
	}
	return errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, nil,
		fmt.Sprintf("%s grew memory to %d pages, limit is %d", name, pages, i.limitPages))
}

func wasmtimeResults(out interface{}) []uint64 {
	switch v := out.(type) {
	case nil:
		return nil
	case int32:
		return []uint64{I32Arg(uint32(v))}
	case int64:
		return []uint64{uint64(v)}
	case float32:
		return []uint64{F32Arg(v)}
	case float64:
		return []uint64{math.Float64bits(v)}
	case []wasmtime.Val:
		res := make([]uint64, 0, len(v))
		for _, val := range v {
			res = append(res, wasmtimeResults(val.Get())...)
		}
		return res
	}
	return nil
}

func (i *WasmtimeInstance) Close(context.Context) error {
	i.instance = nil
	i.memory = nil
	return nil
}

// WasmtimeMemory wraps a wasmtime memory to implement framehost.Memory.
// Data is re-fetched on every access because growth moves it.
type WasmtimeMemory struct {
	mem   *wasmtime.Memory
	store *wasmtime.Store
}

func (m *WasmtimeMemory) data() []byte { return m.mem.UnsafeData(m.store) }

func (m *WasmtimeMemory) Size() uint32 { return uint32(m.mem.DataSize(m.store)) }

func (m *WasmtimeMemory) Read(offset, length uint32) ([]byte, error) {
	data := m.data()
	end := uint64(offset) + uint64(length)
	if end > uint64(len(data)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length, uint32(len(data)))
	}
	return data[offset:end:end], nil
}

func (m *WasmtimeMemory) Write(offset uint32, data []byte) error {
	dst, err := m.Read(offset, uint32(len(data)))
	if err != nil {
		return errors.OutOfBounds(errors.PhaseEncode, offset, uint32(len(data)), m.Size())
	}
	copy(dst, data)
	return nil
}

func (m *WasmtimeMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (m *WasmtimeMemory) WriteU32(offset, value uint32) error {
	return m.Write(offset, []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)})
}

var _ framehost.Memory = (*WasmtimeMemory)(nil)
var _ Instance = (*WasmtimeInstance)(nil)
