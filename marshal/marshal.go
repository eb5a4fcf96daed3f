package marshal

import (
	"unicode/utf8"

	"go.uber.org/zap"

	framehost "github.com/wippyai/wasm-frame-host"
	"github.com/wippyai/wasm-frame-host/errors"
)

// Marshaller encodes and decodes values in one engine's linear memory.
// It is NOT safe for concurrent use.
type Marshaller struct {
	mem      framehost.Memory
	alloc    framehost.Allocator
	logger   *zap.Logger
	live     map[uint32]*Buffer
	bytes    View
	gen      uint64
	rebuilds int
}

// Option configures a Marshaller.
type Option func(*Marshaller)

// WithLogger sets the logger used for view rebuilds and release failures.
func WithLogger(l *zap.Logger) Option {
	return func(m *Marshaller) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Marshaller over mem, allocating through alloc.
func New(mem framehost.Memory, alloc framehost.Allocator, opts ...Option) *Marshaller {
	m := &Marshaller{
		mem:    mem,
		alloc:  alloc,
		logger: zap.NewNop(),
		live:   make(map[uint32]*Buffer),
		gen:    1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Invalidate drops the cached views. The next accessor rebuilds them.
func (m *Marshaller) Invalidate() {
	m.gen++
}

// Rebuilds returns how many times the cached views were rebuilt.
func (m *Marshaller) Rebuilds() int {
	return m.rebuilds
}

// Outstanding returns the number of owned buffers not yet released.
func (m *Marshaller) Outstanding() int {
	return len(m.live)
}

// Bytes returns the cached byte view, rebuilding it if it is stale.
func (m *Marshaller) Bytes() (View, error) {
	if m.bytes.Valid() {
		return m.bytes, nil
	}
	size := m.mem.Size()
	data, err := m.mem.Read(0, size)
	if err != nil {
		return View{}, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "map engine memory")
	}
	m.bytes = View{m: m, data: data, gen: m.gen}
	m.rebuilds++
	m.logger.Debug("memory view rebuilt", zap.Uint32("size", size), zap.Uint64("generation", m.gen))
	return m.bytes, nil
}

// Words returns the cached word view, rebuilding it if it is stale.
func (m *Marshaller) Words() (WordView, error) {
	v, err := m.Bytes()
	if err != nil {
		return WordView{}, err
	}
	return WordView{bytes: v}, nil
}

// Alloc allocates size bytes in the engine and invalidates cached views.
func (m *Marshaller) Alloc(size uint32) (uint32, error) {
	ptr, err := m.alloc.Alloc(size)
	m.Invalidate()
	if err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(size, nil)
	}
	return ptr, nil
}

// EncodeText writes the UTF-8 bytes of s into freshly allocated engine
// memory. The caller owns the returned buffer.
func (m *Marshaller) EncodeText(s string) (*Buffer, error) {
	if !utf8.ValidString(s) {
		return nil, errors.InvalidUTF8(errors.PhaseEncode, nil, []byte(s))
	}
	return m.EncodeBytes([]byte(s))
}

// EncodeBytes writes data into freshly allocated engine memory.
func (m *Marshaller) EncodeBytes(data []byte) (*Buffer, error) {
	size := uint32(len(data))
	ptr, err := m.Alloc(size)
	if err != nil {
		return nil, err
	}
	b := m.track(ptr, size)

	view, err := m.Bytes()
	if err != nil {
		m.discard(b)
		return nil, err
	}
	dst, err := view.Slice(ptr, size)
	if err != nil {
		m.discard(b)
		return nil, err
	}
	copy(dst, data)
	return b, nil
}

// DecodeText copies a UTF-8 string out of engine memory without taking
// ownership of the range.
func (m *Marshaller) DecodeText(ptr, length uint32) (string, error) {
	view, err := m.Bytes()
	if err != nil {
		return "", err
	}
	src, err := view.Slice(ptr, length)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(src) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, nil, src)
	}
	return string(src), nil
}

// Adopt takes ownership of a range returned by the engine.
func (m *Marshaller) Adopt(ptr, length uint32) (*Buffer, error) {
	view, err := m.Bytes()
	if err != nil {
		return nil, err
	}
	if _, err := view.Slice(ptr, length); err != nil {
		return nil, err
	}
	if _, owned := m.live[ptr]; owned && length > 0 {
		return nil, errors.Protocol(errors.PhaseDecode, "engine returned a buffer the host already owns")
	}
	return m.track(ptr, length), nil
}

// ReadPair reads a (ptr, len) pair stored at addr, as written through a
// return pointer.
func (m *Marshaller) ReadPair(addr uint32) (uint32, uint32, error) {
	words, err := m.Words()
	if err != nil {
		return 0, 0, err
	}
	ptr, err := words.U32(addr)
	if err != nil {
		return 0, 0, err
	}
	length, err := words.U32(addr + 4)
	if err != nil {
		return 0, 0, err
	}
	return ptr, length, nil
}

// Scope runs fn and releases every buffer acquired through the Scope when
// fn returns or panics. A release failure is reported only if fn succeeded.
func (m *Marshaller) Scope(fn func(s *Scope) error) (err error) {
	s := &Scope{m: m}
	defer func() {
		releaseErr := s.close()
		if err == nil {
			err = releaseErr
		}
	}()
	return fn(s)
}

func (m *Marshaller) track(ptr, length uint32) *Buffer {
	b := &Buffer{m: m, ptr: ptr, length: length}
	if length > 0 {
		m.live[ptr] = b
	}
	return b
}

// discard releases a buffer after a failed encode, logging any failure.
func (m *Marshaller) discard(b *Buffer) {
	if err := b.Release(); err != nil {
		m.logger.Warn("release after failed encode", zap.Uint32("ptr", b.ptr), zap.Error(err))
	}
}

func (m *Marshaller) release(b *Buffer) error {
	if b.length > 0 {
		delete(m.live, b.ptr)
	}
	if err := m.alloc.Free(b.ptr, b.length); err != nil {
		return errors.Wrap(errors.PhaseAlloc, errors.KindAllocation, err, "release engine buffer")
	}
	return nil
}
