package engine

import (
	"encoding/binary"

	framehost "github.com/wippyai/wasm-frame-host"
	"github.com/wippyai/wasm-frame-host/errors"
)

// PageSize is the size of one linear memory page.
const PageSize = 65536

// maxPages is the largest 32-bit addressable page count.
const maxPages = 65536

// LinearMemory is a growable byte-addressed memory for Go-native engines.
// Growth allocates a new backing array, so slices obtained before a Grow
// no longer alias the memory.
type LinearMemory struct {
	data  []byte
	limit uint32
}

// NewLinearMemory creates a memory of the given initial size in pages.
// limit caps growth in pages; 0 means the 4GiB address space.
func NewLinearMemory(pages, limit uint32) *LinearMemory {
	if limit == 0 || limit > maxPages {
		limit = maxPages
	}
	if pages > limit {
		pages = limit
	}
	return &LinearMemory{data: make([]byte, int(pages)*PageSize), limit: limit}
}

// Pages returns the current size in pages.
func (m *LinearMemory) Pages() uint32 {
	return uint32(len(m.data) / PageSize)
}

// Grow adds delta pages and returns the previous page count. It reports
// false, leaving the memory unchanged, when the limit would be exceeded.
func (m *LinearMemory) Grow(delta uint32) (uint32, bool) {
	prev := m.Pages()
	if delta == 0 {
		return prev, true
	}
	if uint64(prev)+uint64(delta) > uint64(m.limit) {
		return prev, false
	}
	grown := make([]byte, (int(prev)+int(delta))*PageSize)
	copy(grown, m.data)
	m.data = grown
	return prev, true
}

func (m *LinearMemory) Size() uint32 {
	return uint32(len(m.data))
}

func (m *LinearMemory) Read(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length, m.Size())
	}
	return m.data[offset:end:end], nil
}

func (m *LinearMemory) Write(offset uint32, data []byte) error {
	end := uint64(offset) + uint64(len(data))
	if end > uint64(len(m.data)) {
		return errors.OutOfBounds(errors.PhaseEncode, offset, uint32(len(data)), m.Size())
	}
	copy(m.data[offset:end], data)
	return nil
}

func (m *LinearMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *LinearMemory) WriteU32(offset, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

var _ framehost.Memory = (*LinearMemory)(nil)
