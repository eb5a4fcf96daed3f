package marshal

import (
	"encoding/binary"

	"github.com/wippyai/wasm-frame-host/errors"
)

// View is a cached byte-addressable view over engine memory.
type View struct {
	m    *Marshaller
	data []byte
	gen  uint64
}

// Valid reports whether the view still reflects the current memory region.
func (v View) Valid() bool {
	return v.m != nil && v.gen == v.m.gen && uint32(len(v.data)) == v.m.mem.Size()
}

// Len returns the length of the memory region the view was built over.
func (v View) Len() uint32 {
	return uint32(len(v.data))
}

// Slice returns the bytes in [offset, offset+length). The returned slice
// aliases engine memory and must not be retained.
func (v View) Slice(offset, length uint32) ([]byte, error) {
	if !v.Valid() {
		return nil, errors.StaleView("byte")
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(v.data)) {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length, uint32(len(v.data)))
	}
	return v.data[offset:end:end], nil
}

// WordView is a cached 32-bit little-endian view over engine memory.
type WordView struct {
	bytes View
}

// Valid reports whether the view still reflects the current memory region.
func (w WordView) Valid() bool {
	return w.bytes.Valid()
}

// U32 reads the word at a byte offset.
func (w WordView) U32(offset uint32) (uint32, error) {
	if !w.Valid() {
		return 0, errors.StaleView("word")
	}
	b, err := w.bytes.Slice(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// PutU32 writes the word at a byte offset.
func (w WordView) PutU32(offset, value uint32) error {
	if !w.Valid() {
		return errors.StaleView("word")
	}
	b, err := w.bytes.Slice(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}
