package marshal

import (
	"unicode/utf8"

	"github.com/wippyai/wasm-frame-host/errors"
)

// Buffer is a (pointer, length) range of engine memory owned by the host.
// It must be released exactly once and is unreadable afterwards.
type Buffer struct {
	m        *Marshaller
	ptr      uint32
	length   uint32
	released bool
}

// Ptr returns the engine address of the buffer.
func (b *Buffer) Ptr() uint32 { return b.ptr }

// Len returns the buffer length in bytes.
func (b *Buffer) Len() uint32 { return b.length }

// Released reports whether Release has been called.
func (b *Buffer) Released() bool { return b.released }

// Bytes copies the buffer contents out of engine memory.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.released {
		return nil, errors.UseAfterRelease(b.ptr, b.length)
	}
	view, err := b.m.Bytes()
	if err != nil {
		return nil, err
	}
	src, err := view.Slice(b.ptr, b.length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// Text copies the buffer contents out as a UTF-8 string.
func (b *Buffer) Text() (string, error) {
	data, err := b.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidUTF8(errors.PhaseDecode, nil, data)
	}
	return string(data), nil
}

// Release frees the buffer inside the engine. A second call fails with
// KindDoubleRelease and does not reach the engine.
func (b *Buffer) Release() error {
	if b.released {
		return errors.DoubleRelease(b.ptr, b.length)
	}
	b.released = true
	return b.m.release(b)
}

// Scope tracks buffers acquired during one operation.
type Scope struct {
	m    *Marshaller
	bufs []*Buffer
}

// EncodeText encodes s into engine memory; the buffer is released when the
// scope ends.
func (s *Scope) EncodeText(text string) (*Buffer, error) {
	b, err := s.m.EncodeText(text)
	if err != nil {
		return nil, err
	}
	s.bufs = append(s.bufs, b)
	return b, nil
}

// EncodeBytes encodes data into engine memory; the buffer is released when
// the scope ends.
func (s *Scope) EncodeBytes(data []byte) (*Buffer, error) {
	b, err := s.m.EncodeBytes(data)
	if err != nil {
		return nil, err
	}
	s.bufs = append(s.bufs, b)
	return b, nil
}

// Adopt takes ownership of an engine-returned range; it is released when
// the scope ends.
func (s *Scope) Adopt(ptr, length uint32) (*Buffer, error) {
	b, err := s.m.Adopt(ptr, length)
	if err != nil {
		return nil, err
	}
	s.bufs = append(s.bufs, b)
	return b, nil
}

// close releases every buffer still held, in reverse acquisition order.
func (s *Scope) close() error {
	var first error
	for i := len(s.bufs) - 1; i >= 0; i-- {
		b := s.bufs[i]
		if b.released {
			continue
		}
		if err := b.Release(); err != nil && first == nil {
			first = err
		}
	}
	s.bufs = nil
	return first
}
