package framehost

// Memory represents engine linear memory.
//
// Read returns a slice that aliases the engine's memory. The slice is only
// valid until the next call that may grow the memory; callers must not
// retain it across an allocation or an engine call.
type Memory interface {
	MemorySizer
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of engine linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory inside the engine through its exported
// allocate/release primitives.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr, size uint32) error
}
