package sandbox

import (
	"fmt"
	"sort"

	"github.com/wippyai/wasm-frame-host/engine"
)

const heapAlign = 8

type block struct{ ptr, size uint32 }

// heap is a first-fit free-list allocator inside a LinearMemory. The break
// only moves up; memory grows a page at a time when the break passes the
// end.
type heap struct {
	mem  *engine.LinearMemory
	live map[uint32]uint32
	free []block // sorted by ptr, never adjacent
	brk  uint32
}

func newHeap(mem *engine.LinearMemory, base uint32) *heap {
	return &heap{mem: mem, live: make(map[uint32]uint32), brk: alignUp(base)}
}

func alignUp(n uint32) uint32 {
	return (n + heapAlign - 1) &^ (heapAlign - 1)
}

// alloc returns a pointer to size bytes, or 0 when memory cannot grow.
func (h *heap) alloc(size uint32) uint32 {
	n := alignUp(size)
	if n == 0 {
		n = heapAlign
	}

	for i, b := range h.free {
		if b.size < n {
			continue
		}
		if b.size == n {
			h.free = append(h.free[:i], h.free[i+1:]...)
		} else {
			h.free[i] = block{ptr: b.ptr + n, size: b.size - n}
		}
		h.live[b.ptr] = n
		return b.ptr
	}

	end := uint64(h.brk) + uint64(n)
	for end > uint64(h.mem.Size()) {
		if _, ok := h.mem.Grow(1); !ok {
			return 0
		}
	}
	ptr := h.brk
	h.brk = uint32(end)
	h.live[ptr] = n
	return ptr
}

// release returns a block to the free list, merging it with its
// neighbours.
func (h *heap) release(ptr, size uint32) error {
	n, ok := h.live[ptr]
	if !ok {
		return fmt.Errorf("free of unallocated pointer %#x", ptr)
	}
	if alignUp(size) > n {
		return fmt.Errorf("free of %d bytes at %#x, block holds %d", size, ptr, n)
	}
	delete(h.live, ptr)

	i := sort.Search(len(h.free), func(i int) bool { return h.free[i].ptr > ptr })
	h.free = append(h.free, block{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = block{ptr: ptr, size: n}

	if i+1 < len(h.free) && h.free[i].ptr+h.free[i].size == h.free[i+1].ptr {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].ptr+h.free[i-1].size == h.free[i].ptr {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
	return nil
}

// inUse returns the number of live allocations.
func (h *heap) inUse() int { return len(h.live) }
