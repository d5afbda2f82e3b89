// Package pmm manages physical memory frame allocations using a buddy
// allocator: free blocks are tracked per power-of-two order, and a freed
// block is merged with its buddy whenever both are free at the same order.
package pmm

import (
	"armkernel/kernel/mem"
	"math"
)

// Frame describes a physical memory page index (not a byte address).
type Frame uintptr

// InvalidFrame is returned by allocators when they fail to reserve the
// requested frame.
const InvalidFrame = Frame(math.MaxUint32)

// Valid returns true if this is not the InvalidFrame sentinel.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical byte address for this frame.
func (f Frame) Address() uintptr {
	return uintptr(f) << mem.PageShift
}

// FrameFromAddress returns the Frame containing the given physical address.
func FrameFromAddress(addr uintptr) Frame {
	return Frame(addr >> mem.PageShift)
}
