package pmm

import (
	"armkernel/kernel"
	"armkernel/kernel/sync"
)

// MaxOrder bounds the largest block the allocator will track: a block of
// order MaxOrder spans 1<<MaxOrder frames. 10 gives a largest block of 4 MiB,
// comfortably larger than anything this kernel allocates in one call
// (page tables, process page directories, single user pages).
const MaxOrder = 10

const noBlock = ^uint32(0)

// blockDescriptor is the buddy allocator's per-frame bookkeeping entry. The
// array of descriptors is the "arena" spec.md's design notes ask for: free
// lists are chains of arena indices, never raw pointers, so a descriptor can
// be validated against arena bounds before it is ever dereferenced.
type blockDescriptor struct {
	// free is true iff this frame is the lowest frame of a free block.
	// Only the lowest frame of a block carries live free-list state;
	// the other 2^order - 1 frames covered by the block are untouched.
	free bool
	// order is the order of the free block headed by this frame. Only
	// meaningful when free is true.
	order uint8
	// next/prev chain this descriptor into the free list for its order.
	// Indices are relative to Allocator.start, not absolute frame numbers.
	next, prev uint32
}

// freeList is a doubly-linked list of same-order free blocks, indexed by
// their head frame's arena-relative index.
type freeList struct {
	head uint32
}

// Allocator is a buddy allocator over a single contiguous physical region
// [start, start+len(descriptors)) expressed in frames.
type Allocator struct {
	lock        sync.Spinlock
	start       Frame
	descriptors []blockDescriptor
	free        [MaxOrder + 1]freeList
}

var (
	errOutOfMemory  = &kernel.Error{Module: "pmm", Message: "out of memory"}
	errBadOrder     = &kernel.Error{Module: "pmm", Message: "requested order exceeds MaxOrder"}
	errDoubleFree   = &kernel.Error{Module: "pmm", Message: "frame freed while still free"}
	errUnalignedReg = &kernel.Error{Module: "pmm", Message: "region is not frame-aligned"}
)

// Global is the kernel-wide frame allocator, initialized once by boot with
// the span of physical RAM that is not already claimed by the kernel image.
var Global Allocator

// Init prepares the allocator to manage every frame in [lo, hi). The region
// length need not be a power of two: Init carves it into the largest
// aligned power-of-two blocks it can and seeds each onto its free list,
// exactly as a buddy allocator over an arbitrary-length arena must.
func (a *Allocator) Init(lo, hi Frame) *kernel.Error {
	if hi < lo {
		return errUnalignedReg
	}

	a.start = lo
	n := uint32(hi - lo)
	a.descriptors = make([]blockDescriptor, n)
	for i := range a.free {
		a.free[i].head = noBlock
	}

	// Carve [0, n) into maximal aligned power-of-two runs and release each
	// one through the normal free path so the invariants (alignment,
	// coalescing) are established by the same code a caller would use.
	var idx uint32
	for idx < n {
		order := uint8(MaxOrder)
		for order > 0 {
			blockLen := uint32(1) << order
			if idx%blockLen == 0 && idx+blockLen <= n {
				break
			}
			order--
		}
		a._release(idx, order)
		idx += uint32(1) << order
	}

	return nil
}

// AllocOrder removes and returns the base frame of a free block of exactly
// 1<<order contiguous frames. It returns InvalidFrame and errOutOfMemory if
// no sufficiently large block is available; there is no retry.
func (a *Allocator) AllocOrder(order uint8) (Frame, *kernel.Error) {
	if order > MaxOrder {
		return InvalidFrame, errBadOrder
	}

	a.lock.Acquire()
	defer a.lock.Release()

	j := order
	for j <= MaxOrder && a.free[j].head == noBlock {
		j++
	}
	if j > MaxOrder {
		return InvalidFrame, errOutOfMemory
	}

	idx := a._popFree(j)

	// Split the block down from order j to the requested order, pushing
	// each split-off buddy onto its own free list.
	for j > order {
		j--
		buddyIdx := idx + (uint32(1) << j)
		a._pushFree(buddyIdx, j)
	}

	return a.start + Frame(idx), nil
}

// FreeOrder returns a block of 1<<order frames, starting at f, to the
// allocator. It coalesces with f's buddy (and that merge's buddy, and so on)
// whenever the buddy is present on the free list at the same order.
func (a *Allocator) FreeOrder(f Frame, order uint8) *kernel.Error {
	if order > MaxOrder || f < a.start {
		return errBadOrder
	}
	idx := uint32(f - a.start)
	if int(idx) >= len(a.descriptors) {
		return errBadOrder
	}
	if a.descriptors[idx].free {
		return errDoubleFree
	}

	a.lock.Acquire()
	defer a.lock.Release()

	a._release(idx, order)
	return nil
}

// AllocFrame allocates a single 4 KiB frame; it is AllocOrder(0).
func (a *Allocator) AllocFrame() (Frame, *kernel.Error) { return a.AllocOrder(0) }

// FreeFrame releases a single 4 KiB frame; it is FreeOrder(f, 0).
func (a *Allocator) FreeFrame(f Frame) *kernel.Error { return a.FreeOrder(f, 0) }

// _release pushes [idx, idx+1<<order) onto the free lists, coalescing with
// the buddy at each order as long as the buddy is itself free and whole
// (not currently split into smaller blocks in use elsewhere). Caller must
// hold a.lock.
func (a *Allocator) _release(idx uint32, order uint8) {
	for order < MaxOrder {
		buddyIdx := idx ^ (uint32(1) << order)
		if int(buddyIdx) >= len(a.descriptors) {
			break
		}
		bd := &a.descriptors[buddyIdx]
		if !bd.free || bd.order != order {
			break
		}

		// Buddy is free at the same order: remove it from its free
		// list and merge upward.
		a._unlink(buddyIdx, order)
		if buddyIdx < idx {
			idx = buddyIdx
		}
		order++
	}

	a._pushFree(idx, order)
}

func (a *Allocator) _pushFree(idx uint32, order uint8) {
	bd := &a.descriptors[idx]
	bd.free = true
	bd.order = order
	bd.prev = noBlock
	bd.next = a.free[order].head
	if bd.next != noBlock {
		a.descriptors[bd.next].prev = idx
	}
	a.free[order].head = idx
}

// _popFree removes and returns the head of the free list at order j. Caller
// must hold a.lock and must have already verified the list is non-empty.
func (a *Allocator) _popFree(j uint8) uint32 {
	idx := a.free[j].head
	a._unlink(idx, j)
	return idx
}

func (a *Allocator) _unlink(idx uint32, order uint8) {
	bd := &a.descriptors[idx]
	if bd.prev == noBlock {
		a.free[order].head = bd.next
	} else {
		a.descriptors[bd.prev].next = bd.next
	}
	if bd.next != noBlock {
		a.descriptors[bd.next].prev = bd.prev
	}
	bd.free = false
}

// Init wires the package-level Global allocator; a thin wrapper so callers
// (boot) do not need to reach into the Allocator type directly.
func Init(lo, hi Frame) *kernel.Error { return Global.Init(lo, hi) }

// AllocFrame allocates a single frame from Global.
func AllocFrame() (Frame, *kernel.Error) { return Global.AllocFrame() }

// FreeFrame releases a single frame back to Global.
func FreeFrame(f Frame) *kernel.Error { return Global.FreeFrame(f) }

// AllocOrder allocates 1<<order contiguous frames from Global.
func AllocOrder(order uint8) (Frame, *kernel.Error) { return Global.AllocOrder(order) }

// FreeOrder releases 1<<order contiguous frames, starting at f, to Global.
func FreeOrder(f Frame, order uint8) *kernel.Error { return Global.FreeOrder(f, order) }

// NumFreeFrames returns the number of frames currently sitting on a's free
// lists, summed across all orders. Used by diagnostics and tests.
func (a *Allocator) NumFreeFrames() int {
	a.lock.Acquire()
	defer a.lock.Release()

	total := 0
	for order := uint8(0); order <= MaxOrder; order++ {
		for idx := a.free[order].head; idx != noBlock; idx = a.descriptors[idx].next {
			total += 1 << order
		}
	}
	return total
}
