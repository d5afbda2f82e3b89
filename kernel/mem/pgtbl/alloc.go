// Package pgtbl allocates the 1 KiB second-level page tables used by the
// user (TTBR0) address space. The frame allocator in kernel/mem/pmm only
// ever hands out whole 4 KiB frames, but ARM's coarse second-level page
// table is 1 KiB (256 32-bit entries): this package is the slab layer that
// carves one frame into four such blocks and hands them out individually,
// the way original_source/src/vm.c's kpt_alloc/kpt_free do for xv6-rpi.
package pgtbl

import (
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/hal"
	"armkernel/kernel/mem"
	"armkernel/kernel/mem/pmm"
	"armkernel/kernel/sync"
)

const (
	blockSize      = 1024
	blocksPerFrame = int(mem.PageSize) / blockSize
)

var errOutOfMemory = &kernel.Error{Module: "pgtbl", Message: "out of memory"}

// The four seams below route every touch of pmm through package-level vars
// instead of calling pmm directly, the same indirection vmm's walk.go uses
// over pgtbl/pmm: it lets this package's own tests back carved frames with
// real Go-heap buffers instead of dereferencing direct-map addresses of real
// frames. Blocks are handed out as kernel-virtual direct-map addresses
// (hal.P2V of the frame), the form vmm's Walk and FreeVM expect.
var (
	frameAllocFn       = pmm.AllocFrame
	frameFreeFn        = pmm.FreeFrame
	frameBaseFn        = func(f pmm.Frame) uintptr { return hal.P2V(f.Address()) }
	frameFromAddressFn = func(v uintptr) pmm.Frame { return pmm.FrameFromAddress(hal.V2P(v)) }
)

// freeBlock overlays an unused block: the intrusive free-list pointer lives
// in the block's own memory, just as original_source/src/vm.c's
// "struct run" does.
type freeBlock struct {
	next uintptr
}

// Allocator is a slab over pmm frames, plus an optional boot pool of
// blocks that were never frame-backed (see FreeRange).
type Allocator struct {
	lock     sync.Spinlock
	freeList uintptr

	// freeCount[f] is the number of f's four blocks currently sitting on
	// freeList. A frame present in this map was carved from pmm and can
	// be handed back to pmm once all four of its blocks are free again.
	// A block whose frame has no entry here came from FreeRange and is
	// never returned: Free leaves it on freeList forever.
	freeCount map[pmm.Frame]int
}

// Global is the kernel-wide page-table slab allocator.
var Global Allocator

// FreeRange seeds the boot pool with the 1 KiB-aligned blocks in [low,
// high): a statically reserved region the linker carves out before pmm is
// initialized, used to hand out the first few page tables (the ones
// backing the boot page directory itself) before the frame allocator
// exists. Grounded on original_source/src/vm.c's kpt_freerange.
func (a *Allocator) FreeRange(low, high uintptr) {
	a.lock.Acquire()
	defer a.lock.Release()
	for low+blockSize <= high {
		a.push(low)
		low += blockSize
	}
}

// Alloc returns a zeroed 1 KiB block. Grounded on
// original_source/src/vm.c's kpt_alloc: pop the internal free list, and if
// it is empty, carve a fresh frame from pmm into four blocks first.
func (a *Allocator) Alloc() (uintptr, *kernel.Error) {
	a.lock.Acquire()
	if a.freeList == 0 {
		if err := a.carveLocked(); err != nil {
			a.lock.Release()
			return 0, err
		}
	}
	v := a.pop()
	a.lock.Release()

	kernel.Memset(v, 0, blockSize)
	return v, nil
}

// Free returns a block obtained from Alloc or FreeRange. Blocks carved from
// a pmm frame are returned to pmm as soon as all four of that frame's
// blocks are free again; boot-pool blocks are never returned to pmm, only
// to this allocator's own free list. Grounded on
// original_source/src/vm.c's kpt_free.
func (a *Allocator) Free(v uintptr) *kernel.Error {
	a.lock.Acquire()
	defer a.lock.Release()

	f := frameFromAddressFn(v)
	a.push(v)

	count, tracked := a.freeCount[f]
	if !tracked {
		return nil
	}
	count++
	if count < blocksPerFrame {
		a.freeCount[f] = count
		return nil
	}

	a.removeFrameBlocks(f)
	delete(a.freeCount, f)
	return frameFreeFn(f)
}

func (a *Allocator) carveLocked() *kernel.Error {
	f, err := frameAllocFn()
	if err != nil {
		return errOutOfMemory
	}

	base := frameBaseFn(f)
	for i := 0; i < blocksPerFrame; i++ {
		a.push(base + uintptr(i)*blockSize)
	}

	if a.freeCount == nil {
		a.freeCount = make(map[pmm.Frame]int)
	}
	a.freeCount[f] = blocksPerFrame
	return nil
}

func (a *Allocator) push(v uintptr) {
	blk := (*freeBlock)(unsafe.Pointer(v))
	blk.next = a.freeList
	a.freeList = v
}

// pop removes and returns the free list head. Caller must hold a.lock and
// must have already verified the list is non-empty.
func (a *Allocator) pop() uintptr {
	v := a.freeList
	blk := (*freeBlock)(unsafe.Pointer(v))
	a.freeList = blk.next

	if f := frameFromAddressFn(v); a.freeCount != nil {
		if c, ok := a.freeCount[f]; ok {
			a.freeCount[f] = c - 1
		}
	}
	return v
}

// removeFrameBlocks walks the free list removing every block that belongs
// to frame f. Called only once count reaches blocksPerFrame, so it always
// finds exactly blocksPerFrame-1 entries (the one just pushed by Free is
// left out of this count but is itself present at the list head).
func (a *Allocator) removeFrameBlocks(f pmm.Frame) {
	var prev uintptr
	cur := a.freeList
	for cur != 0 {
		next := (*freeBlock)(unsafe.Pointer(cur)).next
		if frameFromAddressFn(cur) == f {
			if prev == 0 {
				a.freeList = next
			} else {
				(*freeBlock)(unsafe.Pointer(prev)).next = next
			}
			cur = next
			continue
		}
		prev = cur
		cur = next
	}
}

// Alloc allocates a zeroed 1 KiB page-table block from Global.
func Alloc() (uintptr, *kernel.Error) { return Global.Alloc() }

// Free releases a block back to Global.
func Free(v uintptr) *kernel.Error { return Global.Free(v) }

// FreeRange seeds Global's boot pool.
func FreeRange(low, high uintptr) { Global.FreeRange(low, high) }
