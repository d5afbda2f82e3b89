// Package goruntime bootstraps Go runtime features — principally the heap
// allocator — that need a backing store before package main can use new,
// make or interfaces. Adapted from the teacher's
// kernel/goruntime/bootstrap.go: the teacher's amd64 target maps kernel heap
// pages on demand (copy-on-write reservation, then a real mapping once the
// runtime touches a page) because its vmm only maps what it is asked to.
// This kernel's vmm instead section-maps the whole of physical RAM into the
// kernel's upper half at boot (kernel/boot, kernel/mem/vmm.InitKernelMap),
// so any physical frame is already reachable at hal.P2V(frame) with no
// further page-table work — sysReserve/sysMap/sysAlloc below hand out frames
// from that direct map instead of walking page tables.
package goruntime

import (
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/hal"
	"armkernel/kernel/mem"
	"armkernel/kernel/mem/pmm"
)

var (
	allocOrderFn    = pmm.AllocOrder
	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit

	// prngSeed seeds the pseudo-random number generator getRandomData
	// falls back to; there is no hardware RNG or /dev/random on this
	// board.
	prngSeed = 0xdeadc0de
)

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()

//go:linkname mSysStatInc runtime.mSysStatInc
func mSysStatInc(*uint64, uintptr)

// orderForSize returns the smallest buddy order whose block size covers at
// least size bytes, for pmm.AllocOrder.
func orderForSize(size uintptr) uint8 {
	pages := (mem.Size(size) + mem.PageSize - 1) / mem.PageSize
	if pages == 0 {
		pages = 1
	}
	var order uint8
	for (mem.Size(1) << order) < pages {
		order++
	}
	return order
}

// allocDirectMapped grabs a contiguous run of physical frames big enough for
// size and returns its already-mapped kernel virtual address.
func allocDirectMapped(size uintptr) unsafe.Pointer {
	frame, err := allocOrderFn(orderForSize(size))
	if err != nil {
		return unsafe.Pointer(uintptr(0))
	}
	return unsafe.Pointer(hal.P2V(frame.Address()))
}

// sysReserve reserves address space without committing any backing memory,
// per the runtime.sysReserve contract. On this kernel every physical frame
// is already mapped via the direct map (see package doc), so there is
// nothing cheaper to do than hand back real, already-usable memory; callers
// still receive reserved=true, matching what a deferred-commit
// implementation would promise.
//
//go:redirect-from runtime.sysReserve
//go:nosplit
func sysReserve(_ unsafe.Pointer, size uintptr, reserved *bool) unsafe.Pointer {
	p := allocDirectMapped(size)
	*reserved = p != unsafe.Pointer(uintptr(0))
	return p
}

// sysMap establishes use of a region previously handed out by sysReserve.
// Because sysReserve already returned committed, mapped memory, sysMap is a
// no-op beyond the runtime's memstat bookkeeping.
//
//go:redirect-from runtime.sysMap
//go:nosplit
func sysMap(virtAddr unsafe.Pointer, size uintptr, reserved bool, sysStat *uint64) unsafe.Pointer {
	if !reserved {
		panic("sysMap should only be called with reserved=true")
	}
	mSysStatInc(sysStat, uintptr(size))
	return virtAddr
}

// sysAlloc reserves and commits size bytes of kernel heap memory in one
// step, used for allocations the runtime does not pre-reserve via
// sysReserve.
//
//go:redirect-from runtime.sysAlloc
//go:nosplit
func sysAlloc(size uintptr, sysStat *uint64) unsafe.Pointer {
	p := allocDirectMapped(size)
	if p == unsafe.Pointer(uintptr(0)) {
		return p
	}
	mSysStatInc(sysStat, uintptr(size))
	return p
}

// nanotime returns a monotonically increasing clock value. This board's
// timer drivers are out of scope (spec.md's Non-goals), so this is a dummy
// implementation, exactly as the teacher's own placeholder is, until a
// timekeeper package exists.
//
//go:redirect-from runtime.nanotime
//go:nosplit
func nanotime() uint64 {
	for i := 0; i < 100; i++ {
	}
	return 1
}

// getRandomData populates r with pseudo-random bytes. The runtime normally
// reads /dev/random; there is no such device here, so a simple LCG stands
// in, exactly as the teacher's does.
//
//go:redirect-from runtime.getRandomData
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

// Init enables the Go runtime features package main needs after this point:
// heap allocation (new/make), map primitives and interfaces.
func Init() *kernel.Error {
	mallocInitFn()
	algInitFn()
	modulesInitFn()
	typeLinksInitFn()
	itabsInitFn()
	return nil
}

func init() {
	// Dummy calls so the compiler does not discard the functions above:
	// they are reached only via //go:redirect-from, never by ordinary Go
	// call sites.
	var (
		reserved bool
		stat     uint64
		zeroPtr  = unsafe.Pointer(uintptr(0))
	)

	sysReserve(zeroPtr, 0, &reserved)
	sysMap(zeroPtr, 0, reserved, &stat)
	sysAlloc(0, &stat)
	getRandomData(nil)
	stat = nanotime()
}
