package vmm

import (
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/hal"
	"armkernel/kernel/mem/pgtbl"
	"armkernel/kernel/mem/pmm"
)

// seams for tests: real hardware addresses can't be dereferenced on a
// hosted test binary, so tests replace these with plain Go-heap-backed
// stand-ins.
var (
	pgtblAllocFn = pgtbl.Alloc
	pgtblFreeFn  = pgtbl.Free
	frameAllocFn = pmm.AllocFrame
	frameFreeFn  = pmm.FreeFrame
	tableAtFn    = tableAt
)

func tableAt(addr uintptr) *PageTable {
	return (*PageTable)(unsafe.Pointer(addr))
}

// Walk returns the second-level page table entry for va in dir, walking
// (and, if alloc is true, creating) the coarse page table that covers it.
// Grounded on original_source/src/vm.c's walkpgdir. A nil, nil result
// means "not present, and alloc was false", matching walkpgdir's `return
// 0` for a caller that only wants to probe.
func Walk(dir *UserDirectory, va uintptr, alloc bool) (*uint32, *kernel.Error) {
	pde := &dir[pdeIndex(va)]

	var table *PageTable
	if present(*pde) {
		table = tableAtFn(hal.P2V(entryAddress(*pde)))
	} else {
		if !alloc {
			return nil, nil
		}

		block, err := pgtblAllocFn()
		if err != nil {
			return nil, err
		}

		table = tableAtFn(block)
		*pde = coarsePDE(hal.V2P(block))
	}

	return &table[pteIndex(va)], nil
}
