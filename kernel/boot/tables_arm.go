// Package boot builds the two provisional root page tables and flips on
// the MMU: the sequence that runs before any other package in this tree is
// usable, since pmm/pgtbl/vmm all assume paging is already live. Grounded
// on original_source/src/start.c.
package boot

import "armkernel/kernel/mem/vmm"

// kernelPageTable and userPageTable are the two 16 KiB, naturally-aligned
// root page tables spec.md §6 describes as linker-supplied symbols
// (_kernel_pgtbl, _user_pgtbl). A production image pins these at a fixed
// physical address via a linker script so the boot code can compute their
// physical address before relocation information exists; this tree has no
// linker script of its own (see DESIGN.md), so they are reserved as plain
// BSS storage instead. Both share vmm.KernelDirectory's 4096-entry/16 KiB
// shape: userPageTable is architecturally only ever read through its first
// NumUserPDEs entries (TTBCR.N truncates TTBR0's effective table size) but
// the full 16 KiB is reserved to match the linker-script convention spec.md
// describes.
var (
	kernelPageTable vmm.KernelDirectory
	userPageTable   vmm.KernelDirectory
)

// KernelPageTable returns the live root table TTBR1 points at, so callers
// past Init (kernel/mem/vmm.InitKernelMap, in particular) can keep writing
// into the exact table the CPU already consults rather than a second,
// newly-allocated one.
func KernelPageTable() *vmm.KernelDirectory {
	return &kernelPageTable
}
