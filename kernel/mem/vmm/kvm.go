package vmm

import "armkernel/kernel/mem"

// MapSections installs consecutive first-level section entries covering
// the virtual range [va, va+size) in dir, pointing at physical memory
// starting at pa. va, pa and size must be 1 MiB (mem.SectionSize) aligned.
// device marks the range non-cacheable/non-bufferable, for MMIO.
//
// This is the section-mapping half of the VM layer: used both for the
// provisional boot-time identity/high-half/vector mappings (kernel/boot,
// operating on the linker-reserved root tables before the MMU is even on)
// and for the kernel's permanent direct map of physical RAM installed once
// main VM init runs. Grounded on original_source/src/start.c's
// set_bootpgtbl.
func MapSections(dir *KernelDirectory, va, pa uintptr, size uint, device bool) {
	count := uint(size) / uint(mem.SectionSize)
	idx := pdeIndex(va)

	for i := uint(0); i < count; i++ {
		dir[idx+uintptr(i)] = sectionPDE(pa, device)
		pa += uintptr(mem.SectionSize)
	}
}

// UnmapSections clears the section entries covering [va, va+size); size is
// in bytes and is truncated to whole 1 MiB sections.
// Used to tear down the provisional identity mapping once the kernel is
// running entirely out of high-half virtual memory: spec.md notes "the
// identity mapping is torn down when the main VM initialisation runs".
func UnmapSections(dir *KernelDirectory, va uintptr, size uint) {
	count := uint(size) / uint(mem.SectionSize)
	idx := pdeIndex(va)

	for i := uint(0); i < count; i++ {
		dir[idx+uintptr(i)] = 0
	}
}

// InitKernelMap builds the kernel's permanent direct map of physical RAM
// [0, physTop) at virtual address hal.KernelBase, plus the non-cacheable
// device MMIO window, replacing the provisional boot-time mapping that only
// covered the first InitKernMap bytes. Callers pass the already-live
// kernelRoot (the same KernelDirectory the CPU's TTBR1 already points at),
// so every write here takes effect immediately on the next TLB fill.
func InitKernelMap(dir *KernelDirectory, kernelBase, physTop, deviceBase, deviceSize uintptr) {
	MapSections(dir, kernelBase, 0, uint(physTop), false)
	MapSections(dir, kernelBase+deviceBase, deviceBase, uint(deviceSize), true)
}
