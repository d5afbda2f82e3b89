package boot

import (
	"unsafe"

	"armkernel/kernel/cpu"
	"armkernel/kernel/hal"
	"armkernel/kernel/mem"
	"armkernel/kernel/mem/vmm"
)

// rootFor returns whichever of the two provisional root tables the CPU
// will actually consult for va once TTBCR.N is programmed: addresses whose
// top UserAddressBits-sized half routes through TTBR0 land in
// userPageTable, everything else lands in kernelPageTable. Matches
// original_source/src/start.c's set_bootpgtbl NUM_UPDE test.
func rootFor(va uintptr) *vmm.KernelDirectory {
	if (va >> mem.SectionShift) < (vmm.NumUserPDEs) {
		return &userPageTable
	}
	return &kernelPageTable
}

// mapSection writes a single provisional section mapping, routing it to
// whichever root table TTBR0/TTBR1 will read it from at runtime.
func mapSection(va, pa uintptr, size uint, device bool) {
	vmm.MapSections(rootFor(va), va, pa, size, device)
}

// Init constructs the provisional boot-time address space, enables the
// MMU, and then invokes afterMMU (expected to switch onto a high-half
// stack and continue kernel init — see SwitchStackAndJump). Init must run
// with the MMU off, at the kernel's low-physical load address. Grounded on
// original_source/src/start.c's start().
func Init(afterMMU func()) {
	// 1. Identity-map the first InitKernMap bytes so boot code (including
	// the MMU-enable instruction itself and the handful of instructions
	// after it) keeps executing once paging turns on.
	mapSection(0, 0, hal.InitKernMap, false)

	// 2. Map the kernel's link-time high-half base to the same physical
	// memory.
	mapSection(hal.KernelBase, 0, hal.InitKernMap, false)

	// 3. Map the high-vectors window to physical address 0, so the vector
	// table installed there later appears at the architectural fixed
	// address regardless of where the kernel image itself is linked.
	mapSection(hal.VectorTableBase&^(uintptr(mem.SectionSize)-1), 0, uint(mem.SectionSize), false)

	// 4. Map device MMIO as non-cacheable, non-bufferable.
	mapSection(hal.KernelBase+hal.DeviceBase, hal.DeviceBase, hal.DeviceMemSize, true)

	// Client access for every domain: permissions are governed entirely by
	// the AP bits in each descriptor, not by domain.
	cpu.SetDACR(0x55555555)

	// TTBCR.N: route the bottom UserAddressBits of VA space through TTBR0,
	// the rest through TTBR1.
	cpu.SetTTBCR(32 - mem.UserAddressBits)

	cpu.SetTTBR0(uint32(ptrToPhys(&userPageTable)))
	cpu.SetTTBR1(uint32(ptrToPhys(&kernelPageTable)))

	cpu.EnableMMU()
	cpu.FlushTLB()

	if afterMMU != nil {
		afterMMU()
	}
}

// ptrToPhys converts the identity-mapped, pre-MMU address of a boot-time
// object to a physical address: with the MMU off every address Go hands
// back is already physical. Kept as a named step (rather than a bare cast
// at the call site) so the one place this tree treats a Go pointer as a
// raw physical address during the no-MMU window is easy to find.
func ptrToPhys(p *vmm.KernelDirectory) uintptr {
	return uintptr(unsafe.Pointer(p))
}
