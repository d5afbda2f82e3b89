// +build arm

package mem

// PointerShift is log2(unsafe.Sizeof(uintptr)) for a 32-bit ARM target: the
// pointer size for this architecture is (1 << PointerShift) == 4 bytes.
const PointerShift = 2

// PageShift is log2(PageSize). Used to convert a physical address to a frame
// number (shift right by PageShift) and back.
const PageShift = 12

// PageSize is the MMU's small-page granule: 4 KiB.
const PageSize = Size(1 << PageShift)

// SectionShift is log2(SectionSize): the granularity of a first-level
// "section" mapping used for the kernel's direct map.
const SectionShift = 20

// SectionSize is the size covered by a single first-level section entry:
// 1 MiB, per original_source/src/mmu.h's PDE_SHIFT.
const SectionSize = Size(1 << SectionShift)

// UserAddressBits is the number of virtual address bits routed through
// TTBR0, per original_source/src/mmu.h's UADDR_BITS: 256 MiB of user address
// space, matching spec.md's "support for address spaces larger than 256 MiB
// per process" non-goal.
const UserAddressBits = 28

// UserAddressSize is (1 << UserAddressBits): the size of the user half of
// the address space.
const UserAddressSize = Size(1 << UserAddressBits)
