package boot

import (
	"unsafe"

	"armkernel/kernel/mem/vmm"
)

// svcStackSize is the size of the high-half supervisor stack Init's caller
// switches onto. original_source/src/start.c gets svc_stktop from a linker
// script symbol; this tree has no linker script of its own (see the
// kernelPageTable/userPageTable comment in tables_arm.go for why), so the
// stack is reserved as a plain BSS array instead, the same workaround.
const svcStackSize = 16 * 1024

var svcStack [svcStackSize]byte

// SvcStackTop returns the address one past the end of the reserved
// supervisor stack: the value callers pass as sp to SwitchStackAndJump,
// since the ARM stack grows down from its initial top.
func SvcStackTop() uintptr {
	return uintptr(unsafe.Pointer(&svcStack[0])) + svcStackSize
}

// SwitchStackAndJump installs sp as the current stack pointer and transfers
// control to fn, which is expected never to return. Implemented in
// stack_arm.s: it cannot be written in Go because the instruction that
// overwrites SP would otherwise pull the rug out from under the calling
// Go function's own locals and return address before RET runs. Grounded
// on original_source/src/start.c's jump_stack (there called right after
// load_pgtlb, to move from the low identity-mapped boot stack onto the
// high-half stack pinned at the linker-supplied svc_stktop symbol).
func SwitchStackAndJump(sp uintptr, fn func())

// TeardownIdentityMap clears the provisional identity mapping installed by
// Init (the first hal.InitKernMap bytes at VA 0). Called once the real
// kernel direct map (vmm.InitKernelMap) is live and every running
// instruction is reached through the high-half alias instead. Per spec.md
// §4.3: "The identity mapping is torn down when the main VM initialisation
// runs."
func TeardownIdentityMap(size uint) {
	vmm.UnmapSections(&userPageTable, 0, size)
}
