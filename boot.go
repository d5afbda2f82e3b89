// Command armkernel is the kernel's sole executable: the only Go symbol
// entry_arm.s's reset handler branches into once it has parked every core
// but the boot CPU and built the minimal pre-MMU stack. Modeled on the
// teacher's own boot.go, which plays the identical role for its
// x86_64/multiboot target (there: func main() { kernel.Kmain() }).
package main

import (
	"unsafe"

	"armkernel/kernel/boot"
	"armkernel/kernel/kmain"
)

// kernelEnd stands in for the linker-supplied symbol
// original_source/src/memlayout.h calls KERNLINK's end-of-image
// counterpart: a production build fixes this at the physical address its
// linker script places just past the loaded kernel image, so pmm.Init
// never hands out a frame the image itself still occupies. This tree has
// no linker script (see the kernelPageTable/svcStack comments in
// kernel/boot for why), so the image's footprint is instead approximated
// by this package's own BSS tail.
var kernelEnd [1]byte

// main is not expected to return: boot.Init's afterMMU callback runs
// kmain.Kmain, which panics if it ever falls off its own end rather than
// letting execution continue past known code.
func main() {
	const kernelStart = 0

	boot.Init(func() {
		boot.SwitchStackAndJump(boot.SvcStackTop(), func() {
			kmain.Kmain(kernelStart, uintptr(unsafe.Pointer(&kernelEnd)))
		})
	})
}
