// Package kmain brings up the kernel's core packages, in dependency order,
// once boot.Init has enabled the MMU and jumped onto the high-half
// supervisor stack. Grounded on the teacher's kernel/kmain/kmain.go, which
// plays the identical role for its x86_64/multiboot target.
package kmain

import (
	"armkernel/kernel"
	"armkernel/kernel/boot"
	"armkernel/kernel/goruntime"
	"armkernel/kernel/hal"
	"armkernel/kernel/irq"
	"armkernel/kernel/kfmt"
	"armkernel/kernel/mem/pmm"
	"armkernel/kernel/mem/vmm"
)

var errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}

// Kmain is the first Go code that runs on the high-half stack. Its caller
// is boot.Init's afterMMU callback, reached through boot.SwitchStackAndJump
// — by the time Kmain runs, the provisional boot-time mapping from
// boot.Init is already live but the permanent kernel direct map is not.
// kernelStart and kernelEnd bound the loaded kernel image in physical
// memory (the frame allocator must not hand out frames inside that range);
// this tree has no linker script to read them from, so whatever ultimately
// invokes boot.Init is expected to pass the addresses its own build
// produced, mirroring the teacher's Kmain(multibootInfoPtr, kernelStart,
// kernelEnd uintptr) bootloader-supplied-argument shape.
//
// Kmain is not expected to return; if it does, it panics rather than
// falling off the end into undefined code, exactly like the teacher's.
//
//go:noinline
func Kmain(kernelStart, kernelEnd uintptr) {
	var err *kernel.Error

	// 1. Physical frame allocator: everything from the end of the kernel
	// image to PhysTop is free.
	if err = pmm.Init(pmm.FrameFromAddress(kernelEnd), pmm.FrameFromAddress(hal.PhysTop)); err != nil {
		kfmt.Panic(err)
	}

	// 2. Replace the provisional boot-time section map with the kernel's
	// permanent direct map of all physical RAM plus the device MMIO
	// window, writing into the same root table TTBR1 already points at.
	vmm.InitKernelMap(boot.KernelPageTable(), hal.KernelBase, hal.PhysTop, hal.DeviceBase, hal.DeviceMemSize)
	boot.TeardownIdentityMap(hal.InitKernMap)

	// 3. Trap/exception entry: installs the vector table and per-mode
	// stacks. Must run before interrupts are ever unmasked.
	irq.Init()

	// 4. Go runtime heap support (new/make, maps, interfaces), backed by
	// the direct map InitKernelMap just installed.
	if err = goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}

	// kfmt.Printf output is buffered in its ring buffer until a concrete
	// io.Writer sink (a UART driver) is installed via kfmt.SetOutputSink;
	// no such driver exists in this tree — spec.md scopes the console
	// driver out as an external collaborator referenced only at this
	// boundary.
	kfmt.Printf("kernel init complete\n")

	kfmt.Panic(errKmainReturned)
}
