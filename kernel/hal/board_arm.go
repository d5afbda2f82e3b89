// Package hal describes the fixed memory-mapped layout of the target
// board. Unlike an x86 kernel that discovers its memory map and devices
// from a bootloader (multiboot, ACPI), this is a QEMU "versatilepb" ARM
// board: every address below is a constant baked into the hardware, not
// something probed at runtime. Grounded on
// original_source/src/device/versatile_pb.h and src/memlayout.h.
package hal

// KernelBase is the first kernel virtual address: the kernel (and its
// direct-mapped view of all physical RAM) is linked to run at this offset,
// per original_source/src/memlayout.h's KERNBASE.
const KernelBase = 0x80000000

// PhysTop is the top of usable physical RAM on this board (128 MiB,
// conservatively assumed per versatile_pb.h's comment on PHYSTOP even
// though the board can in principle support up to 256 MiB).
const PhysTop = 0x08000000

// DeviceBase and DeviceMemSize bound the MMIO region; InitKernMap is the
// size of the low-memory window double-mapped during early boot before
// the MMU is enabled.
const (
	DeviceBase    = 0x10000000
	DeviceMemSize = 0x08000000
	InitKernMap   = 0x00100000
)

// VectorTableBase is the high-vectors address the control register's "V"
// bit routes exception entry through (see cpu.EnableMMU's control-register
// bit pattern), per versatile_pb.h's VEC_TBL.
const VectorTableBase = 0xFFFF0000

// UART0Base is the PL011 UART's MMIO base address.
const UART0Base = 0x101f1000

// UARTClockHz is the UART's reference clock rate.
const UARTClockHz = 24000000

// Timer0Base and Timer1Base are the SP804 dual-timer block base addresses.
const (
	Timer0Base = 0x101E2000
	Timer1Base = 0x101E2020
)

// TimerClockHz is the SP804 timer's clock rate on this board.
const TimerClockHz = 1000000

// VICBase is the PL190 vectored interrupt controller's MMIO base.
const VICBase = 0x10140000

// IRQ lines on the PL190, per versatile_pb.h.
const (
	IRQTimer01  = 4
	IRQTimer23  = 5
	IRQUART0    = 12
	IRQGraphics = 19
)

// P2V translates a physical address to its kernel virtual address in the
// direct map.
func P2V(phys uintptr) uintptr { return phys + KernelBase }

// V2P translates a kernel-virtual direct-map address back to physical.
func V2P(virt uintptr) uintptr { return virt - KernelBase }
