// Package irq builds the ARM high-vector table, gives each non-supervisor
// mode (FIQ/IRQ/abort/undef) its own one-page stack, and dispatches the
// eight vectors to Go-level handlers after the assembly in entry_arm.s has
// shoved a TrapFrame onto the supervisor stack. Grounded on
// original_source/src/trap.c and arm.h.
package irq

import "armkernel/kernel/kfmt"

// TrapFrame is the fixed-layout record entry_arm.s builds on the supervisor
// stack and Dispatch hands to the registered handler. Field order and names
// mirror original_source/src/arm.h's struct trapframe exactly; entry_arm.s's
// offset comments assume this exact layout, so do not reorder or insert
// fields without updating them to match.
type TrapFrame struct {
	SPUsr uint32 // user mode sp
	LRUsr uint32 // user mode lr
	LRSvc uint32 // r14_svc (== pc if SWI)
	SPSR  uint32
	R0    uint32
	R1    uint32
	R2    uint32
	R3    uint32
	R4    uint32
	R5    uint32
	R6    uint32
	R7    uint32
	R8    uint32
	R9    uint32
	R10   uint32
	R11   uint32
	R12   uint32
	PC    uint32 // (lr on entry) instruction to resume execution
}

// Mode returns the processor mode the trapped instruction was running in,
// extracted from the low 5 bits of the saved program status register.
func (tf *TrapFrame) Mode() uint32 {
	return tf.SPSR & modeMask
}

// Print outputs a register dump in the shape of
// original_source/src/trap.c's dump_trapframe.
func (tf *TrapFrame) Print() {
	kfmt.Printf("r14_svc: 0x%x\n", tf.LRSvc)
	kfmt.Printf("   spsr: 0x%x\n", tf.SPSR)
	kfmt.Printf("     r0: 0x%x\n", tf.R0)
	kfmt.Printf("     r1: 0x%x\n", tf.R1)
	kfmt.Printf("     r2: 0x%x\n", tf.R2)
	kfmt.Printf("     r3: 0x%x\n", tf.R3)
	kfmt.Printf("     r4: 0x%x\n", tf.R4)
	kfmt.Printf("     r5: 0x%x\n", tf.R5)
	kfmt.Printf("     r6: 0x%x\n", tf.R6)
	kfmt.Printf("     r7: 0x%x\n", tf.R7)
	kfmt.Printf("     r8: 0x%x\n", tf.R8)
	kfmt.Printf("     r9: 0x%x\n", tf.R9)
	kfmt.Printf("    r10: 0x%x\n", tf.R10)
	kfmt.Printf("    r11: 0x%x\n", tf.R11)
	kfmt.Printf("    r12: 0x%x\n", tf.R12)
	kfmt.Printf("     pc: 0x%x\n", tf.PC)
}
