package irq

import (
	"armkernel/kernel"
	"armkernel/kernel/cpu"
	"armkernel/kernel/kfmt"
)

// swiHandler services a system call trap, matching
// original_source/src/trap.c's swi_handler.
func swiHandler(tf *TrapFrame) {
	proc := scheduler.Current()
	if proc == nil {
		panicFn(&kernel.Error{Module: "irq", Message: "swi with no current process"})
		return
	}
	if proc.Killed() {
		scheduler.Exit()
		return
	}
	proc.SetTrapFrame(tf)
	scheduler.Syscall()
	if proc.Killed() {
		scheduler.Exit()
	}
}

// irqHandler stashes the trap frame on the current process, if any, then
// services every pending PL190 line. Matches trap.c's irq_handler: proc can
// be nil when the scheduler itself (not a process) was interrupted.
func irqHandler(tf *TrapFrame) {
	if proc := scheduler.Current(); proc != nil {
		proc.SetTrapFrame(tf)
	}
	dispatchVIC()
}

// resetHandler matches trap.c's reset_handler: this fires only if something
// branches through vector 0 after boot, which never happens in ordinary
// operation. Like naHandler and fiqHandler, a reset trap can't plausibly
// occur in user mode, so it escalates straight to panicFn rather than
// returning and letting entry_arm.s resume the interrupted context.
func resetHandler(tf *TrapFrame) {
	cpu.DisableInterrupts()
	kfmt.Printf("reset at: 0x%x\n", tf.PC)
	panicFn(&kernel.Error{Module: "irq", Message: "unexpected reset"})
}

// undHandler, dabtHandler and iabtHandler all apply the same abort recovery
// policy (see DESIGN.md): kill the offending process if the fault happened
// in user mode, panic the kernel otherwise, since a fault taken while
// running kernel code means the kernel has a bug, not the process.
func undHandler(tf *TrapFrame) {
	cpu.DisableInterrupts()
	kfmt.Printf("und at: 0x%x\n", tf.PC)
	recoverFault(tf, "illegal instruction")
}

func dabtHandler(tf *TrapFrame) {
	cpu.DisableInterrupts()

	dfs := cpu.ReadFaultStatus()
	fa := cpu.ReadFaultAddress()
	kfmt.Printf("data abort: instruction 0x%x, fault addr 0x%x, reason 0x%x\n", tf.PC, fa, dfs)
	tf.Print()

	recoverFault(tf, "data abort")
}

func iabtHandler(tf *TrapFrame) {
	ifs := cpu.ReadFaultStatus()

	cpu.DisableInterrupts()
	kfmt.Printf("prefetch abort at: 0x%x (reason: 0x%x)\n", tf.PC, ifs)
	tf.Print()

	recoverFault(tf, "prefetch abort")
}

// naHandler and fiqHandler fire on vectors this board never legitimately
// raises (the reserved vector, and FIQ — no device on this board is wired
// to the fast interrupt line); both are kernel-fatal.
func naHandler(tf *TrapFrame) {
	cpu.DisableInterrupts()
	kfmt.Printf("n/a at: 0x%x\n", tf.PC)
	panicFn(&kernel.Error{Module: "irq", Message: "reserved vector taken"})
}

func fiqHandler(tf *TrapFrame) {
	cpu.DisableInterrupts()
	kfmt.Printf("fiq at: 0x%x\n", tf.PC)
	panicFn(&kernel.Error{Module: "irq", Message: "unexpected fiq"})
}

// recoverFault applies the abort recovery policy shared by und/dabt/iabt:
// kill the current process if the fault's saved mode was user mode, panic
// the kernel otherwise.
func recoverFault(tf *TrapFrame, reason string) {
	if tf.Mode() == cpu.UsrMode {
		if scheduler != nil {
			if proc := scheduler.Current(); proc != nil {
				proc.SetTrapFrame(tf)
				scheduler.Exit()
				return
			}
		}
	}
	panicFn(&kernel.Error{Module: "irq", Message: reason})
}
