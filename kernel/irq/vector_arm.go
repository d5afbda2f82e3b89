package irq

import (
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/cpu"
	"armkernel/kernel/hal"
	"armkernel/kernel/kfmt"
	"armkernel/kernel/mem/pmm"
)

const modeMask = cpu.ModeMask

// Vector identifies one of the eight ARM exception vectors, in
// original_source/src/arm.h's TRAP_* order.
type Vector uint8

const (
	Reset Vector = iota
	Und
	Swi
	Iabt
	Dabt
	Na
	Irq
	Fiq

	numVectors = 8
)

// Handler is the signature every vector dispatches to. It receives the
// trap frame entry_arm.s built on the supervisor stack; modifications to it
// are propagated back when execution resumes.
type Handler func(*TrapFrame)

var handlers [numVectors]Handler

// HandleVector registers fn as the handler for v, replacing whatever ran
// before. Called from Init to install the default policy below; tests and
// higher layers (proc's syscall dispatch, a future device driver) may
// override individual vectors afterwards.
func HandleVector(v Vector, fn Handler) {
	handlers[v] = fn
}

// Scheduler is the seam irq uses to reach the currently running process
// without importing package proc directly: proc would need to import irq
// for TrapFrame, so a direct irq -> proc import would cycle. Keeping the
// dependency as an injected interface (set via SetScheduler) also avoids
// the bare package-level "current process" global the original C source
// uses (extern struct proc *proc), per spec's critique of that pattern.
type Scheduler interface {
	// Current returns the process running on this CPU, or nil if none
	// (e.g. the scheduler itself is running).
	Current() Process
	// Syscall services the pending system call recorded in the current
	// process's trap frame.
	Syscall()
	// Exit terminates the current process; never returns.
	Exit()
}

// Process is the subset of a process control block the trap layer needs to
// touch: whether it has been killed, and where to stash the trap frame for
// the syscall/signal layer above to consult.
type Process interface {
	Killed() bool
	SetTrapFrame(*TrapFrame)
}

var scheduler Scheduler

// panicFn is the seam handlers use to reach kfmt.Panic: kfmt.Panic's real
// implementation halts the CPU forever via an unexported hook only kfmt's
// own tests can override, so code in this package calls through panicFn
// instead, letting this package's own tests observe a kernel-fatal decision
// without hanging.
var panicFn = kfmt.Panic

// SetScheduler installs the scheduler irq's swi/irq handlers consult. Must
// be called once, before interrupts are unmasked.
func SetScheduler(s Scheduler) {
	scheduler = s
}

// vectorHandlerAddrs returns the absolute code address of each of the eight
// entry_arm.s entry points (trapReset..trapFiq), in TRAP_* order. Implemented
// in entry_arm.s, since Go has no portable way to take the bare code address
// of a func value (a Go func value's first word is a pointer to the code
// pointer, not the code pointer itself).
func vectorHandlerAddrs() [numVectors]uint32

// ldrPCRelative is the opcode for "LDR pc, [pc, #24]": the PC-relative
// trampoline original_source/src/trap.c's trap_init writes into the first
// 8 words of the vector table. #24 is fixed because the table layout below
// is fixed: from the trampoline at index i, the ARM 3-stage pipeline makes
// the effective PC i's address+8, and the absolute address lives at index
// i+8 — always 24 bytes (6 words) further on.
const ldrPCRelative = 0xE59FF000 | 0x18

// modeStacksFor lists the non-supervisor modes Init gives a one-page stack,
// in the order original_source/src/trap.c's trap_init walks them.
var modeStacksFor = [...]uint32{cpu.FiqMode, cpu.IrqMode, cpu.AbtMode, cpu.UndMode}

// Init installs the default handler policy, allocates a one-page stack for
// each of FIQ/IRQ/abort/undef mode, and writes the 16-word vector table
// (trampolines + absolute addresses) at hal.VectorTableBase. Must run after
// the MMU is live (the vector window is mapped by kernel/boot) and before
// interrupts are unmasked. Grounded on original_source/src/trap.c's
// trap_init.
func Init() {
	HandleVector(Reset, resetHandler)
	HandleVector(Und, undHandler)
	HandleVector(Swi, swiHandler)
	HandleVector(Iabt, iabtHandler)
	HandleVector(Dabt, dabtHandler)
	HandleVector(Na, naHandler)
	HandleVector(Irq, irqHandler)
	HandleVector(Fiq, fiqHandler)

	kfmt.DumpTrapFrame = dumpCurrentFrame

	for _, mode := range modeStacksFor {
		frame, err := pmm.AllocFrame()
		if err != nil {
			panicFn(&kernel.Error{Module: "irq", Message: "failed to alloc memory for irq stack"})
		}
		sp := hal.P2V(frame.Address()) + pageSize
		cpu.SetModeStack(mode, sp)
	}

	addrs := vectorHandlerAddrs()
	table := (*[2 * numVectors]uint32)(unsafe.Pointer(uintptr(hal.VectorTableBase)))
	for i := 0; i < numVectors; i++ {
		table[i] = ldrPCRelative
		table[numVectors+i] = addrs[i]
	}
}

const pageSize = 4096

// currentFrame is the frame most recently handed to Dispatch, kept around
// only so kfmt.Panic can print it if a handler itself panics.
var currentFrame *TrapFrame

func dumpCurrentFrame() {
	if currentFrame != nil {
		currentFrame.Print()
	}
}

// Dispatch is called from entry_arm.s once the trap frame has been fully
// assembled on the supervisor stack. It never returns to its caller in the
// ordinary sense of a Go call stack spanning the trap: entry_arm.s resumes
// the interrupted context itself, using whatever Dispatch (or the handler
// it invoked) left in frame.
func Dispatch(v Vector, frame *TrapFrame) {
	currentFrame = frame
	h := handlers[v]
	if h == nil {
		panicFn(&kernel.Error{Module: "irq", Message: "unhandled trap vector"})
		return
	}
	h(frame)
	currentFrame = nil
}
