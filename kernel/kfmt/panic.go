package kfmt

import (
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/cpu"
)

// callStackDepth bounds how many return addresses Panic walks back through,
// matching original_source/src/arm.c's N_CALLSTK.
const callStackDepth = 10

var (
	// cpuHaltFn is mocked by tests and inlined away in the real build.
	cpuHaltFn = cpu.Halt

	// getFPFn is mocked by tests; real callers get the actual frame
	// pointer, which on a hosted test binary does not point anywhere
	// meaningful.
	getFPFn = cpu.GetFP

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// DumpTrapFrame is installed by the irq package so that a panic originating
// from inside a trap handler can include the register state captured at
// exception entry. kfmt cannot import irq directly (irq imports kfmt for
// its own diagnostics), so this indirection is the seam between the two.
var DumpTrapFrame func()

// Panic outputs the supplied error (if not nil), a best-effort call-stack
// walk and, if a trap is in flight, the trap frame, then halts the CPU.
// Calls to Panic never return. It also serves as the redirection target for
// calls to the built-in panic() (resolved via runtime.gopanic).
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}

	showCallStack()
	if DumpTrapFrame != nil {
		DumpTrapFrame()
	}

	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// panicString serves as a redirect target for runtime.throw.
//go:redirect-from runtime.throw
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}

// showCallStack walks the frame-pointer chain the way
// original_source/src/arm.c's getcallerpcs/show_callstk does: the ARM
// function prologue pushes {fp, lr} then sets fp = sp+4, so fp[-1] is the
// saved fp and fp[0] is the saved lr (return address).
func showCallStack() {
	Printf("call stack:\n")

	fp := getFPFn()
	for i := 0; i < callStackDepth; i++ {
		if fp == 0 || fp == ^uintptr(0) {
			break
		}

		frame := (*[2]uintptr)(unsafe.Pointer(fp - 4))
		savedLR := frame[1]
		savedFP := frame[0]

		Printf("  %d: 0x%x\n", i, savedLR)
		fp = savedFP
	}
}
