package sync

import (
	"armkernel/kernel/cpu"
	"armkernel/kernel/proc"
)

// These indirections are the seam tests replace to exercise PushCli/PopCli
// without executing privileged CPSR-touching instructions.
var (
	interruptsEnabledFn = cpu.InterruptsEnabled
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
)

// currentCPUFn is the seam tests replace so PushCli/PopCli's nesting state
// doesn't leak between test cases via the real, singleton proc.CurrentCPU().
var currentCPUFn = proc.CurrentCPU

// PushCli disables interrupts. Calls nest: it takes as many PopCli calls as
// PushCli calls to re-enable interrupts, and if interrupts were already off
// on entry, PushCli/PopCli leaves them off. The nesting depth and the
// remembered enabled-state live on the per-CPU record (proc.CurrentCPU)
// rather than in package-level globals here, per spec's guidance to pass
// per-CPU state explicitly instead of scattering it across packages.
// Grounded on original_source/src/arm.c's pushcli.
func PushCli() {
	c := currentCPUFn()
	enabled := interruptsEnabledFn()
	disableInterruptsFn()
	if c.Ncli == 0 {
		c.IntEnaAtOuterPush = enabled
	}
	c.Ncli++
}

// PopCli undoes one PushCli. Grounded on original_source/src/arm.c's popcli.
func PopCli() {
	if interruptsEnabledFn() {
		panic("sync: popcli called with interrupts enabled")
	}
	c := currentCPUFn()
	if c.Ncli == 0 {
		panic("sync: popcli without a matching pushcli")
	}
	c.Ncli--
	if c.Ncli == 0 && c.IntEnaAtOuterPush {
		enableInterruptsFn()
	}
}

// HoldingCli reports whether the current call chain is inside at least one
// PushCli/PopCli pair. Used by code that must assert interrupts are
// currently disabled (e.g. before touching per-CPU scheduler state).
func HoldingCli() bool {
	return currentCPUFn().Ncli > 0
}
