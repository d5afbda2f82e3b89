// Package cpu exposes the low-level ARM CPU/MMU primitives every other
// package in this tree is built on: CPSR access, the interrupt mask bit,
// the translation table base/control registers and the TLB/cache
// maintenance operations. Every exported function here is implemented in
// cpu_arm.s; this file only declares signatures and the portable bit
// constants those implementations and their callers share.
package cpu

// CPSR mode and interrupt-mask bits, from original_source/src/arm.h.
const (
	ModeMask = 0x1f
	UsrMode  = 0x10
	FiqMode  = 0x11
	IrqMode  = 0x12
	SvcMode  = 0x13
	AbtMode  = 0x17
	UndMode  = 0x1b
	SysMode  = 0x1f

	// DisInt is the CPSR bit that masks IRQs (bit 7). NoInt additionally
	// masks FIQs (bit 6) and is used only for the handful of windows
	// (e.g. inside the abort handler) that must not be preempted at all.
	DisInt = 0x80
	NoInt  = 0xc0
)

// Control register (c1) bits used by EnableMMU, from
// original_source/src/start.c's load_pgtlb: MMU enable, data cache enable,
// write buffer enable, high exception vectors, subpage AP disable.
const controlMMUEnableBits = 0x80300d

// ReadCPSR returns the current value of the CPSR.
func ReadCPSR() uint32

// WriteCPSR installs val as the new CPSR. Used only by InterruptsEnabled's
// companions; general users should call EnableInterrupts/DisableInterrupts.
func WriteCPSR(val uint32)

// InterruptsEnabled reports whether IRQs are currently unmasked.
func InterruptsEnabled() bool {
	return ReadCPSR()&DisInt == 0
}

// EnableInterrupts unmasks IRQs.
func EnableInterrupts() {
	WriteCPSR(ReadCPSR() &^ DisInt)
}

// DisableInterrupts masks IRQs.
func DisableInterrupts() {
	WriteCPSR(ReadCPSR() | DisInt)
}

// SetDACR programs the domain access control register (c3). The kernel
// runs with every domain set to "client" (checked against the page tables)
// per original_source/src/start.c's load_pgtlb.
func SetDACR(val uint32)

// SetTTBCR programs the translation table base control register (c2,
// opcode2 2), choosing the N-bit split between TTBR0 (user, [0,
// 2^(32-N))) and TTBR1 (kernel, the rest).
func SetTTBCR(n uint32)

// SetTTBR0 installs the user (TTBR0) translation table base address.
func SetTTBR0(addr uint32)

// SetTTBR1 installs the kernel (TTBR1) translation table base address.
func SetTTBR1(addr uint32)

// EnableMMU turns on the MMU, data cache, write buffer and high vector
// table, matching original_source/src/start.c's load_pgtlb bit pattern.
// Must be called only after SetDACR/SetTTBCR/SetTTBR0/SetTTBR1 have
// installed a valid identity-ish mapping covering the current PC.
func EnableMMU()

// flushTLBAndCaches invalidates the entire TLB and the instruction and
// data caches. Declared here so FlushTLB (below) can be overridden by
// tests without touching real hardware state.
func flushTLBAndCaches()

// flushTLBFn is the seam tests replace to avoid executing privileged
// instructions on a hosted test binary.
var flushTLBFn = flushTLBAndCaches

// FlushTLB invalidates the entire TLB and the I/D caches. Grounded on
// original_source/src/vm.c's flush_tlb, which (unlike start.c's
// _flush_all) performs the cache invalidation: vm.c's version is the one
// actually exercised on every switchuvm, so it is authoritative for what
// a TLB flush must do once address spaces are being switched at runtime.
func FlushTLB() {
	flushTLBFn()
}

// SetModeStack installs sp as the banked stack pointer for the given
// processor mode (one of FiqMode/IrqMode/AbtMode/UndMode) by switching into
// that mode with both IRQ and FIQ masked, writing r13, and switching back to
// supervisor mode. Used once per mode at boot to give every non-supervisor
// mode a stack to catch the handful of instructions it executes before
// shoving a trap frame onto the supervisor stack. Grounded on
// original_source/src/trap.c's trap_init loop and the set_stk helper it
// calls.
func SetModeStack(mode uint32, sp uintptr)

// ReadFaultStatus returns the data/prefetch fault status register (c5),
// which encodes the reason for the most recent abort.
func ReadFaultStatus() uint32

// ReadFaultAddress returns the fault address register (c6): the virtual
// address that triggered the most recent data abort.
func ReadFaultAddress() uint32

// GetFP returns the caller's frame pointer (r11 in the AAPCS-ish ABI this
// kernel uses), letting diagnostics walk the call stack the same way
// original_source/src/arm.c's getcallerpcs does.
func GetFP() uintptr

// Halt stops the CPU permanently (WFI in a loop). Never returns.
func Halt()
