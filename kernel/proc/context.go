package proc

// Context holds the callee-saved integer registers a kernel-to-kernel
// context switch must preserve, plus the banked svc lr Switch resumes into.
// Field order must match switch_arm.s. Grounded on
// original_source/src/proc.h's struct context: r0-r3 are caller-saved under
// the ARM calling convention and need no slot here, and the saved pc is
// omitted too (the original's comment notes it is kept only for debugging
// and is never restored).
type Context struct {
	R4  uint32
	R5  uint32
	R6  uint32
	R7  uint32
	R8  uint32
	R9  uint32
	R10 uint32
	R11 uint32
	R12 uint32
	LR  uint32
}

// Switch saves the caller's callee-saved registers into old, loads new's
// into their place, and resumes at new.LR — it does not return to its own
// caller the way an ordinary call does. Implemented in switch_arm.s.
// Grounded on original_source/src/proc.h's struct context and the swtch.S
// comment it references ("Keep it in sync with swtch.S").
func Switch(old, new *Context)
