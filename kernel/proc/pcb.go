package proc

import "armkernel/kernel/irq"

// PCB is the process control block the trap layer stashes a trap frame on
// and queries for the kill flag. Referenced only, per spec.md §3's ownership
// note: the fields a real scheduler would add (state, pgdir, open files,
// parent, ...) belong to that scheduler, not to this package. Grounded on
// original_source/src/proc.h's struct proc, trimmed to the subset irq.Process
// requires.
type PCB struct {
	Pid  int
	Name string

	killed  bool
	tf      *irq.TrapFrame
	context *Context
}

// Killed reports whether this process has been marked for termination.
// Satisfies irq.Process.
func (p *PCB) Killed() bool { return p.killed }

// Kill marks the process for termination; the next trap return or syscall
// return observes Killed() and exits it.
func (p *PCB) Kill() { p.killed = true }

// SetTrapFrame stashes tf as the frame the syscall/signal layer above irq
// should consult. Satisfies irq.Process.
func (p *PCB) SetTrapFrame(tf *irq.TrapFrame) { p.tf = tf }

// TrapFrame returns the most recently stashed trap frame, or nil.
func (p *PCB) TrapFrame() *irq.TrapFrame { return p.tf }

// Context returns the saved kernel context Switch resumes into when this
// process is next scheduled.
func (p *PCB) Context() *Context { return p.context }

// SetContext installs ctx as the context Switch resumes into for this
// process.
func (p *PCB) SetContext(ctx *Context) { p.context = ctx }
