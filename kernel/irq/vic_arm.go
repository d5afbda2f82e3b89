package irq

import (
	"unsafe"

	"armkernel/kernel/hal"
	"armkernel/kernel/kfmt"
)

// numLines is the PL190 vectored interrupt controller's line count.
const numLines = 32

// vicIRQStatusOffset is the offset of the PL190's VICIRQSTATUS register: one
// bit per line, set when that line is both pending and enabled.
const vicIRQStatusOffset = 0x00

// LineHandler services a single PL190 interrupt line.
type LineHandler func()

var lineHandlers [numLines]LineHandler

// HandleIRQ registers fn to run whenever PL190 line is asserted. irq.Init
// registers no lines itself, since irq has no notion of which devices
// exist; no device driver in this tree calls HandleIRQ.
func HandleIRQ(line uint, fn LineHandler) {
	lineHandlers[line] = fn
}

// dispatchVIC services every currently-pending, enabled PL190 line,
// matching original_source/src/trap.c's irq_handler delegating to
// pic_dispatch.
func dispatchVIC() {
	reg := (*uint32)(unsafe.Pointer(hal.P2V(hal.VICBase) + vicIRQStatusOffset))
	pending := *reg

	for line := uint(0); line < numLines; line++ {
		if pending&(1<<line) == 0 {
			continue
		}
		if h := lineHandlers[line]; h != nil {
			h()
		} else {
			kfmt.Printf("irq: unhandled PL190 line %d\n", line)
		}
	}
}
