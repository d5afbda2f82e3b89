package vmm

import (
	"testing"

	"armkernel/kernel"
	"armkernel/kernel/mem"
	"armkernel/kernel/mem/pmm"
)

// stubPanic overrides panicFn with a closure that records the call instead
// of reaching kfmt.Panic's real implementation, which halts the CPU forever
// via cpu.Halt and never returns control the way Go's panic/recover would.
func stubPanic(t *testing.T) *bool {
	orig := panicFn
	called := false
	panicFn = func(e interface{}) { called = true }
	t.Cleanup(func() { panicFn = orig })
	return &called
}

// fakeHardware swaps every seam that would otherwise touch real physical
// memory for a plain Go-heap-backed stand-in: pgtblAllocFn/frameAllocFn
// hand out addresses taken from pinned byte buffers, and tableAtFn maps
// those addresses back to the *PageTable living at that buffer's address,
// so Walk/Map can be exercised without ever dereferencing real hardware.
type fakeHardware struct {
	tables  map[uintptr]*PageTable
	next    uintptr
	frames  map[pmm.Frame][]byte
	nextPA  uintptr
}

func newFakeHardware(t *testing.T) *fakeHardware {
	fh := &fakeHardware{
		tables: make(map[uintptr]*PageTable),
		next:   0x1000,
		frames: make(map[pmm.Frame][]byte),
		nextPA: 0x10000,
	}

	origPgtblAlloc, origPgtblFree := pgtblAllocFn, pgtblFreeFn
	origFrameAlloc, origFrameFree := frameAllocFn, frameFreeFn
	origTableAt := tableAtFn

	t.Cleanup(func() {
		pgtblAllocFn, pgtblFreeFn = origPgtblAlloc, origPgtblFree
		frameAllocFn, frameFreeFn = origFrameAlloc, origFrameFree
		tableAtFn = origTableAt
	})

	pgtblAllocFn = func() (uintptr, *kernel.Error) {
		addr := fh.next
		fh.next += 0x1000
		fh.tables[addr] = &PageTable{}
		return addr, nil
	}
	pgtblFreeFn = func(v uintptr) *kernel.Error {
		delete(fh.tables, v)
		return nil
	}
	frameAllocFn = func() (pmm.Frame, *kernel.Error) {
		f := pmm.Frame(fh.nextPA >> mem.PageShift)
		fh.nextPA += uintptr(mem.PageSize)
		fh.frames[f] = make([]byte, mem.PageSize)
		return f, nil
	}
	frameFreeFn = func(f pmm.Frame) *kernel.Error {
		delete(fh.frames, f)
		return nil
	}
	tableAtFn = func(addr uintptr) *PageTable {
		if tbl, ok := fh.tables[addr-kernelBaseForTest]; ok {
			return tbl
		}
		return fh.tables[addr]
	}

	return fh
}

// kernelBaseForTest mirrors hal.KernelBase. Walk stores hal.V2P(block) in
// the PDE and later hands tableAtFn hal.P2V of that, which on this 32-bit
// target is the raw block address pgtblAllocFn recorded; the lookup above
// also tries addr-KernelBase in case an address arrives offset by it.
const kernelBaseForTest = 0x80000000

func TestWalkCreatesPageTableOnDemand(t *testing.T) {
	newFakeHardware(t)

	var dir UserDirectory
	pte, err := Walk(&dir, 0x1234, true)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if pte == nil {
		t.Fatal("expected a non-nil PTE pointer when alloc=true")
	}
	if !present(dir[pdeIndex(0x1234)]) {
		t.Fatal("expected the PDE to be marked present after an allocating walk")
	}
}

func TestWalkWithoutAllocReturnsNilWhenAbsent(t *testing.T) {
	newFakeHardware(t)

	var dir UserDirectory
	pte, err := Walk(&dir, 0x1234, false)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if pte != nil {
		t.Fatal("expected a nil PTE pointer for an absent mapping with alloc=false")
	}
}

func TestWalkReusesExistingPageTable(t *testing.T) {
	newFakeHardware(t)

	var dir UserDirectory
	pte1, err := Walk(&dir, 0x1000, true)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	*pte1 = 0xabcd

	pte2, err := Walk(&dir, 0x1f00, true)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if *pte2 != 0 {
		t.Fatalf("expected a fresh entry in the same 1 MiB section to start at 0, got %#x", *pte2)
	}

	pte1Again, err := Walk(&dir, 0x1000, false)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if *pte1Again != 0xabcd {
		t.Fatalf("expected the same page table to be reused for the same 1 MiB section, got %#x", *pte1Again)
	}
}

func TestMapRejectsRemap(t *testing.T) {
	newFakeHardware(t)
	called := stubPanic(t)

	var dir UserDirectory
	if err := Map(&dir, 0, uint(mem.PageSize), 0x20000, APKernelUserRW); err != nil {
		t.Fatalf("Map: %v", err)
	}
	Map(&dir, 0, uint(mem.PageSize), 0x30000, APKernelUserRW)
	if !*called {
		t.Fatal("expected a second Map of the same page to reach panicFn")
	}
}

func TestMapSpansMultiplePages(t *testing.T) {
	newFakeHardware(t)

	var dir UserDirectory
	size := uint(3 * mem.PageSize)
	if err := Map(&dir, 0x2000, size, 0x40000, APKernelUserRW); err != nil {
		t.Fatalf("Map: %v", err)
	}

	for i := 0; i < 3; i++ {
		va := uintptr(0x2000) + uintptr(i)*uintptr(mem.PageSize)
		pte, err := Walk(&dir, va, false)
		if err != nil || pte == nil || !present(*pte) {
			t.Fatalf("expected page %d of the mapped range to be present", i)
		}
	}
}
