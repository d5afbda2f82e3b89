package pgtbl

import (
	"testing"
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/mem"
	"armkernel/kernel/mem/pmm"
)

// fakePMM backs every frame carveLocked hands out with a real Go-heap
// buffer instead of the physical address pmm.Frame.Address would compute,
// mirroring kernel/mem/vmm/walk_test.go's fakeHardware: push/pop dereference
// the block address through unsafe.Pointer, so a hosted test needs that
// address to point at real memory, not frame number 0 or 0x80000000.
type fakePMM struct {
	frames map[pmm.Frame][]byte
	next   pmm.Frame
	free   int
}

func newFakePMM(t *testing.T, totalFrames int) *fakePMM {
	fp := &fakePMM{frames: make(map[pmm.Frame][]byte), free: totalFrames}

	origAlloc, origFree := frameAllocFn, frameFreeFn
	origBase, origFromAddr := frameBaseFn, frameFromAddressFn
	t.Cleanup(func() {
		frameAllocFn, frameFreeFn = origAlloc, origFree
		frameBaseFn, frameFromAddressFn = origBase, origFromAddr
	})

	frameAllocFn = func() (pmm.Frame, *kernel.Error) {
		if fp.free == 0 {
			return pmm.InvalidFrame, errOutOfMemory
		}
		f := fp.next
		fp.next++
		fp.frames[f] = make([]byte, mem.PageSize)
		fp.free--
		return f, nil
	}
	frameFreeFn = func(f pmm.Frame) *kernel.Error {
		delete(fp.frames, f)
		fp.free++
		return nil
	}
	frameBaseFn = func(f pmm.Frame) uintptr {
		return uintptr(unsafe.Pointer(&fp.frames[f][0]))
	}
	frameFromAddressFn = func(addr uintptr) pmm.Frame {
		for f, buf := range fp.frames {
			base := uintptr(unsafe.Pointer(&buf[0]))
			if addr >= base && addr < base+uintptr(len(buf)) {
				return f
			}
		}
		return pmm.InvalidFrame
	}

	return fp
}

func (fp *fakePMM) freeFrames() int { return fp.free }

func TestAllocCarvesOneFramePerFourBlocks(t *testing.T) {
	fp := newFakePMM(t, 4)

	var a Allocator
	seen := map[uintptr]bool{}
	for i := 0; i < blocksPerFrame; i++ {
		v, err := a.Alloc()
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		if seen[v] {
			t.Fatalf("block %#x handed out twice", v)
		}
		seen[v] = true
	}

	if got := fp.freeFrames(); got != 3 {
		t.Fatalf("expected exactly one frame (4 KiB) consumed for 4 blocks, 3 frames left free, got %d", got)
	}
}

func TestFreeReturnsWholeFrameOnceAllSiblingsAreFree(t *testing.T) {
	fp := newFakePMM(t, 4)

	var a Allocator
	blocks := make([]uintptr, blocksPerFrame)
	for i := range blocks {
		v, err := a.Alloc()
		if err != nil {
			t.Fatalf("Alloc %d: %v", i, err)
		}
		blocks[i] = v
	}

	for i, v := range blocks {
		if err := a.Free(v); err != nil {
			t.Fatalf("Free %d: %v", i, err)
		}
	}

	if got := fp.freeFrames(); got != 4 {
		t.Fatalf("expected the carved frame to return to pmm once all 4 blocks were freed, got %d free frames", got)
	}
	if len(a.freeCount) != 0 {
		t.Fatalf("expected freeCount to be empty after the frame was reclaimed, got %v", a.freeCount)
	}
}

func TestFreeRangeBlocksNeverReturnToPMM(t *testing.T) {
	fp := newFakePMM(t, 4)

	var a Allocator
	var bootPool [2 * blockSize]byte
	bootBase := uintptr(unsafe.Pointer(&bootPool[0]))
	a.FreeRange(bootBase, bootBase+2*blockSize)

	before := fp.freeFrames()

	v1, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	v2, err := a.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	inBootPool := func(v uintptr) bool { return v >= bootBase && v < bootBase+2*blockSize }
	if !inBootPool(v1) || !inBootPool(v2) {
		t.Fatalf("expected boot-pool blocks to be served before carving a pmm frame, got %#x %#x", v1, v2)
	}

	if err := a.Free(v1); err != nil {
		t.Fatalf("Free: %v", err)
	}
	if err := a.Free(v2); err != nil {
		t.Fatalf("Free: %v", err)
	}

	if got := fp.freeFrames(); got != before {
		t.Fatalf("boot-pool blocks must never be handed back to pmm: free frame count changed from %d to %d", before, got)
	}
}
