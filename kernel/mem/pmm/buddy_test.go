package pmm

import "testing"

func TestAllocatorExhaustsThenFreeRestoresCapacity(t *testing.T) {
	var a Allocator
	if err := a.Init(0, 16); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if got := a.NumFreeFrames(); got != 16 {
		t.Fatalf("expected 16 free frames after Init, got %d", got)
	}

	var allocated []Frame
	for {
		f, err := a.AllocFrame()
		if err != nil {
			break
		}
		allocated = append(allocated, f)
	}

	if len(allocated) != 16 {
		t.Fatalf("expected to allocate exactly 16 single frames, got %d", len(allocated))
	}
	if a.NumFreeFrames() != 0 {
		t.Fatalf("expected 0 free frames once exhausted, got %d", a.NumFreeFrames())
	}

	if _, err := a.AllocFrame(); err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory once exhausted, got %v", err)
	}

	for _, f := range allocated {
		if err := a.FreeFrame(f); err != nil {
			t.Fatalf("FreeFrame(%d): %v", f, err)
		}
	}

	if got := a.NumFreeFrames(); got != 16 {
		t.Fatalf("expected all 16 frames free again after releasing everything, got %d", got)
	}

	// Freeing every single-frame block back in order should have fully
	// coalesced: a single order-4 block covering the whole region must now
	// be available.
	big, err := a.AllocOrder(4)
	if err != nil {
		t.Fatalf("expected a fully coalesced order-4 block, got error: %v", err)
	}
	if big != 0 {
		t.Fatalf("expected the coalesced block to start at frame 0, got %d", big)
	}
}

func TestAllocOrderAlignment(t *testing.T) {
	var a Allocator
	if err := a.Init(100, 100+64); err != nil {
		t.Fatalf("Init: %v", err)
	}

	f, err := a.AllocOrder(3)
	if err != nil {
		t.Fatalf("AllocOrder(3): %v", err)
	}
	if (f-100)%8 != 0 {
		t.Fatalf("order-3 allocation must be 8-frame aligned relative to region start, got frame %d", f)
	}
}

func TestAllocOrderSplitsLargerBlockAndTracksRemainder(t *testing.T) {
	var a Allocator
	if err := a.Init(0, 8); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// The whole region coalesces into one order-3 block. Taking an
	// order-0 frame out of it must leave exactly 7 frames split across
	// the remaining orders (4+2+1), all independently allocatable.
	if _, err := a.AllocFrame(); err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if got := a.NumFreeFrames(); got != 7 {
		t.Fatalf("expected 7 frames left free after splitting an order-3 block, got %d", got)
	}

	var got []Frame
	for i := 0; i < 7; i++ {
		f, err := a.AllocFrame()
		if err != nil {
			t.Fatalf("AllocFrame %d: %v", i, err)
		}
		got = append(got, f)
	}
	seen := map[Frame]bool{}
	for _, f := range got {
		if seen[f] {
			t.Fatalf("frame %d handed out twice: buddy allocator returned overlapping frames", f)
		}
		seen[f] = true
	}
}

func TestFreeOrderRejectsDoubleFree(t *testing.T) {
	var a Allocator
	if err := a.Init(0, 4); err != nil {
		t.Fatalf("Init: %v", err)
	}

	f, err := a.AllocFrame()
	if err != nil {
		t.Fatalf("AllocFrame: %v", err)
	}
	if err := a.FreeFrame(f); err != nil {
		t.Fatalf("FreeFrame: %v", err)
	}
	if err := a.FreeFrame(f); err != errDoubleFree {
		t.Fatalf("expected errDoubleFree on second free, got %v", err)
	}
}

func TestAllocOrderRejectsOrderAboveMax(t *testing.T) {
	var a Allocator
	if err := a.Init(0, 4); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := a.AllocOrder(MaxOrder + 1); err != errBadOrder {
		t.Fatalf("expected errBadOrder for order above MaxOrder, got %v", err)
	}
}

func TestInitWithNonPowerOfTwoRegionIsFullyUsable(t *testing.T) {
	var a Allocator
	// 13 frames: not a power of two, forces Init to carve multiple
	// maximal aligned runs (8 + 4 + 1) rather than a single block.
	if err := a.Init(0, 13); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := a.NumFreeFrames(); got != 13 {
		t.Fatalf("expected all 13 frames free after Init, got %d", got)
	}

	count := 0
	for {
		if _, err := a.AllocFrame(); err != nil {
			break
		}
		count++
	}
	if count != 13 {
		t.Fatalf("expected to allocate all 13 frames one at a time, got %d", count)
	}
}
