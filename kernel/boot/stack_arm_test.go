package boot

import (
	"testing"

	"armkernel/kernel/mem"
	"armkernel/kernel/mem/vmm"
)

func TestSvcStackTopPointsPastReservedArray(t *testing.T) {
	top := SvcStackTop()
	if top == 0 {
		t.Fatal("expected a non-zero stack top address")
	}
	if top%4 != 0 {
		t.Fatal("expected the stack top to be word-aligned")
	}
}

func TestTeardownIdentityMapClearsUserTableEntries(t *testing.T) {
	userPageTable = vmm.KernelDirectory{}
	for i := range userPageTable {
		userPageTable[i] = 0xdeadbeef
	}

	TeardownIdentityMap(uint(mem.SectionSize))

	if userPageTable[0] != 0 {
		t.Fatal("expected TeardownIdentityMap to clear the torn-down section's entry")
	}
}
