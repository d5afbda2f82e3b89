package boot

import "testing"

func TestKernelPageTableReturnsLiveRootTable(t *testing.T) {
	got := KernelPageTable()
	if got != &kernelPageTable {
		t.Fatal("expected KernelPageTable to return the package's own kernelPageTable")
	}
}

func TestRootForRoutesLowAddressesToUserTable(t *testing.T) {
	// Any address whose top bits fall inside the user half of the address
	// space (routed through TTBR0) must resolve to userPageTable.
	if got := rootFor(0); got != &userPageTable {
		t.Fatal("expected address 0 to route through userPageTable")
	}
}

func TestRootForRoutesHighAddressesToKernelTable(t *testing.T) {
	if got := rootFor(0xFFFF0000); got != &kernelPageTable {
		t.Fatal("expected a high-half address to route through kernelPageTable")
	}
}
