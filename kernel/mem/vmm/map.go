package vmm

import (
	"armkernel/kernel"
	"armkernel/kernel/mem"
)

// Map creates PTEs mapping the virtual range [va, va+size) to the
// physical range starting at pa, with access permissions ap. va and size
// need not be page-aligned; the mapping is rounded to cover every page the
// range touches. Grounded on original_source/src/vm.c's mappages.
func Map(dir *UserDirectory, va uintptr, size uint, pa uintptr, ap PageTableEntryFlag) *kernel.Error {
	a := alignDown(va, uintptr(mem.PageSize))
	last := alignDown(va+uintptr(size)-1, uintptr(mem.PageSize))

	for {
		pte, err := Walk(dir, a, true)
		if err != nil {
			return err
		}

		if present(*pte) {
			// original_source/src/vm.c's mappages calls panic("remap")
			// here: a double-map is a kernel bug, not a condition a
			// caller can recover from, so this halts rather than
			// returning an error a caller might ignore.
			panicFn(&kernel.Error{Module: "vmm", Message: "remap"})
			return nil
		}

		*pte = smallPageEntry(pa, ap)

		if a == last {
			break
		}
		a += uintptr(mem.PageSize)
		pa += uintptr(mem.PageSize)
	}

	return nil
}

func alignDown(v, align uintptr) uintptr {
	return v &^ (align - 1)
}

func alignUp(v, align uintptr) uintptr {
	return alignDown(v+align-1, align)
}
