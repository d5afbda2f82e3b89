package vmm

import (
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/cpu"
	"armkernel/kernel/hal"
	"armkernel/kernel/kfmt"
	"armkernel/kernel/mem"
	"armkernel/kernel/mem/pmm"
	"armkernel/kernel/sync"
)

var (
	errOutOfMemory  = &kernel.Error{Module: "vmm", Message: "out of memory"}
	errTooLarge     = &kernel.Error{Module: "vmm", Message: "size exceeds a single page"}
	errOverUserSize = &kernel.Error{Module: "vmm", Message: "new size exceeds the user address space"}
	errNoDirectory  = &kernel.Error{Module: "vmm", Message: "process has no page directory"}
	errShortRead    = &kernel.Error{Module: "vmm", Message: "short read from backing inode"}
	errNotAligned   = &kernel.Error{Module: "vmm", Message: "virtual address is not page-aligned"}
)

// Inode is the subset of the (out-of-scope) file-system inode interface
// LoadUVM needs: a byte-range read at an explicit offset. The buffer cache
// and block-device driver that implement it live outside this package;
// spec.md treats them as an external collaborator reached only at this
// boundary.
type Inode interface {
	ReadAt(dst []byte, off uint) (n int, err *kernel.Error)
}

// NewUserDirectory allocates and zeroes a fresh TTBR0 page directory. It
// reuses pgtbl, the same slab that backs second-level page tables: on this
// architecture both are 1 KiB blocks (see pte.go's NumUserPDEs/NumPTEs).
func NewUserDirectory() (*UserDirectory, *kernel.Error) {
	block, err := pgtblAllocFn()
	if err != nil {
		return nil, errOutOfMemory
	}
	return (*UserDirectory)(unsafe.Pointer(block)), nil
}

// InitUVM maps a single page at virtual address 0 and copies init (the
// first sz bytes of the initial user program) into it. sz must fit in one
// page. Grounded on original_source/src/vm.c's inituvm.
func InitUVM(dir *UserDirectory, init []byte) *kernel.Error {
	if uint(len(init)) > uint(mem.PageSize) {
		return errTooLarge
	}

	frame, err := frameAllocFn()
	if err != nil {
		return errOutOfMemory
	}

	dst := hal.P2V(frame.Address())
	kernel.Memset(dst, 0, uintptr(PageSize()))

	if mapErr := Map(dir, 0, uint(PageSize()), frame.Address(), APKernelUserRW); mapErr != nil {
		return mapErr
	}

	kernel.Memmove(dst, sliceAddr(init), uintptr(len(init)))
	return nil
}

// PageSize is mem.PageSize re-exported as a helper so callers in this file
// don't need to import mem directly just for one constant.
func PageSize() uint { return uint(mem.PageSize) }

func sliceAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// LoadUVM loads n bytes from inode at offset off into the physical frames
// already backing [va, va+n) in dir. va must be page-aligned and every page
// it touches must already be mapped (allocate with AllocUVM/InitUVM first);
// an unmapped page here is a kernel bug, not a user error, so it panics
// exactly like original_source/src/vm.c's loaduvm. A short read from the
// inode is a user-observable failure and returns an error instead.
// Grounded on original_source/src/vm.c's loaduvm.
func LoadUVM(dir *UserDirectory, va uintptr, inode Inode, off, n uint) *kernel.Error {
	if va%uintptr(mem.PageSize) != 0 {
		return errNotAligned
	}

	for i := uint(0); i < n; i += uint(mem.PageSize) {
		pte, err := Walk(dir, va+uintptr(i), false)
		if err != nil || pte == nil || !present(*pte) {
			kfmt.Panic(&kernel.Error{Module: "vmm", Message: "loaduvm: address should exist"})
		}

		pa := entryAddress(*pte)

		chunk := n - i
		if chunk > uint(mem.PageSize) {
			chunk = uint(mem.PageSize)
		}

		dst := (*[1 << 30]byte)(unsafe.Pointer(hal.P2V(pa)))[:chunk:chunk]
		read, rerr := inode.ReadAt(dst, off+i)
		if rerr != nil || uint(read) != chunk {
			return errShortRead
		}
	}

	return nil
}

// AllocUVM grows a process's user address space from oldsz to newsz
// (neither need be page-aligned), allocating and mapping fresh zeroed
// pages to cover the new range. Returns the new size, or an error (and the
// address space rolled back to oldsz) if it runs out of memory or would
// exceed the user address space. Grounded on
// original_source/src/vm.c's allocuvm.
func AllocUVM(dir *UserDirectory, oldsz, newsz uint) (uint, *kernel.Error) {
	if newsz >= uint(mem.UserAddressSize) {
		return 0, errOverUserSize
	}
	if newsz < oldsz {
		return oldsz, nil
	}

	a := alignUp(uintptr(oldsz), uintptr(mem.PageSize))
	for ; a < uintptr(newsz); a += uintptr(mem.PageSize) {
		frame, err := frameAllocFn()
		if err != nil {
			DeallocUVM(dir, uint(a), oldsz)
			return 0, errOutOfMemory
		}

		kernel.Memset(hal.P2V(frame.Address()), 0, uintptr(mem.PageSize))
		if mapErr := Map(dir, a, uint(mem.PageSize), frame.Address(), APKernelUserRW); mapErr != nil {
			frameFreeFn(frame)
			DeallocUVM(dir, uint(a), oldsz)
			return 0, mapErr
		}
	}

	return newsz, nil
}

// DeallocUVM shrinks a process's user address space from oldsz to newsz,
// freeing the physical pages (but not the page tables themselves) that
// fall outside the new size. newsz need not be less than oldsz: if it
// isn't, oldsz is returned unchanged. Grounded on
// original_source/src/vm.c's deallocuvm.
func DeallocUVM(dir *UserDirectory, oldsz, newsz uint) uint {
	if newsz >= oldsz {
		return oldsz
	}

	a := alignUp(uintptr(newsz), uintptr(mem.PageSize))
	for a < uintptr(oldsz) {
		pte, err := Walk(dir, a, false)
		if err != nil || pte == nil {
			// No page table covers this entry: skip ahead to the
			// next page directory's worth of address space.
			a = alignUp(a+1, uintptr(mem.SectionSize))
			continue
		}

		if present(*pte) {
			frameFreeFn(pmm.FrameFromAddress(entryAddress(*pte)))
			*pte = 0
		}
		a += uintptr(mem.PageSize)
	}

	return newsz
}

// FreeVM releases every physical page mapped by dir, every second-level
// page table it points to, and dir itself. Grounded on
// original_source/src/vm.c's freevm.
func FreeVM(dir *UserDirectory) *kernel.Error {
	if dir == nil {
		return errNoDirectory
	}

	DeallocUVM(dir, uint(mem.UserAddressSize), 0)

	for i := range dir {
		if present(dir[i]) {
			pgtblFreeFn(hal.P2V(entryAddress(dir[i])))
		}
	}

	return pgtblFreeFn(uintptr(unsafe.Pointer(dir)))
}

// ClearPTEU removes user access from the page at uva, without unmapping
// it: used to plant an inaccessible guard page beneath a stack so a
// stack-underflowing access faults instead of silently reading/writing
// adjacent memory. Grounded on original_source/src/vm.c's clearpteu.
func ClearPTEU(dir *UserDirectory, uva uintptr) *kernel.Error {
	pte, err := Walk(dir, uva, false)
	if err != nil {
		return err
	}
	if pte == nil {
		return ErrInvalidMapping
	}
	*pte = (*pte &^ uint32(apMask)) | uint32(APKernelOnly<<apShift)
	return nil
}

// CopyUVM creates an independent copy of dir's first sz bytes of mapped
// user memory (physical pages included; no copy-on-write). Grounded on
// original_source/src/vm.c's copyuvm.
func CopyUVM(dir *UserDirectory, sz uint) (*UserDirectory, *kernel.Error) {
	newDir, err := NewUserDirectory()
	if err != nil {
		return nil, err
	}

	for a := uintptr(0); a < uintptr(sz); a += uintptr(mem.PageSize) {
		pte, werr := Walk(dir, a, false)
		if werr != nil || pte == nil || !present(*pte) {
			FreeVM(newDir)
			return nil, ErrInvalidMapping
		}

		srcPA := entryAddress(*pte)
		ap := accessPerm(*pte)

		frame, ferr := frameAllocFn()
		if ferr != nil {
			FreeVM(newDir)
			return nil, errOutOfMemory
		}

		kernel.Memmove(hal.P2V(frame.Address()), hal.P2V(srcPA), uintptr(mem.PageSize))
		if merr := Map(newDir, a, uint(mem.PageSize), frame.Address(), ap); merr != nil {
			frameFreeFn(frame)
			FreeVM(newDir)
			return nil, merr
		}
	}

	return newDir, nil
}

// UVA2KA translates a user virtual address to its kernel-virtual alias,
// returning ErrInvalidMapping if uva is unmapped and ErrNotUserPage if it
// is mapped but not user-accessible. Grounded on
// original_source/src/vm.c's uva2ka.
func UVA2KA(dir *UserDirectory, uva uintptr) (uintptr, *kernel.Error) {
	pte, err := Walk(dir, uva, false)
	if err != nil {
		return 0, err
	}
	if pte == nil || !present(*pte) {
		return 0, ErrInvalidMapping
	}
	if accessPerm(*pte) != APKernelUserRW {
		return 0, ErrNotUserPage
	}
	return hal.P2V(entryAddress(*pte)), nil
}

// CopyOut copies len(src) bytes from src into dir's user address space
// starting at va, crossing page boundaries as needed. Grounded on
// original_source/src/vm.c's copyout.
func CopyOut(dir *UserDirectory, va uintptr, src []byte) *kernel.Error {
	for len(src) > 0 {
		va0 := alignDown(va, uintptr(mem.PageSize))
		pa0, err := UVA2KA(dir, va0)
		if err != nil {
			return err
		}

		n := uint(mem.PageSize) - uint(va-va0)
		if n > uint(len(src)) {
			n = uint(len(src))
		}

		kernel.Memmove(pa0+(va-va0), sliceAddr(src), uintptr(n))

		src = src[n:]
		va = va0 + uintptr(mem.PageSize)
	}
	return nil
}

// vmmLock guards the single TTBR0 switch done by SwitchUVM: on a
// single-CPU kernel there is exactly one "current" user directory, and
// pushcli/popcli around the MCR already makes the switch atomic with
// respect to interrupts, but the lock additionally serializes concurrent
// SwitchUVM callers (e.g. the scheduler and a syscall path) against each
// other.
var vmmLock sync.Spinlock

// SwitchUVM installs dir as the active TTBR0 user page directory and
// flushes the TLB. Grounded on original_source/src/vm.c's switchuvm.
func SwitchUVM(dir *UserDirectory) *kernel.Error {
	if dir == nil {
		return errNoDirectory
	}

	vmmLock.Acquire()
	defer vmmLock.Release()

	sync.PushCli()
	defer sync.PopCli()

	cpu.SetTTBR0(uint32(hal.V2P(uintptr(unsafe.Pointer(dir)))))
	cpu.FlushTLB()
	return nil
}
