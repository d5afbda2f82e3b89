package goruntime

import (
	"reflect"
	"testing"
	"unsafe"

	"armkernel/kernel"
	"armkernel/kernel/mem"
	"armkernel/kernel/mem/pmm"
)

func TestSysReserve(t *testing.T) {
	defer func() { allocOrderFn = pmm.AllocOrder }()
	var reserved bool

	t.Run("success", func(t *testing.T) {
		allocOrderFn = func(order uint8) (pmm.Frame, *kernel.Error) {
			return pmm.Frame(0), nil
		}

		ptr := sysReserve(nil, uintptr(2*mem.PageSize), &reserved)
		if uintptr(ptr) == 0 {
			t.Fatal("expected sysReserve to return a non-zero address")
		}
		if !reserved {
			t.Fatal("expected reserved to be set true")
		}
	})

	t.Run("allocation fails", func(t *testing.T) {
		allocOrderFn = func(order uint8) (pmm.Frame, *kernel.Error) {
			return pmm.Frame(0), &kernel.Error{Module: "test", Message: "out of memory"}
		}

		ptr := sysReserve(nil, uintptr(mem.PageSize), &reserved)
		if uintptr(ptr) != 0 {
			t.Fatal("expected sysReserve to return 0x0 when the frame allocator fails")
		}
		if reserved {
			t.Fatal("expected reserved to be left false on failure")
		}
	})
}

func TestSysMap(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var sysStat uint64
		addr := unsafe.Pointer(uintptr(0xbadf000))

		got := sysMap(addr, uintptr(4*mem.PageSize), true, &sysStat)
		if got != addr {
			t.Fatalf("expected sysMap to return the already-reserved address unchanged; got 0x%x", uintptr(got))
		}
		if exp := uint64(4 * mem.PageSize); sysStat != exp {
			t.Errorf("expected stat counter to be %d; got %d", exp, sysStat)
		}
	})

	t.Run("panic if not reserved", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Fatal("expected sysMap to panic when reserved is false")
			}
		}()
		sysMap(nil, 0, false, nil)
	})
}

func TestSysAlloc(t *testing.T) {
	defer func() { allocOrderFn = pmm.AllocOrder }()

	t.Run("success", func(t *testing.T) {
		allocOrderFn = func(order uint8) (pmm.Frame, *kernel.Error) {
			return pmm.Frame(0), nil
		}

		var sysStat uint64
		got := sysAlloc(uintptr(4*mem.PageSize), &sysStat)
		if uintptr(got) == 0 {
			t.Fatal("expected sysAlloc to return a non-zero address")
		}
		if exp := uint64(4 * mem.PageSize); sysStat != exp {
			t.Errorf("expected stat counter to be %d; got %d", exp, sysStat)
		}
	})

	t.Run("allocation fails", func(t *testing.T) {
		allocOrderFn = func(order uint8) (pmm.Frame, *kernel.Error) {
			return pmm.Frame(0), &kernel.Error{Module: "test", Message: "out of memory"}
		}

		var sysStat uint64
		if got := sysAlloc(uintptr(mem.PageSize), &sysStat); got != unsafe.Pointer(uintptr(0)) {
			t.Fatalf("expected sysAlloc to return 0x0 when the frame allocator fails; got 0x%x", uintptr(got))
		}
	})
}

func TestOrderForSize(t *testing.T) {
	specs := []struct {
		size uintptr
		want uint8
	}{
		{1, 0},
		{uintptr(mem.PageSize), 0},
		{uintptr(mem.PageSize) + 1, 1},
		{uintptr(4 * mem.PageSize), 2},
		{uintptr(4*mem.PageSize) + 1, 3},
	}

	for _, spec := range specs {
		if got := orderForSize(spec.size); got != spec.want {
			t.Errorf("orderForSize(%d) = %d, want %d", spec.size, got, spec.want)
		}
	}
}

func TestGetRandomData(t *testing.T) {
	sample1 := make([]byte, 128)
	sample2 := make([]byte, 128)

	getRandomData(sample1)
	getRandomData(sample2)

	if reflect.DeepEqual(sample1, sample2) {
		t.Fatal("expected getRandomData to return different values for each invocation")
	}
}

func TestInit(t *testing.T) {
	defer func() {
		mallocInitFn = mallocInit
		algInitFn = algInit
		modulesInitFn = modulesInit
		typeLinksInitFn = typeLinksInit
		itabsInitFn = itabsInit
	}()

	mallocInitFn = func() {}
	algInitFn = func() {}
	modulesInitFn = func() {}
	typeLinksInitFn = func() {}
	itabsInitFn = func() {}

	if err := Init(); err != nil {
		t.Fatal(err)
	}
}
