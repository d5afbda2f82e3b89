package kernel

import (
	"reflect"
	"unsafe"
)

// Memset sets size bytes starting at addr to value. The implementation
// doubles the filled region on each pass (akin to bytes.Repeat) instead of
// looping byte-by-byte, which matters here since addr is frequently an
// entire page or page table that needs zeroing on every hand-back.
func Memset(addr uintptr, value byte, size uintptr) {
	if size == 0 {
		return
	}

	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	target[0] = value
	for filled := uintptr(1); filled < size; filled *= 2 {
		copy(target[filled:], target[:filled])
	}
}

// Memmove copies size bytes from src to dst. The two regions may overlap;
// Go's copy() already handles that correctly for a single backing array, so
// this is not a naive forward-only memmove.
func Memmove(dst, src uintptr, size uintptr) {
	if size == 0 {
		return
	}

	srcSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len: int(size), Cap: int(size), Data: src,
	}))
	dstSlice := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len: int(size), Cap: int(size), Data: dst,
	}))

	copy(dstSlice, srcSlice)
}
