//go:build wasip1

package guest

import (
	"unsafe"

	"github.com/reglet-dev/membrane/abi"
)

//go:wasmexport membrane_guest_version
func exportVersion() int32 {
	return abi.Version
}

//go:wasmexport membrane_guest_init
func exportInit() {
	runInit()
}

//go:wasmexport membrane_guest_allows_buffer_ptr
func exportAllowsBufferPtr() int32 {
	return abi.OK
}

//go:wasmexport membrane_guest_alloc_buffer
func exportAllocBuffer(length int32) int32 {
	h, err := defaultTable.Alloc(length)
	if err != nil {
		Fail(err.Error())
	}
	return h
}

//go:wasmexport membrane_guest_write_to_buffer
func exportWriteToBuffer(handle, index, value int32) {
	if err := defaultTable.SetByte(handle, index, byte(value)); err != nil { //nolint:gosec // G115: only the low byte is meaningful
		Fail(err.Error())
	}
}

//go:wasmexport membrane_guest_dealloc_buffer
func exportDeallocBuffer(handle int32) {
	defaultTable.Dealloc(handle)
}

// exportGetBufferPtr returns the linear-memory address of a buffer. The Go GC
// does not move objects and the table keeps the slice reachable, so the address
// stays valid until the next allocation or deallocation call.
//
//go:wasmexport membrane_guest_get_buffer_ptr
func exportGetBufferPtr(handle int32) uint32 {
	b, err := defaultTable.View(handle)
	if err != nil {
		Fail(err.Error())
	}
	if len(b) == 0 {
		return 0
	}
	//nolint:gosec // G103: wasm32 linear memory address
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}

//go:wasmexport membrane_guest_get_buffer_len
func exportGetBufferLen(handle int32) int32 {
	n, err := defaultTable.Len(handle)
	if err != nil {
		Fail(err.Error())
	}
	return n
}

// exportTest logs a host-provided string back through the host.
//
//go:wasmexport membrane_guest_test
func exportTest(handle int32) {
	msg, err := ConsumeString(handle)
	if err != nil {
		Fail(err.Error())
	}
	Log(msg)
}
