//go:build wasip1 && membrane_nohost

// The export surface runs inside the stock wasip1 test runner, which has no
// "env" host module, so the host imports are replaced by the native stand-ins:
//
//	GOOS=wasip1 GOARCH=wasm go test -tags membrane_nohost ./guest

package guest

import (
	"testing"
	"unsafe"

	"github.com/reglet-dev/membrane/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetDefaultTable(t *testing.T) {
	t.Helper()
	defaultTable.Reset()
	t.Cleanup(defaultTable.Reset)
}

func TestExportVersionAndCapability(t *testing.T) {
	assert.Equal(t, abi.Version, exportVersion())
	assert.Equal(t, abi.OK, exportAllowsBufferPtr())
}

func TestExportInit_RunsHook(t *testing.T) {
	called := 0
	OnInit(func() { called++ })
	t.Cleanup(func() { OnInit(nil) })

	exportInit()
	assert.Equal(t, 1, called)
}

func TestExportAllocBuffer_LenAndPtr(t *testing.T) {
	resetDefaultTable(t)

	h := exportAllocBuffer(18)
	require.Positive(t, h)
	assert.Equal(t, int32(18), exportGetBufferLen(h))

	view, err := defaultTable.View(h)
	require.NoError(t, err)
	want := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(view)))) //nolint:gosec // G103: wasm32 address
	assert.Equal(t, want, exportGetBufferPtr(h))
}

func TestExportAllocBuffer_Monotonic(t *testing.T) {
	resetDefaultTable(t)

	a := exportAllocBuffer(1)
	exportDeallocBuffer(a)
	b := exportAllocBuffer(1)
	assert.Greater(t, b, a)
}

func TestExportGetBufferPtr_EmptyBufferIsZero(t *testing.T) {
	resetDefaultTable(t)

	h := exportAllocBuffer(0)
	assert.Equal(t, int32(0), exportGetBufferLen(h))
	assert.Equal(t, uint32(0), exportGetBufferPtr(h))
}

func TestExportWriteToBuffer(t *testing.T) {
	resetDefaultTable(t)

	msg := []byte("Hello From MEMBRANE!")[:18]
	h := exportAllocBuffer(int32(len(msg)))
	for i, b := range msg {
		exportWriteToBuffer(h, int32(i), int32(b))
	}

	got, err := defaultTable.Read(h)
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	// The bytes live at the address the host is given.
	ptr := exportGetBufferPtr(h)
	view := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), exportGetBufferLen(h)) //nolint:govet,gosec // address from the export under test
	assert.Equal(t, msg, view)
}

func TestExportWriteToBuffer_FailsOutOfBounds(t *testing.T) {
	resetDefaultTable(t)

	h := exportAllocBuffer(2)
	assert.Panics(t, func() { exportWriteToBuffer(h, 2, 'x') })
	assert.Panics(t, func() { exportWriteToBuffer(h, -1, 'x') })
	assert.Panics(t, func() { exportWriteToBuffer(h+100, 0, 'x') })

	got, err := defaultTable.Read(h)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got, "a rejected write leaves the buffer untouched")
}

func TestExportAllocBuffer_FailsOnNegativeLength(t *testing.T) {
	resetDefaultTable(t)
	assert.Panics(t, func() { exportAllocBuffer(-1) })
}

func TestExportDeallocBuffer_UnknownIsNoop(t *testing.T) {
	resetDefaultTable(t)

	keep := exportAllocBuffer(3)
	assert.NotPanics(t, func() { exportDeallocBuffer(9999) })

	h := exportAllocBuffer(1)
	exportDeallocBuffer(h)
	assert.NotPanics(t, func() { exportDeallocBuffer(h) })

	count, total := defaultTable.Stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, 3, total)
	assert.Equal(t, int32(3), exportGetBufferLen(keep))
}

func TestExportGetBuffer_UnknownHandleFails(t *testing.T) {
	resetDefaultTable(t)

	h := exportAllocBuffer(4)
	exportDeallocBuffer(h)
	assert.Panics(t, func() { exportGetBufferLen(h) })
	assert.Panics(t, func() { exportGetBufferPtr(h) })
}

func TestExportTest_ConsumesHostBuffer(t *testing.T) {
	resetDefaultTable(t)

	h := WriteString("echo")
	exportTest(h)

	_, err := defaultTable.Len(h)
	assert.ErrorIs(t, err, ErrUnknownBuffer)
	count, _ := defaultTable.Stats()
	assert.Zero(t, count, "the log stand-in consumes the message buffer too")
}
