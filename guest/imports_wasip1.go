//go:build wasip1 && !membrane_nohost

package guest

//go:wasmimport env membrane_host_log
//nolint:revive // intentional snake_case to match WASM import convention
func hostLog(handle int32)

//go:wasmimport env membrane_host_panic
//nolint:revive // intentional snake_case to match WASM import convention
func hostPanic(handle int32)
