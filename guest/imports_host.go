//go:build !wasip1 || membrane_nohost

package guest

import (
	"fmt"
	"os"
)

// Outside wasm there is no host to call. These stand-ins consume the buffer the
// way the host would and print it, so guest code can run in native tests.

func hostLog(handle int32) {
	msg, err := defaultTable.ConsumeString(handle)
	if err != nil {
		return
	}
	fmt.Fprintf(os.Stderr, "[HOST-STUB] guest: %s\n", msg)
}

func hostPanic(handle int32) {
	msg, err := defaultTable.ConsumeString(handle)
	if err != nil {
		return
	}
	fmt.Fprintf(os.Stderr, "[HOST-STUB] guest panic: %s\n", msg)
}
