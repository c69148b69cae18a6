package guest

import "sync"

var (
	defaultTable = NewTable()

	hookMu   sync.Mutex
	initHook func()
)

// Default returns the table backing the export surface.
func Default() *Table {
	return defaultTable
}

// OnInit registers fn to run when the host calls the init export.
// Call it from a package init function of the guest program.
func OnInit(fn func()) {
	hookMu.Lock()
	defer hookMu.Unlock()
	initHook = fn
}

func runInit() {
	hookMu.Lock()
	fn := initHook
	hookMu.Unlock()
	if fn != nil {
		fn()
	}
}

// WriteString copies s into a new buffer and returns its handle.
func WriteString(s string) int32 {
	return WriteBuffer([]byte(s))
}

// WriteBuffer hands b to the table and returns its handle. The caller must not
// modify b afterwards.
func WriteBuffer(b []byte) int32 {
	h, err := defaultTable.Insert(b)
	if err != nil {
		Fail(err.Error())
	}
	return h
}

// ReadBuffer returns a copy of the buffer named by handle.
func ReadBuffer(handle int32) ([]byte, error) {
	return defaultTable.Read(handle)
}

// ConsumeBuffer removes the buffer named by handle and returns its bytes.
func ConsumeBuffer(handle int32) ([]byte, error) {
	return defaultTable.Consume(handle)
}

// ReadString returns the buffer named by handle as a string.
func ReadString(handle int32) (string, error) {
	return defaultTable.ReadString(handle)
}

// ConsumeString removes the buffer named by handle and returns it as a string.
func ConsumeString(handle int32) (string, error) {
	return defaultTable.ConsumeString(handle)
}

// Log asks the host to log message. The host frees the buffer.
func Log(message string) {
	h, err := defaultTable.Insert([]byte(message))
	if err != nil {
		return
	}
	hostLog(h)
}

// Panic reports an unrecoverable condition to the host. It does not stop the
// guest; use Fail for that.
func Panic(message string) {
	h, err := defaultTable.Insert([]byte(message))
	if err != nil {
		return
	}
	hostPanic(h)
}

// Fail reports message to the host and aborts the guest.
func Fail(message string) {
	Panic(message)
	panic(message)
}
