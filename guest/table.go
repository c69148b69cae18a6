// Package guest is the in-module half of the membrane: a buffer table that
// owns every byte sequence exchanged with the host, and (when built for
// wasip1) the export surface the host drives it through.
//
// The table is an ordinary value so it can be exercised natively; the wasip1
// build binds the export surface to a package default table.
package guest

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"
)

// DefaultMaxTotalBytes bounds the bytes a table holds at once.
// This prevents unbounded growth of the guest's linear memory.
const DefaultMaxTotalBytes = 100 * 1024 * 1024 // 100 MB

var (
	ErrNegativeLength   = errors.New("guest: negative buffer length")
	ErrUnknownBuffer    = errors.New("guest: unknown buffer")
	ErrOutOfBounds      = errors.New("guest: index out of bounds")
	ErrBudgetExceeded   = errors.New("guest: allocation budget exceeded")
	ErrHandlesExhausted = errors.New("guest: buffer handles exhausted")
	ErrInvalidUTF8      = errors.New("guest: buffer is not valid UTF-8")
)

// Table maps buffer handles to the byte sequences they own.
//
// Handles are issued from a monotonic counter starting at 1 and are never
// reused, even after the buffer they named is deallocated.
type Table struct {
	mu         sync.RWMutex
	buffers    map[int32][]byte
	next       int32
	totalBytes int
	maxBytes   int
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithMaxTotalBytes sets the byte budget of the table.
// Zero or negative limits are ignored.
func WithMaxTotalBytes(limit int) TableOption {
	return func(t *Table) {
		if limit > 0 {
			t.maxBytes = limit
		}
	}
}

// NewTable creates an empty table.
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		buffers:  make(map[int32][]byte),
		next:     1,
		maxBytes: DefaultMaxTotalBytes,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Alloc creates a zeroed buffer of exactly length bytes and returns its handle.
func (t *Table) Alloc(length int32) (int32, error) {
	if length < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeLength, length)
	}
	return t.insert(make([]byte, length))
}

// Insert takes ownership of b and returns the handle naming it.
func (t *Table) Insert(b []byte) (int32, error) {
	if b == nil {
		b = []byte{}
	}
	return t.insert(b)
}

func (t *Table) insert(b []byte) (int32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.next == math.MaxInt32 {
		return 0, ErrHandlesExhausted
	}
	if t.totalBytes+len(b) > t.maxBytes {
		return 0, fmt.Errorf("%w (requested: %d bytes, current: %d bytes, limit: %d bytes)",
			ErrBudgetExceeded, len(b), t.totalBytes, t.maxBytes)
	}

	handle := t.next
	t.next++
	t.buffers[handle] = b
	t.totalBytes += len(b)
	return handle, nil
}

// SetByte sets one byte of a buffer.
func (t *Table) SetByte(handle, index int32, value byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buffers[handle]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, handle)
	}
	if index < 0 || int(index) >= len(b) {
		return fmt.Errorf("%w: index %d, length %d", ErrOutOfBounds, index, len(b))
	}
	b[index] = value
	return nil
}

// Dealloc drops a buffer. It reports whether the handle was known; unknown
// handles are ignored.
func (t *Table) Dealloc(handle int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buffers[handle]
	if !ok {
		return false
	}
	delete(t.buffers, handle)
	t.totalBytes -= len(b)
	return true
}

// View returns the live storage of a buffer. The slice is only valid until
// the next Alloc, Insert or Dealloc on the table.
func (t *Table) View(handle int32) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.buffers[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBuffer, handle)
	}
	return b, nil
}

// Len returns the length of a buffer.
func (t *Table) Len(handle int32) (int32, error) {
	b, err := t.View(handle)
	if err != nil {
		return 0, err
	}
	return int32(len(b)), nil //nolint:gosec // G115: buffers are created from int32 lengths
}

// Read returns a copy of a buffer's bytes.
func (t *Table) Read(handle int32) ([]byte, error) {
	b, err := t.View(handle)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Consume removes a buffer from the table and returns its bytes.
func (t *Table) Consume(handle int32) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buffers[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBuffer, handle)
	}
	delete(t.buffers, handle)
	t.totalBytes -= len(b)
	return b, nil
}

// ReadString returns a buffer's bytes as a string.
func (t *Table) ReadString(handle int32) (string, error) {
	b, err := t.Read(handle)
	if err != nil {
		return "", err
	}
	return decode(handle, b)
}

// ConsumeString removes a buffer and returns its bytes as a string.
func (t *Table) ConsumeString(handle int32) (string, error) {
	b, err := t.Consume(handle)
	if err != nil {
		return "", err
	}
	return decode(handle, b)
}

// Stats returns the number of live buffers and the bytes they hold.
func (t *Table) Stats() (count, totalBytes int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.buffers), t.totalBytes
}

// Reset drops every buffer. The handle counter keeps counting.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.buffers)
	t.totalBytes = 0
}

func decode(handle int32, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: handle %d", ErrInvalidUTF8, handle)
	}
	return string(b), nil
}
