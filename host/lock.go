package host

import (
	"context"
	"sync"
)

// BufferLock pairs a guest buffer with the Membrane that owns it and frees
// the buffer exactly once. Pair it with defer:
//
//	lock, err := m.WriteStringLocked(ctx, payload)
//	if err != nil {
//	    return err
//	}
//	defer lock.Release(ctx)
type BufferLock struct {
	id   int32
	m    *Membrane
	once sync.Once
}

// NewBufferLock records the pairing. The buffer must already exist.
func NewBufferLock(id int32, m *Membrane) *BufferLock {
	return &BufferLock{id: id, m: m}
}

// Lock guards an existing buffer.
func (m *Membrane) Lock(id int32) *BufferLock {
	return NewBufferLock(id, m)
}

// ID returns the guarded buffer handle.
func (l *BufferLock) ID() int32 {
	return l.id
}

// Release frees the buffer. Only the first call reaches the guest; later calls
// are no-ops and return nil.
func (l *BufferLock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		err = l.m.Dealloc(ctx, l.id)
	})
	return err
}

// WriteStringLocked writes s into a new buffer and returns a lock over it.
func (m *Membrane) WriteStringLocked(ctx context.Context, s string) (*BufferLock, error) {
	h, err := m.WriteString(ctx, s)
	if err != nil {
		return nil, err
	}
	return NewBufferLock(h, m), nil
}

// WriteBufferLocked writes data into a new buffer and returns a lock over it.
func (m *Membrane) WriteBufferLocked(ctx context.Context, data []byte) (*BufferLock, error) {
	h, err := m.WriteBuffer(ctx, data)
	if err != nil {
		return nil, err
	}
	return NewBufferLock(h, m), nil
}

// WithBuffer writes data into a new buffer, runs fn with a lock over it and
// releases the buffer however fn exits, panics included. A release error is
// returned only when fn itself succeeded.
func WithBuffer(ctx context.Context, m *Membrane, data []byte, fn func(*BufferLock) error) (err error) {
	lock, err := m.WriteBufferLocked(ctx, data)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(ctx); err == nil {
			err = rerr
		}
	}()
	return fn(lock)
}
