package host

import (
	"context"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/reglet-dev/membrane/abi"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// export looks up the function bound to role and checks its signature.
func (m *Membrane) export(role abi.Role) (api.Function, string, error) {
	name := m.profile.ExportName(role)
	if name == "" {
		return nil, "", &MissingExportError{Role: role, Reason: "is not bound by profile " + m.profile.Name}
	}
	fn := m.module.ExportedFunction(name)
	if fn == nil {
		return nil, name, &MissingExportError{Role: role, Name: name, Reason: "is not exported"}
	}
	sig, _ := abi.SignatureOf(role)
	def := fn.Definition()
	if !sig.Matches(def.ParamTypes(), def.ResultTypes()) {
		return nil, name, &MissingExportError{Role: role, Name: name,
			Reason: fmt.Sprintf("has signature %s, want %s",
				abi.Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}.Format(name), sig.Format(name))}
	}
	return fn, name, nil
}

func (m *Membrane) callRole(ctx context.Context, role abi.Role, args ...uint64) ([]uint64, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	fn, name, err := m.export(role)
	if err != nil {
		return nil, err
	}
	return m.invoke(ctx, name, fn, args...)
}

func (m *Membrane) invoke(ctx context.Context, name string, fn api.Function, args ...uint64) ([]uint64, error) {
	outer := m.depth.Add(1) == 1
	defer m.depth.Add(-1)
	if outer {
		m.panics.clearPending()
	}

	m.stats.calls.Add(1)
	results, err := fn.Call(ctx, args...)
	if err != nil {
		m.stats.faults.Add(1)
		fault := &GuestFaultError{Export: name, Panic: m.panics.pendingMessage(), Err: err}
		m.logger.Debug("guest call failed", zap.String("export", name), zap.Error(err))
		return nil, fault
	}
	return results, nil
}

func (m *Membrane) callI32(ctx context.Context, role abi.Role, args ...uint64) (int32, error) {
	results, err := m.callRole(ctx, role, args...)
	if err != nil {
		return 0, err
	}
	return api.DecodeI32(results[0]), nil
}

func (m *Membrane) memory(op string, handle int32) (api.Memory, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	mem := m.module.ExportedMemory(m.profile.Memory)
	if mem == nil {
		return nil, &MemoryError{Op: op, Handle: handle, Reason: fmt.Sprintf("memory export %q not found", m.profile.Memory)}
	}
	return mem, nil
}

// Call invokes any guest export by name. It is the escape hatch for guest
// entry points outside the buffer protocol, such as application hooks.
func (m *Membrane) Call(ctx context.Context, export string, args ...uint64) ([]uint64, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	fn := m.module.ExportedFunction(export)
	if fn == nil {
		return nil, &MissingExportError{Name: export, Reason: "is not exported"}
	}
	if want := len(fn.Definition().ParamTypes()); want != len(args) {
		return nil, &MissingExportError{Name: export, Reason: fmt.Sprintf("takes %d arguments, got %d", want, len(args))}
	}
	return m.invoke(ctx, export, fn, args...)
}

// Alloc asks the guest for an empty buffer of length bytes.
func (m *Membrane) Alloc(ctx context.Context, length int32) (int32, error) {
	if length < 0 {
		return 0, &MemoryError{Op: "alloc", Reason: fmt.Sprintf("negative length %d", length)}
	}
	h, err := m.callI32(ctx, abi.RoleAllocBuffer, api.EncodeI32(length))
	if err != nil {
		return 0, err
	}
	m.stats.allocs.Add(1)
	return h, nil
}

// BufferLen returns the current length the guest reports for handle.
func (m *Membrane) BufferLen(ctx context.Context, handle int32) (int32, error) {
	return m.callI32(ctx, abi.RoleGetBufferLen, api.EncodeI32(handle))
}

// WriteString copies s into a new guest buffer and returns its handle. The
// host does not free the buffer.
func (m *Membrane) WriteString(ctx context.Context, s string) (int32, error) {
	return m.WriteBuffer(ctx, []byte(s))
}

// WriteBuffer copies data into a new guest buffer and returns its handle.
func (m *Membrane) WriteBuffer(ctx context.Context, data []byte) (int32, error) {
	if len(data) > math.MaxInt32 {
		return 0, &MemoryError{Op: "write", Reason: fmt.Sprintf("%d bytes do not fit a wasm32 buffer", len(data))}
	}
	mem, err := m.memory("write", 0)
	if err != nil {
		return 0, err
	}

	h, err := m.Alloc(ctx, int32(len(data))) //nolint:gosec // G115: checked above
	if err != nil {
		return 0, err
	}

	if err := m.fill(ctx, mem, h, data); err != nil {
		// The buffer is useless half-written; hand it back.
		if derr := m.Dealloc(ctx, h); derr != nil {
			m.logger.Debug("dealloc after failed write", zap.Int32("handle", h), zap.Error(derr))
		}
		return 0, err
	}
	m.stats.written.Add(uint64(len(data)))
	return h, nil
}

// fill copies data to the location the guest reports for h right now.
func (m *Membrane) fill(ctx context.Context, mem api.Memory, h int32, data []byte) error {
	n, err := m.BufferLen(ctx, h)
	if err != nil {
		return err
	}
	if int(n) != len(data) {
		return &MemoryError{Op: "write", Handle: h, Reason: fmt.Sprintf("guest allocated %d bytes, want %d", n, len(data))}
	}
	if len(data) == 0 {
		return nil
	}
	ptr, err := m.callI32(ctx, abi.RoleGetBufferPtr, api.EncodeI32(h))
	if err != nil {
		return err
	}
	if !mem.Write(uint32(ptr), data) { //nolint:gosec // G115: wasm32 pointer
		return &MemoryError{Op: "write", Handle: h, Reason: fmt.Sprintf("range [%#x, +%d) is outside guest memory", uint32(ptr), len(data))} //nolint:gosec // G115: wasm32 pointer
	}
	return nil
}

// ReadBuffer copies the content of a guest buffer into host memory. The
// buffer stays allocated.
func (m *Membrane) ReadBuffer(ctx context.Context, handle int32) ([]byte, error) {
	mem, err := m.memory("read", handle)
	if err != nil {
		return nil, err
	}
	n, err := m.BufferLen(ctx, handle)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, &MemoryError{Op: "read", Handle: handle, Reason: fmt.Sprintf("guest reported negative length %d", n)}
	}
	if n == 0 {
		return []byte{}, nil
	}
	ptr, err := m.callI32(ctx, abi.RoleGetBufferPtr, api.EncodeI32(handle))
	if err != nil {
		return nil, err
	}
	view, ok := mem.Read(uint32(ptr), uint32(n)) //nolint:gosec // G115: wasm32 pointer, n checked
	if !ok {
		return nil, &MemoryError{Op: "read", Handle: handle, Reason: fmt.Sprintf("range [%#x, +%d) is outside guest memory", uint32(ptr), n)} //nolint:gosec // G115: wasm32 pointer
	}
	out := make([]byte, len(view))
	copy(out, view)
	m.stats.read.Add(uint64(len(out)))
	return out, nil
}

// ReadString reads a guest buffer as UTF-8 text. Invalid UTF-8 is an
// *EncodingError, never replaced.
func (m *Membrane) ReadString(ctx context.Context, handle int32) (string, error) {
	b, err := m.ReadBuffer(ctx, handle)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &EncodingError{Handle: handle, Offset: firstInvalid(b)}
	}
	return string(b), nil
}

// ConsumeBuffer reads a guest buffer and then frees it.
func (m *Membrane) ConsumeBuffer(ctx context.Context, handle int32) ([]byte, error) {
	b, err := m.ReadBuffer(ctx, handle)
	if err != nil {
		return nil, err
	}
	if err := m.Dealloc(ctx, handle); err != nil {
		return nil, err
	}
	return b, nil
}

// ConsumeString reads a guest buffer as UTF-8 and then frees it. The buffer
// is freed even when its content is not valid UTF-8.
func (m *Membrane) ConsumeString(ctx context.Context, handle int32) (string, error) {
	s, err := m.ReadString(ctx, handle)
	var encErr *EncodingError
	if err != nil && !errors.As(err, &encErr) {
		return "", err
	}
	if derr := m.Dealloc(ctx, handle); derr != nil {
		return "", derr
	}
	return s, err
}

// Dealloc frees a guest buffer. Freeing an unknown or already freed handle is
// left to the guest, which ignores it.
func (m *Membrane) Dealloc(ctx context.Context, handle int32) error {
	if _, err := m.callRole(ctx, abi.RoleDeallocBuffer, api.EncodeI32(handle)); err != nil {
		return err
	}
	m.stats.deallocs.Add(1)
	return nil
}

func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}
