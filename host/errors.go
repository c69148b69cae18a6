package host

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/reglet-dev/membrane/abi"
)

var (
	// ErrClosed is returned by every operation on a closed Membrane.
	ErrClosed = errors.New("membrane: closed")

	// ErrNotCompliant is matched by every *ComplianceError.
	ErrNotCompliant = errors.New("membrane: module is not compliant")
)

// ComplianceError is the aggregate handshake failure returned by Init.
type ComplianceError struct {
	Module string
	Failed []Check
}

func (e *ComplianceError) Error() string {
	names := make([]string, len(e.Failed))
	for i, c := range e.Failed {
		names[i] = c.Name
	}
	return fmt.Sprintf("init failed: module %q is not compliant: %d check(s) failed: %s",
		e.Module, len(e.Failed), strings.Join(names, ", "))
}

// Is reports ErrNotCompliant as a match.
func (e *ComplianceError) Is(target error) bool {
	return target == ErrNotCompliant
}

// MemoryError reports a failed access to guest linear memory: the memory
// export is missing, or the guest returned an inconsistent pointer/length.
type MemoryError struct {
	Op     string
	Handle int32
	Reason string
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("membrane: %s buffer %d: %s", e.Op, e.Handle, e.Reason)
}

// GuestFaultError is a trap, exit or timeout raised while the guest ran.
// Panic holds the last message the guest reported through its panic import
// during the failing call, if any.
type GuestFaultError struct {
	Export string
	Panic  string
	Err    error
}

func (e *GuestFaultError) Error() string {
	if e.Panic != "" {
		return fmt.Sprintf("membrane: guest fault in %s: %s: %v", e.Export, e.Panic, e.Err)
	}
	return fmt.Sprintf("membrane: guest fault in %s: %v", e.Export, e.Err)
}

func (e *GuestFaultError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fault was the call's context expiring.
func (e *GuestFaultError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// EncodingError reports buffer content that is not valid UTF-8.
type EncodingError struct {
	Handle int32
	Offset int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("membrane: buffer %d is not valid UTF-8 (first invalid byte at %d)", e.Handle, e.Offset)
}

// MissingExportError reports an export that is absent or has the wrong
// signature. The call was not attempted.
type MissingExportError struct {
	Role   abi.Role
	Name   string
	Reason string
}

func (e *MissingExportError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("membrane: export %q (%s) %s", e.Name, e.Role, e.Reason)
	}
	return fmt.Sprintf("membrane: export %q %s", e.Name, e.Reason)
}

// IsGuestFault reports whether err was caused by the guest misbehaving rather
// than by the host.
func IsGuestFault(err error) bool {
	var gf *GuestFaultError
	return errors.As(err, &gf)
}
