package hostfuncs

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Invoke for unregistered names.
var ErrNotFound = errors.New("unknown host function")

// NotFoundError names the import that was not registered.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNotFound, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// PanicError is a panic recovered from a handler.
type PanicError struct {
	Function string
	Value    any
}

func (e *PanicError) Error() string {
	var msg string
	switch v := e.Value.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = "panic recovered"
	}
	if e.Function != "" {
		return fmt.Sprintf("host function %s: panic: %s", e.Function, msg)
	}
	return "panic: " + msg
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
