package hostfuncs

import (
	"context"
)

// HostContext wraps a context.Context with the details of the import call
// being served, so middleware can report on it.
type HostContext interface {
	context.Context

	// FunctionName returns the name of the import being invoked.
	FunctionName() string

	// Handle returns the guest buffer handle the call carried.
	Handle() int32
}

type hostContext struct {
	context.Context
	funcName string
	handle   int32
}

// NewHostContext creates a HostContext wrapping ctx.
func NewHostContext(ctx context.Context, funcName string, handle int32) HostContext {
	return &hostContext{
		Context:  ctx,
		funcName: funcName,
		handle:   handle,
	}
}

func (c *hostContext) FunctionName() string {
	return c.funcName
}

func (c *hostContext) Handle() int32 {
	return c.handle
}

// HostContextFrom returns ctx if it already is a HostContext, otherwise wraps it.
func HostContextFrom(ctx context.Context, funcName string, handle int32) HostContext {
	if hc, ok := ctx.(HostContext); ok {
		return hc
	}
	return NewHostContext(ctx, funcName, handle)
}
