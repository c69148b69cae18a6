package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// HandlerRegistry maps import names to handlers. It is built once by
// NewRegistry and never mutated, so guest callbacks read it without locks.
type HandlerRegistry struct {
	handlers map[string]MessageHandler
	names    []string
}

type registryBuilder struct {
	handlers   map[string]MessageHandler
	middleware []Middleware
	errs       []error
}

// NewRegistry builds a registry from opts. Every handler is wrapped in the
// configured middleware, the first one outermost. All option errors are
// reported together.
//
//	reg, err := hostfuncs.NewRegistry(
//		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware()),
//		hostfuncs.WithHandler("membrane_host_log", logHandler),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{handlers: make(map[string]MessageHandler)}
	for _, opt := range opts {
		opt(b)
	}
	if err := errors.Join(b.errs...); err != nil {
		return nil, err
	}

	reg := &HandlerRegistry{
		handlers: make(map[string]MessageHandler, len(b.handlers)),
		names:    slices.Sorted(maps.Keys(b.handlers)),
	}
	for name, h := range b.handlers {
		reg.handlers[name] = chain(h, b.middleware)
	}
	return reg, nil
}

func chain(h MessageHandler, mw []Middleware) MessageHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Invoke runs the handler registered under name for the buffer handle the
// guest passed. The handler's context carries a HostContext.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, handle int32, message string) error {
	h, ok := r.handlers[name]
	if !ok {
		return &NotFoundError{Name: name}
	}
	return h(HostContextFrom(ctx, name, handle), message)
}

// Has reports whether name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *HandlerRegistry) Names() []string {
	return slices.Clone(r.names)
}

// WithHandler registers handler under name. Empty names, nil handlers and
// duplicates make NewRegistry fail.
func WithHandler(name string, handler MessageHandler) RegistryOption {
	return func(b *registryBuilder) {
		switch _, dup := b.handlers[name]; {
		case name == "":
			b.errs = append(b.errs, errors.New("handler name cannot be empty"))
		case handler == nil:
			b.errs = append(b.errs, fmt.Errorf("handler %q is nil", name))
		case dup:
			b.errs = append(b.errs, fmt.Errorf("duplicate handler name: %q", name))
		default:
			b.handlers[name] = handler
		}
	}
}

// WithMiddleware appends middleware. The first middleware added sees a call
// first.
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
