package hostfuncs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Empty(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Empty(t, reg.Names())
}

func TestNewRegistry_WithHandler(t *testing.T) {
	reg, err := NewRegistry(
		WithHandler("membrane_host_log", func(context.Context, string) error { return nil }),
	)
	require.NoError(t, err)

	assert.True(t, reg.Has("membrane_host_log"))
	assert.False(t, reg.Has("nonexistent"))
	assert.Equal(t, []string{"membrane_host_log"}, reg.Names())
}

func TestNewRegistry_Rejects(t *testing.T) {
	noop := func(context.Context, string) error { return nil }

	tests := []struct {
		name string
		opts []RegistryOption
		want string
	}{
		{"duplicate", []RegistryOption{WithHandler("log", noop), WithHandler("log", noop)}, "duplicate handler name"},
		{"empty name", []RegistryOption{WithHandler("", noop)}, "cannot be empty"},
		{"nil handler", []RegistryOption{WithHandler("log", nil)}, "is nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHandlerRegistry_Invoke(t *testing.T) {
	var got string
	reg, err := NewRegistry(
		WithHandler("log", func(_ context.Context, message string) error {
			got = message
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, reg.Invoke(context.Background(), "log", 3, "Hello From MEMBRANE!"))
	assert.Equal(t, "Hello From MEMBRANE!", got)
}

func TestHandlerRegistry_Invoke_NotFound(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	err = reg.Invoke(context.Background(), "missing", 1, "x")
	require.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Name)
}

func TestHandlerRegistry_Invoke_PassesHostContext(t *testing.T) {
	var fn string
	var handle int32
	reg, err := NewRegistry(
		WithHandler("membrane_host_panic", func(ctx context.Context, _ string) error {
			hc, ok := ctx.(HostContext)
			require.True(t, ok)
			fn, handle = hc.FunctionName(), hc.Handle()
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, reg.Invoke(context.Background(), "membrane_host_panic", 7, "boom"))
	assert.Equal(t, "membrane_host_panic", fn)
	assert.Equal(t, int32(7), handle)
}

func TestHandlerRegistry_Names_Sorted(t *testing.T) {
	noop := func(context.Context, string) error { return nil }
	reg, err := NewRegistry(
		WithHandler("zeta", noop),
		WithHandler("alpha", noop),
		WithHandler("mid", noop),
	)
	require.NoError(t, err)

	names := reg.Names()
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)

	names[0] = "mutated"
	assert.Equal(t, "alpha", reg.Names()[0])
}

func TestHandlerRegistry_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next MessageHandler) MessageHandler {
			return func(ctx context.Context, message string) error {
				order = append(order, name+":before")
				err := next(ctx, message)
				order = append(order, name+":after")
				return err
			}
		}
	}

	reg, err := NewRegistry(
		WithMiddleware(tag("first"), tag("second")),
		WithHandler("log", func(context.Context, string) error {
			order = append(order, "handler")
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, reg.Invoke(context.Background(), "log", 1, ""))
	assert.Equal(t, []string{"first:before", "second:before", "handler", "second:after", "first:after"}, order)
}

func TestWithBundle(t *testing.T) {
	var logged []string
	bundle := StaticBundle{
		"membrane_host_log": SinkHandler("guest", func(source, message string) {
			logged = append(logged, source+": "+message)
		}),
		"membrane_host_panic": func(context.Context, string) error { return errors.New("guest panicked") },
	}

	reg, err := NewRegistry(WithBundle(bundle))
	require.NoError(t, err)
	assert.Equal(t, []string{"membrane_host_log", "membrane_host_panic"}, reg.Names())

	require.NoError(t, reg.Invoke(context.Background(), "membrane_host_log", 1, "hi"))
	assert.Equal(t, []string{"guest: hi"}, logged)
	assert.EqualError(t, reg.Invoke(context.Background(), "membrane_host_panic", 2, ""), "guest panicked")
}

func TestWithBundle_ConflictsWithHandler(t *testing.T) {
	noop := func(context.Context, string) error { return nil }
	_, err := NewRegistry(
		WithHandler("membrane_host_log", noop),
		WithBundle(StaticBundle{"membrane_host_log": noop}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate handler name")
}
