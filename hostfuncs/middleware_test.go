package hostfuncs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	panicHandler := func(context.Context, string) error {
		panic("test panic")
	}

	wrapped := PanicRecoveryMiddleware()(panicHandler)

	err := wrapped(NewHostContext(context.Background(), "membrane_host_log", 1), "x")
	require.Error(t, err)

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "membrane_host_log", pe.Function)
	assert.Equal(t, "test panic", pe.Value)
	assert.Equal(t, "host function membrane_host_log: panic: test panic", err.Error())
}

func TestPanicRecoveryMiddleware_ErrorValue(t *testing.T) {
	cause := errors.New("nil map write")
	wrapped := PanicRecoveryMiddleware()(func(context.Context, string) error {
		panic(cause)
	})

	err := wrapped(context.Background(), "")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "panic: nil map write", err.Error())
}

func TestPanicRecoveryMiddleware_NoPanic(t *testing.T) {
	sentinel := errors.New("handler error")
	wrapped := PanicRecoveryMiddleware()(func(context.Context, string) error {
		return sentinel
	})

	assert.ErrorIs(t, wrapped(context.Background(), ""), sentinel)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	reg, err := NewRegistry(
		WithMiddleware(LoggingMiddleware(logger)),
		WithHandler("ok", func(context.Context, string) error { return nil }),
		WithHandler("bad", func(context.Context, string) error { return errors.New("nope") }),
	)
	require.NoError(t, err)

	require.NoError(t, reg.Invoke(context.Background(), "ok", 4, "four"))
	require.Error(t, reg.Invoke(context.Background(), "bad", 5, ""))

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "host function completed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ok", fields["function"])
	assert.Equal(t, int32(4), fields["handle"])
	assert.Equal(t, int64(4), fields["bytes"])

	assert.Equal(t, "host function failed", entries[1].Message)
	assert.Equal(t, "nope", entries[1].ContextMap()["error"])
}
