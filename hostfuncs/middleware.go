package hostfuncs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Middleware wraps a MessageHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next MessageHandler) MessageHandler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware converts handler panics into a *PanicError so that a
// host bug never unwinds into guest execution.
func PanicRecoveryMiddleware() Middleware {
	return func(next MessageHandler) MessageHandler {
		return func(ctx context.Context, message string) (err error) {
			defer func() {
				if r := recover(); r != nil {
					name := ""
					if hc, ok := ctx.(HostContext); ok {
						name = hc.FunctionName()
					}
					err = &PanicError{Function: name, Value: r}
				}
			}()
			return next(ctx, message)
		}
	}
}

// LoggingMiddleware logs every import invocation at debug level.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next MessageHandler) MessageHandler {
		return func(ctx context.Context, message string) error {
			fields := []zap.Field{zap.Int("bytes", len(message))}
			if hc, ok := ctx.(HostContext); ok {
				fields = append(fields, zap.String("function", hc.FunctionName()), zap.Int32("handle", hc.Handle()))
			}
			start := time.Now()
			err := next(ctx, message)
			fields = append(fields, zap.Duration("took", time.Since(start)))
			if err != nil {
				logger.Debug("host function failed", append(fields, zap.Error(err))...)
			} else {
				logger.Debug("host function completed", fields...)
			}
			return err
		}
	}
}
