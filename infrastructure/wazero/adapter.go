package wazero

import (
	"context"
	"errors"

	"github.com/reglet-dev/membrane/abi"
	"github.com/reglet-dev/membrane/hostfuncs"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Consumer reads and frees a guest buffer as text.
type Consumer interface {
	ConsumeString(ctx context.Context, handle int32) (string, error)
}

// Resolver upgrades the host's back-reference for one import call. It returns
// ok=false when the owner is gone, closed, or busy; the call is then dropped.
type Resolver func() (Consumer, bool)

// AdapterConfig tunes RegisterImports.
type AdapterConfig struct {
	ModuleName string      // host module the guest imports from, "env" by default
	Logger     *zap.Logger // dropped and failed calls, no-op by default
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module the guest imports from. It must match
// the profile's import module (default "env").
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) { c.ModuleName = name }
}

// WithLogger sets the diagnostics logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) AdapterOption {
	return func(c *AdapterConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{ModuleName: abi.DefaultImportModule, Logger: zap.NewNop()}
}

// ErrNoResolver is returned when RegisterImports is called without a Resolver.
var ErrNoResolver = errors.New("wazero: resolver is required")

// RegisterImports instantiates a host module exporting every handler in
// registry with the import signature (i32) -> ().
//
// The closures capture only registry, resolve and the config; nothing in
// them keeps the owner of resolve alive.
func RegisterImports(ctx context.Context, runtime wazero.Runtime, registry *hostfuncs.HandlerRegistry, resolve Resolver, opts ...AdapterOption) error {
	if resolve == nil {
		return ErrNoResolver
	}
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)
	for _, name := range registry.Names() {
		call := &importCall{name: name, registry: registry, resolve: resolve, log: cfg.Logger.With(zap.String("function", name))}
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(call.serve), abi.ImportSignature.Params, abi.ImportSignature.Results).
			WithName(name).
			Export(name)
	}
	_, err := builder.Instantiate(ctx)
	return err
}

// importCall is one exported import. serve never panics and never reports
// back to the guest: failures are logged and dropped.
type importCall struct {
	name     string
	registry *hostfuncs.HandlerRegistry
	resolve  Resolver
	log      *zap.Logger
}

func (c *importCall) serve(ctx context.Context, mod api.Module, stack []uint64) {
	handle := api.DecodeI32(stack[0])

	consumer, ok := c.resolve()
	if !ok {
		c.log.Debug("import call dropped, host state unavailable",
			zap.String("guest", mod.Name()),
			zap.Int32("handle", handle))
		return
	}

	message, err := consumer.ConsumeString(ctx, handle)
	if err != nil {
		c.log.Warn("import call: failed to read guest buffer", zap.Int32("handle", handle), zap.Error(err))
		return
	}

	if err := c.registry.Invoke(ctx, c.name, handle, message); err != nil {
		c.log.Warn("import call: handler failed", zap.String("guest", mod.Name()), zap.Error(err))
	}
}
