package host

import (
	"context"
	"fmt"
	"os"

	"github.com/reglet-dev/membrane/config"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	config  *config.Config
	options []Option
	verify  bool // run the handshake after instantiation
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		verify: true,
	}
}

// Loader orchestrates the module loading pipeline: read, instantiate, verify.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithConfig applies a loaded configuration to every Membrane.
func WithConfig(cfg *config.Config) LoaderOption {
	return func(c *loaderConfig) {
		c.config = cfg
	}
}

// WithOptions appends Membrane options, applied after the configuration.
func WithOptions(opts ...Option) LoaderOption {
	return func(c *loaderConfig) {
		c.options = append(c.options, opts...)
	}
}

// WithVerify enables/disables the handshake after instantiation (default on).
// When enabled, a non-compliant module is closed and its report returned with
// the error.
func WithVerify(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.verify = enabled
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// LoadFile reads a module from disk and loads it.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Membrane, *Report, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read module: %w", err)
	}
	return l.Load(ctx, wasm)
}

// Load instantiates wasm and, unless verification is disabled, runs the
// handshake. The report is nil when verification is disabled.
func (l *Loader) Load(ctx context.Context, wasm []byte) (*Membrane, *Report, error) {
	opts := []Option{FromConfig(l.config.config)}
	opts = append(opts, l.config.options...)

	m, err := New(ctx, wasm, opts...)
	if err != nil {
		return nil, nil, err
	}
	if !l.config.verify {
		return m, nil, nil
	}

	report, err := m.Init(ctx)
	if err != nil {
		_ = m.Close(ctx)
		return nil, report, err
	}
	return m, report, nil
}
