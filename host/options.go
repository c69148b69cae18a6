package host

import (
	"errors"
	"fmt"

	"github.com/reglet-dev/membrane/abi"
	"github.com/reglet-dev/membrane/config"
	"github.com/reglet-dev/membrane/hostfuncs"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Default instantiation settings.
const (
	DefaultModuleName    = "guest"
	DefaultStartFunction = "_initialize"
)

// options holds everything New needs. Errors from options are collected and
// reported together by New.
type options struct {
	profile        abi.Profile
	logger         *zap.Logger
	sink           Sink
	imports        []importBinding
	middleware     []hostfuncs.Middleware
	panicHandler   func(message string)
	runtimeConfig  wazero.RuntimeConfig
	cache          wazero.CompilationCache
	cacheDir       string
	memoryLimit    uint32
	wasi           bool
	startFunctions []string
	moduleName     string
	errs           []error
}

type importBinding struct {
	name    string
	handler hostfuncs.MessageHandler
}

func defaultOptions() *options {
	return &options{
		profile:        abi.Basic(),
		wasi:           true,
		startFunctions: []string{DefaultStartFunction},
		moduleName:     DefaultModuleName,
	}
}

// Option configures a Membrane.
type Option func(*options)

// WithProfile selects the export/import naming profile (default "basic").
func WithProfile(p abi.Profile) Option {
	return func(o *options) {
		o.profile = p
	}
}

// WithProfileName selects a built-in profile by name.
func WithProfileName(name string) Option {
	return func(o *options) {
		p, err := abi.ProfileByName(name)
		if err != nil {
			o.errs = append(o.errs, err)
			return
		}
		o.profile = p
	}
}

// WithLogger sets the diagnostics logger (default: the package Logger).
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSink sets where guest log messages and handshake lines go (default: a
// zap-backed sink on the diagnostics logger).
func WithSink(s Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithImport registers an additional (i32) -> () import under the profile's
// import module. The handler receives the consumed buffer content.
func WithImport(name string, h hostfuncs.MessageHandler) Option {
	return func(o *options) {
		o.imports = append(o.imports, importBinding{name: name, handler: h})
	}
}

// WithMiddleware wraps every import handler, after panic recovery and logging.
func WithMiddleware(mw ...hostfuncs.Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithPanicHandler is called with every message the guest reports through its
// panic import.
func WithPanicHandler(fn func(message string)) Option {
	return func(o *options) {
		o.panicHandler = fn
	}
}

// WithRuntimeConfig replaces the wazero runtime configuration. The default
// closes the module when a call's context is done.
func WithRuntimeConfig(rc wazero.RuntimeConfig) Option {
	return func(o *options) {
		o.runtimeConfig = rc
	}
}

// WithCompilationCache shares compiled code between Membranes. The caller
// keeps ownership of c; it takes precedence over a configured cache dir.
func WithCompilationCache(c wazero.CompilationCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithMemoryLimitPages caps guest linear memory (64 KiB pages).
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) {
		o.memoryLimit = pages
	}
}

// WithWASI toggles instantiation of wasi_snapshot_preview1 (default on).
func WithWASI(enabled bool) Option {
	return func(o *options) {
		o.wasi = enabled
	}
}

// WithStartFunctions sets the functions run at instantiation. Missing ones
// are skipped (default "_initialize").
func WithStartFunctions(names ...string) Option {
	return func(o *options) {
		o.startFunctions = names
	}
}

// WithModuleName names the guest instance in the runtime and in logs
// (default "guest"). It is also the "module" label of exported metrics.
func WithModuleName(name string) Option {
	return func(o *options) {
		o.moduleName = name
	}
}

// FromConfig applies a loaded configuration. The profile is resolved among
// the built-in profiles and those the configuration declares.
func FromConfig(cfg *config.Config) Option {
	return func(o *options) {
		if cfg == nil {
			return
		}
		if cfg.Profile != "" {
			reg, err := cfg.ProfileRegistry()
			if err != nil {
				o.errs = append(o.errs, err)
				return
			}
			p, ok := reg.Get(cfg.Profile)
			if !ok {
				o.errs = append(o.errs, fmt.Errorf("unknown profile %q (known: %v)", cfg.Profile, reg.List()))
			} else {
				o.profile = p
			}
		}
		if cfg.Runtime.MemoryLimitPages > 0 {
			o.memoryLimit = cfg.Runtime.MemoryLimitPages
		}
		if cfg.Runtime.WASI != nil {
			o.wasi = *cfg.Runtime.WASI
		}
		if len(cfg.Runtime.StartFunctions) > 0 {
			o.startFunctions = cfg.Runtime.StartFunctions
		}
		if cfg.Runtime.ModuleName != "" {
			o.moduleName = cfg.Runtime.ModuleName
		}
		if cfg.Runtime.CacheDir != "" {
			o.cacheDir = cfg.Runtime.CacheDir
		}
	}
}

func (o *options) err() error {
	if err := o.profile.Validate(); err != nil {
		o.errs = append(o.errs, err)
	}
	if len(o.errs) == 0 {
		return nil
	}
	return errors.Join(o.errs...)
}
