package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/reglet-dev/membrane/abi"
	"github.com/reglet-dev/membrane/hostfuncs"
	wazeroadapter "github.com/reglet-dev/membrane/infrastructure/wazero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Membrane owns one instantiated guest module and mediates every data
// exchange with it. A Membrane is not safe for concurrent use: guest calls
// run to completion on the calling goroutine.
type Membrane struct {
	name    string
	profile abi.Profile
	runtime wazero.Runtime
	cache   wazero.CompilationCache // created from a cache dir, closed with the Membrane
	module  api.Module
	state   *hostState
	logger  *zap.Logger
	sink    Sink
	panics  *panicRecorder
	stats   counters
	closed  atomic.Bool
	depth   atomic.Int32 // nesting of guest calls, >1 inside import callbacks
}

// New instantiates wasm in a dedicated runtime and wraps it in a Membrane.
//
// New does not verify the guest. A module that does not follow the profile
// still yields a Membrane, so Init can report exactly what is wrong with it.
func New(ctx context.Context, wasm []byte, opts ...Option) (*Membrane, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.err(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	log := o.logger.With(zap.String("module", o.moduleName), zap.String("profile", o.profile.Name))
	if o.sink == nil {
		o.sink = NewZapSink(log)
	}

	// The cell exists before the imports that capture it.
	state := &hostState{}
	panics := &panicRecorder{}

	rc := o.runtimeConfig
	if rc == nil {
		rc = wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	}
	var owned wazero.CompilationCache
	switch {
	case o.cache != nil:
		rc = rc.WithCompilationCache(o.cache)
	case o.cacheDir != "":
		c, err := wazero.NewCompilationCacheWithDir(o.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("membrane: compilation cache: %w", err)
		}
		owned = c
		rc = rc.WithCompilationCache(c)
	}
	if o.memoryLimit > 0 {
		rc = rc.WithMemoryLimitPages(o.memoryLimit)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rc)

	fail := func(format string, err error) (*Membrane, error) {
		_ = rt.Close(ctx)
		if owned != nil {
			_ = owned.Close(ctx)
		}
		return nil, fmt.Errorf(format, err)
	}

	if o.wasi {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			return fail("membrane: instantiate wasi: %w", err)
		}
	}

	reg, err := newImportRegistry(o, log, panics)
	if err != nil {
		return fail("membrane: build import registry: %w", err)
	}

	resolve := func() (wazeroadapter.Consumer, bool) {
		m, ok := state.resolve()
		if !ok {
			return nil, false
		}
		return m, true
	}
	if err := wazeroadapter.RegisterImports(ctx, rt, reg, resolve,
		wazeroadapter.WithModuleName(o.profile.ImportModule),
		wazeroadapter.WithLogger(log),
	); err != nil {
		return fail("membrane: register imports: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return fail("membrane: compile module: %w", err)
	}

	modCfg := wazero.NewModuleConfig().
		WithName(o.moduleName).
		WithStartFunctions(o.startFunctions...)
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return fail("membrane: instantiate module: %w", err)
	}

	m := &Membrane{
		name:    o.moduleName,
		profile: o.profile,
		runtime: rt,
		cache:   owned,
		module:  mod,
		state:   state,
		logger:  log,
		sink:    o.sink,
		panics:  panics,
	}
	state.attach(m)

	log.Debug("membrane created", zap.Strings("imports", reg.Names()))
	return m, nil
}

// newImportRegistry binds the profile's log and panic imports plus any extra
// imports.
func newImportRegistry(o *options, log *zap.Logger, panics *panicRecorder) (*hostfuncs.HandlerRegistry, error) {
	regOpts := []hostfuncs.RegistryOption{
		hostfuncs.WithMiddleware(hostfuncs.PanicRecoveryMiddleware(), hostfuncs.LoggingMiddleware(log)),
		hostfuncs.WithMiddleware(o.middleware...),
		hostfuncs.WithBundle(protocolImports(o.profile, o.sink, log, panics, o.panicHandler)),
	}
	for _, b := range o.imports {
		regOpts = append(regOpts, hostfuncs.WithHandler(b.name, b.handler))
	}
	return hostfuncs.NewRegistry(regOpts...)
}

// protocolImports is the profile's log/panic pair. The handlers capture the
// sink and recorder, never the Membrane.
func protocolImports(p abi.Profile, sink Sink, log *zap.Logger, panics *panicRecorder, onPanic func(string)) hostfuncs.StaticBundle {
	return hostfuncs.StaticBundle{
		p.ImportName(abi.ImportLog): hostfuncs.SinkHandler(SourceGuest, sink.Log),
		p.ImportName(abi.ImportPanic): func(_ context.Context, message string) error {
			panics.record(message)
			log.Error("guest panic", zap.String("message", message))
			if onPanic != nil {
				onPanic(message)
			}
			return nil
		},
	}
}

// Name returns the guest instance name.
func (m *Membrane) Name() string {
	return m.name
}

// Profile returns the profile the Membrane drives the guest with.
func (m *Membrane) Profile() abi.Profile {
	return m.profile
}

// Module exposes the underlying guest instance.
func (m *Membrane) Module() api.Module {
	return m.module
}

// LastPanic returns the most recent message the guest reported through its
// panic import.
func (m *Membrane) LastPanic() (string, bool) {
	return m.panics.last()
}

// Close detaches import callbacks from the Membrane and releases the guest
// instance and its runtime. Closing twice is a no-op.
func (m *Membrane) Close(ctx context.Context) error {
	if m.closed.Swap(true) {
		return nil
	}
	m.state.detach()
	m.logger.Debug("membrane closed")
	err := m.runtime.Close(ctx)
	if m.cache != nil {
		err = errors.Join(err, m.cache.Close(ctx))
	}
	return err
}

// alive is the liveness check behind callback resolution.
func (m *Membrane) alive() bool {
	if m.closed.Load() || m.module.IsClosed() {
		return false
	}
	return m.module.ExportedMemory(m.profile.Memory) != nil
}

// panicRecorder keeps guest panic messages: the latest one overall, and the
// one raised during the call in flight.
type panicRecorder struct {
	mu      sync.Mutex
	latest  string
	seen    bool
	pending string
}

func (p *panicRecorder) record(msg string) {
	p.mu.Lock()
	p.latest, p.seen, p.pending = msg, true, msg
	p.mu.Unlock()
}

func (p *panicRecorder) last() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.seen
}

func (p *panicRecorder) clearPending() {
	p.mu.Lock()
	p.pending = ""
	p.mu.Unlock()
}

func (p *panicRecorder) pendingMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}
