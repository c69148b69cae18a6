package wasmtest

import (
	"github.com/reglet-dev/membrane/abi"
	"github.com/tetratelabs/wazero/api"
)

// Layout of the synthesized guest's linear memory.
const (
	// MaxBuffers bounds the handles the guest can issue (handle 0 is unused).
	MaxBuffers = 256
	// MaxBufferLen bounds the length of a single buffer.
	MaxBufferLen = 256
	// DataBase is where buffer storage starts; the length table sits below it.
	DataBase = 1024
	// BrokenPointer is what get_buffer_ptr returns under WithBrokenPointer.
	BrokenPointer int32 = 0x7ffffff0

	pages = 2
)

// Names of the test hooks exported by every synthesized guest.
const (
	HookEcho      = "test"
	HookLog       = "test_log"
	HookPanic     = "test_panic"
	HookEndless   = "example_test_endless_loop"
	LogMessage    = "Hello From MEMBRANE!"
	PanicMessage  = "guest panicked: forced failure"
	defaultPrefix = "membrane_guest_"
)

type guestConfig struct {
	prefix       string
	version      int32
	memory       string
	importModule string
	logImport    string
	panicImport  string
	omit         map[string]bool
	badSignature map[string]bool
	trapInit     bool
	brokenPtr    bool
}

// GuestOption customizes the synthesized guest.
type GuestOption func(*guestConfig)

// WithPrefix changes the export name prefix (default "membrane_guest_").
func WithPrefix(prefix string) GuestOption {
	return func(c *guestConfig) { c.prefix = prefix }
}

// WithVersion changes the value returned by the version export.
func WithVersion(v int32) GuestOption {
	return func(c *guestConfig) { c.version = v }
}

// WithoutExport drops the export for role (e.g. "alloc_buffer", "init").
func WithoutExport(role string) GuestOption {
	return func(c *guestConfig) { c.omit[role] = true }
}

// WithBadSignature exports role with the signature (i64) -> ().
func WithBadSignature(role string) GuestOption {
	return func(c *guestConfig) { c.badSignature[role] = true }
}

// WithTrappingInit makes the init export trap.
func WithTrappingInit() GuestOption {
	return func(c *guestConfig) { c.trapInit = true }
}

// WithoutMemoryExport keeps linear memory private.
func WithoutMemoryExport() GuestOption {
	return func(c *guestConfig) { c.memory = "" }
}

// WithMemoryName exports linear memory under name.
func WithMemoryName(name string) GuestOption {
	return func(c *guestConfig) { c.memory = name }
}

// WithImports changes the import module and the log/panic import names.
func WithImports(module, logName, panicName string) GuestOption {
	return func(c *guestConfig) {
		c.importModule = module
		c.logImport = logName
		c.panicImport = panicName
	}
}

// WithBrokenPointer makes get_buffer_ptr return an address far outside memory.
func WithBrokenPointer() GuestOption {
	return func(c *guestConfig) { c.brokenPtr = true }
}

// Guest builds a membrane guest. By default it is fully compliant with the
// "basic" profile: version 1, every role exported, init a no-op.
//
// Buffer h keeps len+1 at address h*4 (0 means free) and its bytes at
// DataBase + h*MaxBufferLen. Contract violations trap.
func Guest(opts ...GuestOption) []byte {
	cfg := &guestConfig{
		prefix:       defaultPrefix,
		version:      1,
		memory:       "memory",
		importModule: "env",
		logImport:    "membrane_host_log",
		panicImport:  "membrane_host_panic",
		omit:         map[string]bool{},
		badSignature: map[string]bool{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.build()
}

var (
	i32      = api.ValueTypeI32
	none     []api.ValueType
	oneI32   = []api.ValueType{i32}
	threeI32 = []api.ValueType{i32, i32, i32}
	oneI64   = []api.ValueType{api.ValueTypeI64}
)

func (c *guestConfig) build() []byte {
	b := NewModuleBuilder()
	hostLog := b.Import(c.importModule, c.logImport, oneI32, none)
	hostPanic := b.Import(c.importModule, c.panicImport, oneI32, none)
	b.Memory(pages, c.memory)
	next := b.Global(1)

	// export declares a role function, honouring omit and bad-signature.
	export := func(role string, params, results []api.ValueType, locals uint32, body *Code) (uint32, bool) {
		if c.omit[role] {
			return b.Func("", params, results, locals, body), false
		}
		if c.badSignature[role] {
			b.Func(c.prefix+role, oneI64, none, 0, nil)
			return b.Func("", params, results, locals, body), false
		}
		return b.Func(c.prefix+role, params, results, locals, body), true
	}

	export("version", none, oneI32, 0, new(Code).I32Const(c.version))

	alloc, _ := export("alloc_buffer", oneI32, oneI32, 0, new(Code).
		LocalGet(0).I32Const(0).I32LtS().TrapIf().
		LocalGet(0).I32Const(MaxBufferLen).I32GtS().TrapIf().
		GlobalGet(next).I32Const(MaxBuffers).I32GeU().TrapIf().
		GlobalGet(next).I32Const(4).I32Mul().LocalGet(0).I32Const(1).I32Add().I32Store().
		GlobalGet(next).
		GlobalGet(next).I32Const(1).I32Add().GlobalSet(next))

	write, _ := export("write_to_buffer", threeI32, none, 1, checkHandle(new(Code), 0, 3).
		LocalGet(1).LocalGet(3).I32Const(1).I32Sub().I32GeU().TrapIf().
		LocalGet(0).I32Const(MaxBufferLen).I32Mul().I32Const(DataBase).I32Add().LocalGet(1).I32Add().
		LocalGet(2).I32Store8())

	export("dealloc_buffer", oneI32, none, 0, new(Code).
		LocalGet(0).I32Const(MaxBuffers).I32GeU().If().Return().End().
		LocalGet(0).I32Const(4).I32Mul().I32Const(0).I32Store())

	ptr := checkHandle(new(Code), 0, 1)
	if c.brokenPtr {
		ptr.I32Const(BrokenPointer)
	} else {
		ptr.LocalGet(0).I32Const(MaxBufferLen).I32Mul().I32Const(DataBase).I32Add()
	}
	export("get_buffer_ptr", oneI32, oneI32, 1, ptr)

	export("get_buffer_len", oneI32, oneI32, 1, checkHandle(new(Code), 0, 1).
		LocalGet(1).I32Const(1).I32Sub())

	export("allows_buffer_ptr", none, oneI32, 0, new(Code).I32Const(abi.OK))

	initBody := new(Code)
	if c.trapInit {
		initBody.Unreachable()
	}
	export("init", none, none, 0, initBody)

	// Hooks.
	b.Func(c.prefix+HookEcho, oneI32, none, 0, new(Code).LocalGet(0).Call(hostLog))
	b.Func(c.prefix+HookEndless, none, none, 0, new(Code).Loop().Br(0).End())
	b.Func(c.prefix+HookLog, none, none, 1, emitString(new(Code), alloc, write, LogMessage).
		LocalGet(0).Call(hostLog))
	b.Func(c.prefix+HookPanic, none, none, 1, emitString(new(Code), alloc, write, PanicMessage).
		LocalGet(0).Call(hostPanic).Unreachable())

	return b.Build()
}

// checkHandle traps unless local h names a live buffer, leaving the stored
// len+1 in local slot.
func checkHandle(c *Code, h, slot uint32) *Code {
	return c.
		LocalGet(h).I32Const(MaxBuffers).I32GeU().TrapIf().
		LocalGet(h).I32Const(4).I32Mul().I32Load().LocalTee(slot).I32Eqz().TrapIf()
}

// emitString allocates a buffer holding s into local 0, one byte at a time,
// through the guest's own alloc and write functions.
func emitString(c *Code, alloc, write uint32, s string) *Code {
	c.I32Const(int32(len(s))).Call(alloc).LocalSet(0) //nolint:gosec // G115: short constant
	for i := 0; i < len(s); i++ {
		c.LocalGet(0).I32Const(int32(i)).I32Const(int32(s[i])).Call(write) //nolint:gosec // G115: short constant
	}
	return c
}
