// Package wasmtest synthesizes small wasm binaries for exercising hosts
// against real wazero runtimes, without a wasm toolchain.
package wasmtest

import (
	"github.com/tetratelabs/wazero/api"
)

// ModuleBuilder builds a single-memory wasm module with function imports,
// mutable i32 globals and exported functions.
type ModuleBuilder struct {
	types   [][]byte
	imports []importFunc
	funcs   []localFunc
	globals []int32

	memoryPages  uint32
	memoryExport string
}

type importFunc struct {
	module, name string
	typeIdx      uint32
}

type localFunc struct {
	exportName string
	typeIdx    uint32
	locals     uint32
	body       []byte
}

// NewModuleBuilder creates an empty builder.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{}
}

func (b *ModuleBuilder) typeIndex(params, results []api.ValueType) uint32 {
	enc := encodeFuncType(params, results)
	for i, t := range b.types {
		if string(t) == string(enc) {
			return uint32(i) //nolint:gosec // G115: tiny
		}
	}
	b.types = append(b.types, enc)
	return uint32(len(b.types) - 1) //nolint:gosec // G115: tiny
}

// Import declares a function import and returns its function index.
// All imports must be declared before the first Func.
func (b *ModuleBuilder) Import(module, name string, params, results []api.ValueType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: imports must precede local functions")
	}
	b.imports = append(b.imports, importFunc{module: module, name: name, typeIdx: b.typeIndex(params, results)})
	return uint32(len(b.imports) - 1) //nolint:gosec // G115: tiny
}

// Func declares a local function with extra i32 locals and returns its
// function index. An empty exportName keeps it private.
func (b *ModuleBuilder) Func(exportName string, params, results []api.ValueType, locals uint32, body *Code) uint32 {
	var code []byte
	if body != nil {
		code = body.Bytes()
	}
	b.funcs = append(b.funcs, localFunc{
		exportName: exportName,
		typeIdx:    b.typeIndex(params, results),
		locals:     locals,
		body:       code,
	})
	return uint32(len(b.imports) + len(b.funcs) - 1) //nolint:gosec // G115: tiny
}

// Global declares a mutable i32 global and returns its index.
func (b *ModuleBuilder) Global(init int32) uint32 {
	b.globals = append(b.globals, init)
	return uint32(len(b.globals) - 1) //nolint:gosec // G115: tiny
}

// Memory declares the module's memory. An empty exportName keeps it private.
func (b *ModuleBuilder) Memory(pages uint32, exportName string) {
	b.memoryPages = pages
	b.memoryExport = exportName
}

// Build encodes the module.
func (b *ModuleBuilder) Build() []byte {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	wasm = append(wasm, encodeSection(0x01, encodeVec(b.types))...)

	if len(b.imports) > 0 {
		items := make([][]byte, 0, len(b.imports))
		for _, im := range b.imports {
			it := append(encodeName(im.module), encodeName(im.name)...)
			it = append(it, 0x00)
			it = append(it, EncodeULEB128(im.typeIdx)...)
			items = append(items, it)
		}
		wasm = append(wasm, encodeSection(0x02, encodeVec(items))...)
	}

	funcTypes := make([][]byte, 0, len(b.funcs))
	for _, f := range b.funcs {
		funcTypes = append(funcTypes, EncodeULEB128(f.typeIdx))
	}
	wasm = append(wasm, encodeSection(0x03, encodeVec(funcTypes))...)

	if b.memoryPages > 0 {
		limits := append([]byte{0x00}, EncodeULEB128(b.memoryPages)...)
		wasm = append(wasm, encodeSection(0x05, encodeVec([][]byte{limits}))...)
	}

	if len(b.globals) > 0 {
		items := make([][]byte, 0, len(b.globals))
		for _, init := range b.globals {
			g := []byte{0x7f, 0x01, 0x41}
			g = append(g, EncodeSLEB128(init)...)
			g = append(g, 0x0b)
			items = append(items, g)
		}
		wasm = append(wasm, encodeSection(0x06, encodeVec(items))...)
	}

	var exports [][]byte
	if b.memoryPages > 0 && b.memoryExport != "" {
		exports = append(exports, append(encodeName(b.memoryExport), 0x02, 0x00))
	}
	for i, f := range b.funcs {
		if f.exportName == "" {
			continue
		}
		e := append(encodeName(f.exportName), 0x00)
		e = append(e, EncodeULEB128(uint32(len(b.imports)+i))...) //nolint:gosec // G115: tiny
		exports = append(exports, e)
	}
	wasm = append(wasm, encodeSection(0x07, encodeVec(exports))...)

	bodies := make([][]byte, 0, len(b.funcs))
	for _, f := range b.funcs {
		var body []byte
		if f.locals > 0 {
			body = append(body, 0x01)
			body = append(body, EncodeULEB128(f.locals)...)
			body = append(body, 0x7f)
		} else {
			body = append(body, 0x00)
		}
		body = append(body, f.body...)
		body = append(body, 0x0b)
		bodies = append(bodies, append(EncodeULEB128(uint32(len(body))), body...)) //nolint:gosec // G115: tiny
	}
	wasm = append(wasm, encodeSection(0x0a, encodeVec(bodies))...)

	return wasm
}
