// Package abi describes the membrane wire contract shared by hosts and guests:
// the protocol version, the roles of the guest export surface with their fixed
// signatures, and the host import surface.
//
// Export names are not fixed by the protocol. They come from a Profile, so the
// same host can drive guests built against differently prefixed export sets.
package abi

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Version is the ABI version this module speaks. Host and guest must report
// the same value for data exchange to be considered safe.
const Version int32 = 1

// Status codes returned by guest capability exports.
const (
	OK    int32 = 0
	Error int32 = -1
)

// DefaultMemory is the linear memory export every guest must provide.
const DefaultMemory = "memory"

// DefaultImportModule is the module name the host import surface is registered under.
const DefaultImportModule = "env"

// SmokeTestString is written through the full write path during the handshake.
const SmokeTestString = "Test write string"

// Role identifies one entry point of the guest export surface.
type Role string

// Guest export roles.
const (
	RoleVersion         Role = "version"
	RoleAllocBuffer     Role = "alloc_buffer"
	RoleWriteToBuffer   Role = "write_to_buffer"
	RoleDeallocBuffer   Role = "dealloc_buffer"
	RoleGetBufferPtr    Role = "get_buffer_ptr"
	RoleGetBufferLen    Role = "get_buffer_len"
	RoleAllowsBufferPtr Role = "allows_buffer_ptr"
	RoleInit            Role = "init"
)

// ImportRole identifies one entry point of the host import surface.
type ImportRole string

// Host import roles.
const (
	ImportLog   ImportRole = "log"
	ImportPanic ImportRole = "panic"
)

// Signature is the wasm-level shape of a function.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

var i32 = api.ValueTypeI32

// signatures is the fixed wire signature of each export role. Names vary by
// profile, shapes never do.
var signatures = map[Role]Signature{
	RoleVersion:         {Results: []api.ValueType{i32}},
	RoleAllocBuffer:     {Params: []api.ValueType{i32}, Results: []api.ValueType{i32}},
	RoleWriteToBuffer:   {Params: []api.ValueType{i32, i32, i32}},
	RoleDeallocBuffer:   {Params: []api.ValueType{i32}},
	RoleGetBufferPtr:    {Params: []api.ValueType{i32}, Results: []api.ValueType{i32}},
	RoleGetBufferLen:    {Params: []api.ValueType{i32}, Results: []api.ValueType{i32}},
	RoleAllowsBufferPtr: {Results: []api.ValueType{i32}},
	RoleInit:            {},
}

// ImportSignature is the shape of every host import: a single buffer handle in,
// nothing out.
var ImportSignature = Signature{Params: []api.ValueType{i32}}

// SignatureOf returns the wire signature of a role.
func SignatureOf(r Role) (Signature, bool) {
	s, ok := signatures[r]
	return s, ok
}

// Roles returns every known export role in handshake order.
func Roles() []Role {
	return []Role{
		RoleVersion,
		RoleAllocBuffer,
		RoleWriteToBuffer,
		RoleGetBufferPtr,
		RoleGetBufferLen,
		RoleDeallocBuffer,
		RoleAllowsBufferPtr,
		RoleInit,
	}
}

// Matches reports whether params and results have exactly this signature.
func (s Signature) Matches(params, results []api.ValueType) bool {
	return equalTypes(s.Params, params) && equalTypes(s.Results, results)
}

// Format renders the signature as used in verification logs, e.g.
// "membrane_guest_alloc_buffer( i32 ) -> i32".
func (s Signature) Format(name string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteString("(")
	if len(s.Params) == 0 {
		b.WriteString(" ")
	}
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(" ")
		b.WriteString(api.ValueTypeName(p))
	}
	if len(s.Params) > 0 {
		b.WriteString(" ")
	}
	b.WriteString(")")
	switch len(s.Results) {
	case 0:
	case 1:
		fmt.Fprintf(&b, " -> %s", api.ValueTypeName(s.Results[0]))
	default:
		names := make([]string, len(s.Results))
		for i, r := range s.Results {
			names[i] = api.ValueTypeName(r)
		}
		fmt.Fprintf(&b, " -> (%s)", strings.Join(names, ", "))
	}
	return b.String()
}

func equalTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
