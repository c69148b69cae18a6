// Package hostfuncs holds the host side of the membrane import surface: named
// handlers that receive a message the guest placed in one of its buffers.
//
// Handlers have no WASM runtime dependencies. Binding them into a runtime, and
// resolving the buffer handle into a message, is done by
// infrastructure/wazero and the host package.
package hostfuncs
