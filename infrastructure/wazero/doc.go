// Package wazero binds a hostfuncs.HandlerRegistry into a wazero runtime as
// the membrane import module.
//
// Every registered name becomes an (i32) -> () host function. When the guest
// calls one, the adapter:
//
//   - resolves the owning membrane through a Resolver (no-op when gone)
//   - consumes the buffer handle the guest passed, as UTF-8 text
//   - invokes the named handler with the message
//
// Failures are logged and swallowed: an import call never returns an error
// into the guest.
//
// # Basic Usage
//
//	registry, err := hostfuncs.NewRegistry(
//	    hostfuncs.WithHandler("membrane_host_log", logHandler),
//	)
//	if err != nil {
//	    return err
//	}
//
//	runtime := wazero.NewRuntime(ctx)
//	err = wazeroadapter.RegisterImports(ctx, runtime, registry, resolve,
//	    wazeroadapter.WithModuleName("env"),
//	)
package wazero
