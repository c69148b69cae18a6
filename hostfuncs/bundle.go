package hostfuncs

import (
	"maps"
	"slices"
)

// HostFuncBundle groups handlers that are registered together, such as a
// profile's log and panic imports.
type HostFuncBundle interface {
	Handlers() map[string]MessageHandler
}

// StaticBundle is a HostFuncBundle over a fixed map.
type StaticBundle map[string]MessageHandler

func (b StaticBundle) Handlers() map[string]MessageHandler {
	return b
}

// WithBundle registers every handler of bundle, in name order, with the same
// checks as WithHandler.
func WithBundle(bundle HostFuncBundle) RegistryOption {
	return func(b *registryBuilder) {
		handlers := bundle.Handlers()
		for _, name := range slices.Sorted(maps.Keys(handlers)) {
			WithHandler(name, handlers[name])(b)
		}
	}
}
