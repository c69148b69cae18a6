// Package registry keeps the membrane profiles a host knows by name: the
// built-in ones and any declared in configuration.
package registry

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/reglet-dev/membrane/abi"
)

type registryConfig struct {
	strict   bool
	builtins bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

// WithStrictMode controls whether registering an existing name fails (the
// default) or replaces the earlier profile.
func WithStrictMode(enabled bool) RegistryOption {
	return func(c *registryConfig) { c.strict = enabled }
}

// WithBuiltins preloads abi.Profiles().
func WithBuiltins() RegistryOption {
	return func(c *registryConfig) { c.builtins = true }
}

// Registry maps profile names to profiles. Safe for concurrent use.
type Registry struct {
	strict bool

	mu       sync.RWMutex
	profiles map[string]abi.Profile
}

// New returns a registry configured by opts.
func New(opts ...RegistryOption) *Registry {
	cfg := registryConfig{strict: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Registry{strict: cfg.strict, profiles: make(map[string]abi.Profile)}
	if cfg.builtins {
		for _, p := range abi.Profiles() {
			r.profiles[p.Name] = p
		}
	}
	return r
}

// Register validates p and stores it under p.Name.
func (r *Registry) Register(p abi.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[p.Name]; exists && r.strict {
		return fmt.Errorf("profile %q already registered", p.Name)
	}
	r.profiles[p.Name] = p
	return nil
}

func (r *Registry) Get(name string) (abi.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[name]
	return p, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.profiles))
}

// Profiles returns the registered profiles ordered by name.
func (r *Registry) Profiles() []abi.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]abi.Profile, 0, len(r.profiles))
	for _, name := range slices.Sorted(maps.Keys(r.profiles)) {
		out = append(out, r.profiles[name])
	}
	return out
}
