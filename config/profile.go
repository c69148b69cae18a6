package config

import (
	"errors"
	"fmt"

	"github.com/reglet-dev/membrane/abi"
	"github.com/reglet-dev/membrane/host/registry"
)

// ProfileSpec declares a custom profile. Export names default to Prefix+role;
// Exports overrides individual roles.
type ProfileSpec struct {
	Name         string            `yaml:"name" json:"name" validate:"required"`
	Prefix       string            `yaml:"prefix" json:"prefix" validate:"required"`
	Version      int32             `yaml:"version" json:"version,omitempty"`
	Memory       string            `yaml:"memory" json:"memory,omitempty"`
	ImportModule string            `yaml:"import_module" json:"import_module,omitempty"`
	Required     []string          `yaml:"required" json:"required,omitempty" validate:"dive,oneof=version alloc_buffer write_to_buffer dealloc_buffer get_buffer_ptr get_buffer_len allows_buffer_ptr init"`
	Exports      map[string]string `yaml:"exports" json:"exports,omitempty" validate:"dive,keys,oneof=version alloc_buffer write_to_buffer dealloc_buffer get_buffer_ptr get_buffer_len allows_buffer_ptr init,endkeys,required"`
	Imports      ImportNames       `yaml:"imports" json:"imports,omitempty"`
}

// ImportNames overrides the names of the host imports.
type ImportNames struct {
	Log   string `yaml:"log" json:"log,omitempty"`
	Panic string `yaml:"panic" json:"panic,omitempty"`
}

// Profile converts the declaration into a validated abi.Profile. Without an
// explicit required list the basic profile's required roles apply.
func (s ProfileSpec) Profile() (abi.Profile, error) {
	required := make([]abi.Role, 0, len(s.Required))
	for _, r := range s.Required {
		required = append(required, abi.Role(r))
	}
	if len(required) == 0 {
		for _, e := range abi.Basic().Exports {
			if e.Required {
				required = append(required, e.Role)
			}
		}
	}

	p := abi.NewProfile(s.Name, s.Prefix, required...)
	if s.Version != 0 {
		p.Version = s.Version
	}
	if s.Memory != "" {
		p.Memory = s.Memory
	}
	if s.ImportModule != "" {
		p.ImportModule = s.ImportModule
	}
	for i, e := range p.Exports {
		if name, ok := s.Exports[string(e.Role)]; ok {
			p.Exports[i].Name = name
		}
	}
	if s.Imports.Log != "" {
		p.Imports[abi.ImportLog] = s.Imports.Log
	}
	if s.Imports.Panic != "" {
		p.Imports[abi.ImportPanic] = s.Imports.Panic
	}

	if err := p.Validate(); err != nil {
		return abi.Profile{}, err
	}
	return p, nil
}

// CustomProfiles converts every declared profile.
func (c *Config) CustomProfiles() ([]abi.Profile, error) {
	var errs []error
	out := make([]abi.Profile, 0, len(c.Profiles))
	for _, s := range c.Profiles {
		p, err := s.Profile()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}

// ProfileRegistry returns a registry holding the built-in profiles plus the
// declared ones. Declaring a profile under a built-in name is an error.
func (c *Config) ProfileRegistry() (*registry.Registry, error) {
	profiles, err := c.CustomProfiles()
	if err != nil {
		return nil, err
	}
	reg := registry.New(registry.WithBuiltins())
	for _, p := range profiles {
		if err := reg.Register(p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
	}
	return reg, nil
}
