package abi

import (
	"errors"
	"fmt"
	"sort"
)

// ExportSpec binds a role to a concrete export name.
type ExportSpec struct {
	Role     Role
	Name     string
	Required bool
}

// Signature returns the wire signature of the bound role.
func (e ExportSpec) Signature() Signature {
	s, _ := SignatureOf(e.Role)
	return s
}

// Profile is one flavour of the membrane protocol: which names the guest
// exports for each role, which of them are required, and which names the host
// registers its imports under.
type Profile struct {
	Name         string
	Version      int32
	Memory       string
	ImportModule string
	Exports      []ExportSpec
	Imports      map[ImportRole]string
}

// Export returns the ExportSpec bound to role.
func (p Profile) Export(r Role) (ExportSpec, bool) {
	for _, e := range p.Exports {
		if e.Role == r {
			return e, true
		}
	}
	return ExportSpec{}, false
}

// ExportName returns the export name bound to role, or "" if the profile does
// not bind it.
func (p Profile) ExportName(r Role) string {
	e, _ := p.Export(r)
	return e.Name
}

// ImportName returns the import name bound to role.
func (p Profile) ImportName(r ImportRole) string {
	return p.Imports[r]
}

// Validate checks the profile table for internal consistency.
func (p Profile) Validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("profile name is empty"))
	}
	if p.Memory == "" {
		errs = append(errs, errors.New("memory export name is empty"))
	}
	if p.ImportModule == "" {
		errs = append(errs, errors.New("import module is empty"))
	}

	roles := make(map[Role]bool, len(p.Exports))
	names := make(map[string]bool, len(p.Exports))
	for _, e := range p.Exports {
		if _, ok := SignatureOf(e.Role); !ok {
			errs = append(errs, fmt.Errorf("unknown export role %q", e.Role))
		}
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("export for role %q has no name", e.Role))
		}
		if roles[e.Role] {
			errs = append(errs, fmt.Errorf("duplicate export role %q", e.Role))
		}
		if names[e.Name] {
			errs = append(errs, fmt.Errorf("duplicate export name %q", e.Name))
		}
		roles[e.Role] = true
		names[e.Name] = true
	}

	// The data path cannot work without these, whatever the profile says.
	for _, r := range []Role{RoleAllocBuffer, RoleGetBufferPtr, RoleGetBufferLen, RoleDeallocBuffer} {
		if e, ok := p.Export(r); !ok || !e.Required {
			errs = append(errs, fmt.Errorf("role %q must be bound and required", r))
		}
	}

	for _, r := range []ImportRole{ImportLog, ImportPanic} {
		if p.Imports[r] == "" {
			errs = append(errs, fmt.Errorf("import role %q has no name", r))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid profile %q: %w", p.Name, errors.Join(errs...))
	}
	return nil
}

// NewProfile builds a profile whose exports are prefix + role. Every role is
// bound; only the roles listed in required are required.
func NewProfile(name, prefix string, required ...Role) Profile {
	req := make(map[Role]bool, len(required))
	for _, r := range required {
		req[r] = true
	}
	exports := make([]ExportSpec, 0, len(signatures))
	for _, r := range Roles() {
		exports = append(exports, ExportSpec{Role: r, Name: prefix + string(r), Required: req[r]})
	}
	return Profile{
		Name:         name,
		Version:      Version,
		Memory:       DefaultMemory,
		ImportModule: DefaultImportModule,
		Exports:      exports,
		Imports: map[ImportRole]string{
			ImportLog:   "membrane_host_log",
			ImportPanic: "membrane_host_panic",
		},
	}
}

var coreRoles = []Role{
	RoleVersion,
	RoleAllocBuffer,
	RoleWriteToBuffer,
	RoleGetBufferPtr,
	RoleGetBufferLen,
	RoleDeallocBuffer,
}

// Basic is the plain buffer-exchange profile. The init hook is optional.
func Basic() Profile {
	return NewProfile("basic", "membrane_guest_", coreRoles...)
}

// Application is the profile for application guests, which must also export
// an init hook.
func Application() Profile {
	return NewProfile("application", "membrane_app_", append(coreRoles, RoleInit)...)
}

var builtin = map[string]func() Profile{
	"basic":       Basic,
	"application": Application,
}

// ProfileByName returns a built-in profile.
func ProfileByName(name string) (Profile, error) {
	fn, ok := builtin[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (known: %v)", name, ProfileNames())
	}
	return fn(), nil
}

// ProfileNames returns the sorted names of the built-in profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Profiles returns every built-in profile, sorted by name.
func Profiles() []Profile {
	names := ProfileNames()
	out := make([]Profile, 0, len(names))
	for _, n := range names {
		out = append(out, builtin[n]())
	}
	return out
}
