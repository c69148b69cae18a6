package host

import (
	"context"
	"fmt"

	"github.com/reglet-dev/membrane/abi"
	"go.uber.org/zap"
)

// Status is the outcome of one handshake check.
type Status string

const (
	StatusVerified Status = "verified" // export present with the right signature
	StatusPassed   Status = "passed"   // a live probe succeeded
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped" // optional and absent, or prerequisites failed
)

// Check is one line of the handshake report.
type Check struct {
	Name      string
	Signature string
	Status    Status
	Required  bool
	Detail    string
}

// Failed reports whether the check fails the handshake.
func (c Check) Failed() bool {
	return c.Status == StatusFailed && c.Required
}

func (c Check) String() string {
	subject := c.Signature
	if subject == "" {
		subject = c.Name
	}
	line := fmt.Sprintf("%s: %s", c.Status, subject)
	if c.Detail != "" {
		line += " (" + c.Detail + ")"
	}
	return line
}

// Report is the full result of a handshake.
type Report struct {
	Module       string
	Profile      string
	GuestVersion int32
	Checks       []Check
}

// Passed reports whether every required check passed.
func (r *Report) Passed() bool {
	return len(r.Failed()) == 0
}

// Failed returns the checks that fail the handshake.
func (r *Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}

// Check returns the check with the given name.
func (r *Report) Check(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Init verifies the guest against the Membrane's profile before any data is
// exchanged. Every check runs even after a failure; each result is logged to
// the sink under SourceWasm. A non-compliant guest yields a *ComplianceError
// alongside the complete report.
func (m *Membrane) Init(ctx context.Context) (*Report, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}

	h := handshake{m: m, report: &Report{Module: m.name, Profile: m.profile.Name}}
	h.checkMemory()
	h.checkExports()
	h.checkVersion(ctx)
	h.callInit(ctx)
	h.smokeTest(ctx)

	if failed := h.report.Failed(); len(failed) > 0 {
		m.logger.Warn("module is not compliant", zap.Int("failed", len(failed)))
		return h.report, &ComplianceError{Module: m.name, Failed: failed}
	}
	m.logger.Debug("module is compliant")
	return h.report, nil
}

type handshake struct {
	m        *Membrane
	report   *Report
	memoryOK bool
	exports  map[abi.Role]bool
}

func (h *handshake) add(c Check) {
	h.report.Checks = append(h.report.Checks, c)
	h.m.sink.Log(SourceWasm, c.String())
}

func (h *handshake) checkMemory() {
	name := h.m.profile.Memory
	c := Check{Name: "memory", Signature: fmt.Sprintf("memory %q", name), Required: true}
	if h.m.module.ExportedMemory(name) != nil {
		c.Status = StatusVerified
		h.memoryOK = true
	} else {
		c.Status = StatusFailed
		c.Detail = "not exported"
	}
	h.add(c)
}

func (h *handshake) checkExports() {
	h.exports = make(map[abi.Role]bool, len(h.m.profile.Exports))
	for _, spec := range h.m.profile.Exports {
		sig := spec.Signature()
		c := Check{Name: string(spec.Role), Signature: sig.Format(spec.Name), Required: spec.Required}

		fn := h.m.module.ExportedFunction(spec.Name)
		switch {
		case fn == nil && spec.Required:
			c.Status, c.Detail = StatusFailed, "not exported"
		case fn == nil:
			c.Status, c.Detail = StatusSkipped, "not exported, optional"
		case !sig.Matches(fn.Definition().ParamTypes(), fn.Definition().ResultTypes()):
			got := abi.Signature{Params: fn.Definition().ParamTypes(), Results: fn.Definition().ResultTypes()}
			c.Status, c.Detail = StatusFailed, "found "+got.Format(spec.Name)
		default:
			c.Status = StatusVerified
			h.exports[spec.Role] = true
		}
		h.add(c)
	}
}

func (h *handshake) checkVersion(ctx context.Context) {
	if !h.exports[abi.RoleVersion] {
		return
	}
	c := Check{Name: "abi_version", Signature: fmt.Sprintf("version == %d", h.m.profile.Version), Required: true}
	v, err := h.m.callI32(ctx, abi.RoleVersion)
	switch {
	case err != nil:
		c.Status, c.Detail = StatusFailed, err.Error()
	case v != h.m.profile.Version:
		h.report.GuestVersion = v
		c.Status, c.Detail = StatusFailed, fmt.Sprintf("guest reports version %d", v)
	default:
		h.report.GuestVersion = v
		c.Status = StatusPassed
	}
	h.add(c)
}

func (h *handshake) callInit(ctx context.Context) {
	spec, bound := h.m.profile.Export(abi.RoleInit)
	if !bound {
		return
	}
	c := Check{Name: "init_call", Signature: spec.Name + "()", Required: true}
	if !h.exports[abi.RoleInit] {
		// Absence was already reported by checkExports.
		c.Status, c.Required, c.Detail = StatusSkipped, false, "init hook not available"
		h.add(c)
		return
	}
	if _, err := h.m.callRole(ctx, abi.RoleInit); err != nil {
		c.Status, c.Detail = StatusFailed, err.Error()
	} else {
		c.Status = StatusPassed
	}
	h.add(c)
}

// smokeTest drives the full write path with a known string and reads it back.
func (h *handshake) smokeTest(ctx context.Context) {
	c := Check{Name: "smoke_write", Signature: fmt.Sprintf("write %q", abi.SmokeTestString), Required: true}
	for _, r := range []abi.Role{abi.RoleAllocBuffer, abi.RoleGetBufferPtr, abi.RoleGetBufferLen, abi.RoleDeallocBuffer} {
		if !h.exports[r] {
			c.Status, c.Required, c.Detail = StatusSkipped, false, "write path unavailable"
			h.add(c)
			return
		}
	}
	if !h.memoryOK {
		c.Status, c.Required, c.Detail = StatusSkipped, false, "memory unavailable"
		h.add(c)
		return
	}

	c.Status = StatusPassed
	handle, err := h.m.WriteString(ctx, abi.SmokeTestString)
	if err != nil {
		c.Status, c.Detail = StatusFailed, err.Error()
		h.add(c)
		return
	}
	got, err := h.m.ReadString(ctx, handle)
	switch {
	case err != nil:
		c.Status, c.Detail = StatusFailed, err.Error()
	case got != abi.SmokeTestString:
		c.Status, c.Detail = StatusFailed, fmt.Sprintf("read back %q", got)
	}
	if err := h.m.Dealloc(ctx, handle); err != nil {
		c.Status, c.Detail = StatusFailed, err.Error()
	}
	h.add(c)
}
