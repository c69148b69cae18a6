package host

import "sync/atomic"

// Stats are cumulative counters for one Membrane.
type Stats struct {
	Allocations   uint64
	Deallocations uint64
	BytesWritten  uint64
	BytesRead     uint64
	GuestCalls    uint64
	GuestFaults   uint64
}

type counters struct {
	allocs, deallocs, written, read, calls, faults atomic.Uint64
}

// Stats returns a snapshot of the Membrane's counters.
func (m *Membrane) Stats() Stats {
	return Stats{
		Allocations:   m.stats.allocs.Load(),
		Deallocations: m.stats.deallocs.Load(),
		BytesWritten:  m.stats.written.Load(),
		BytesRead:     m.stats.read.Load(),
		GuestCalls:    m.stats.calls.Load(),
		GuestFaults:   m.stats.faults.Load(),
	}
}
