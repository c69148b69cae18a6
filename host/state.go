package host

import (
	"sync"
	"weak"
)

// hostState is the cell the import callbacks hold. It exists before the
// Membrane does and only ever points at it weakly.
type hostState struct {
	mu       sync.RWMutex
	membrane weak.Pointer[Membrane]
}

func (s *hostState) attach(m *Membrane) {
	s.mu.Lock()
	s.membrane = weak.Make(m)
	s.mu.Unlock()
}

func (s *hostState) detach() {
	s.mu.Lock()
	s.membrane = weak.Pointer[Membrane]{}
	s.mu.Unlock()
}

// resolve upgrades the back-reference for one callback. It never blocks: a
// contended lock counts as a failed resolution.
func (s *hostState) resolve() (*Membrane, bool) {
	if !s.mu.TryRLock() {
		return nil, false
	}
	wp := s.membrane
	s.mu.RUnlock()

	m := wp.Value()
	if m == nil || !m.alive() {
		return nil, false
	}
	return m, true
}
