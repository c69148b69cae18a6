// Package metrics exports Membrane counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reglet-dev/membrane/host"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "membrane"

// StatsSource is anything that reports Membrane counters. *host.Membrane
// satisfies it.
type StatsSource interface {
	Name() string
	Stats() host.Stats
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(host.Stats) uint64
}

// Collector is a prometheus.Collector over a set of tracked membranes. Each
// metric carries a "module" label with the membrane's name.
type Collector struct {
	mu       sync.RWMutex
	sources  map[string]StatsSource
	counters []counterDesc
}

// NewCollector returns an empty collector whose metrics live under namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	counter := func(name, help string, value func(host.Stats) uint64) counterDesc {
		return counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"module"}, nil),
			value: value,
		}
	}
	return &Collector{
		sources: make(map[string]StatsSource),
		counters: []counterDesc{
			counter("buffer_allocations_total", "guest buffers allocated by the host",
				func(s host.Stats) uint64 { return s.Allocations }),
			counter("buffer_deallocations_total", "guest buffers released by the host",
				func(s host.Stats) uint64 { return s.Deallocations }),
			counter("bytes_written_total", "bytes copied into guest memory",
				func(s host.Stats) uint64 { return s.BytesWritten }),
			counter("bytes_read_total", "bytes copied out of guest memory",
				func(s host.Stats) uint64 { return s.BytesRead }),
			counter("guest_calls_total", "calls into guest exports",
				func(s host.Stats) uint64 { return s.GuestCalls }),
			counter("guest_faults_total", "guest calls that trapped or exited",
				func(s host.Stats) uint64 { return s.GuestFaults }),
		},
	}
}

// Track adds src, replacing any source with the same name.
func (c *Collector) Track(src StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[src.Name()] = src
}

// Untrack removes the source registered under name.
func (c *Collector) Untrack(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, name)
}

// Tracked returns the tracked source names, sorted.
func (c *Collector) Tracked() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, src := range c.sources {
		stats := src.Stats()
		for _, cd := range c.counters {
			ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(stats)), name)
		}
	}
}

// Register registers c with reg. Registering the same collector twice is not
// an error.
func Register(reg prometheus.Registerer, c *Collector) error {
	err := reg.Register(c)
	if err != nil && !errors.As(err, &prometheus.AlreadyRegisteredError{}) {
		return fmt.Errorf("cannot register membrane collector: %w", err)
	}
	return nil
}
