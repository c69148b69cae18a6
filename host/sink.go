package host

import (
	"sync"

	"go.uber.org/zap"
)

// Log sources used by a Membrane.
const (
	SourceGuest = "guest" // messages from the guest's log import
	SourceWasm  = "wasm"  // handshake verification lines
)

// Sink receives (source, message) log pairs.
type Sink interface {
	Log(source, message string)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(source, message string)

// Log implements Sink.
func (f SinkFunc) Log(source, message string) {
	f(source, message)
}

type zapSink struct {
	logger *zap.Logger
}

// NewZapSink returns a Sink that writes every message at info level.
func NewZapSink(logger *zap.Logger) Sink {
	return &zapSink{logger: logger}
}

func (s *zapSink) Log(source, message string) {
	s.logger.Info(message, zap.String("source", source))
}

// Entry is one message captured by a MemorySink.
type Entry struct {
	Source  string
	Message string
}

// MemorySink keeps every message in order. Safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// Log implements Sink.
func (s *MemorySink) Log(source, message string) {
	s.mu.Lock()
	s.entries = append(s.entries, Entry{Source: source, Message: message})
	s.mu.Unlock()
}

// Entries returns a copy of the captured messages.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Messages returns the captured messages logged under source.
func (s *MemorySink) Messages(source string) []string {
	var out []string
	for _, e := range s.Entries() {
		if e.Source == source {
			out = append(out, e.Message)
		}
	}
	return out
}

// Reset drops every captured message.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

// multiSink fans a message out to several sinks.
type multiSink []Sink

func (ms multiSink) Log(source, message string) {
	for _, s := range ms {
		s.Log(source, message)
	}
}

// TeeSink returns a Sink that forwards to every given sink in order.
func TeeSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}
