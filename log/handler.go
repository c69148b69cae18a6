// Package log provides structured logging (slog) for membrane guests. Records
// are rendered to a single line and shipped to the host through the host_log
// import, where they are tagged with the "guest" source.
package log

import (
	"context"
	"log/slog"

	"github.com/reglet-dev/membrane/guest"
)

// WasmLogHandler is a slog.Handler that hands each rendered record to the
// host. It is immutable; WithAttrs and WithGroup return copies.
type WasmLogHandler struct {
	send   func(string)
	level  slog.Level
	source bool

	attrs  []slog.Attr // already qualified with the group prefix in force
	prefix string      // "a.b." for WithGroup("a").WithGroup("b")
}

// HandlerOption configures a WasmLogHandler.
type HandlerOption func(*WasmLogHandler)

// WithLevel drops records below level inside the guest, before they cross
// the boundary.
func WithLevel(level slog.Level) HandlerOption {
	return func(h *WasmLogHandler) { h.level = level }
}

// WithSource appends source=file:line to every line.
func WithSource(enabled bool) HandlerOption {
	return func(h *WasmLogHandler) { h.source = enabled }
}

// WithSender replaces guest.Log as the destination of rendered lines.
func WithSender(send func(string)) HandlerOption {
	return func(h *WasmLogHandler) {
		if send != nil {
			h.send = send
		}
	}
}

// NewHandler returns a handler at info level that sends through guest.Log.
func NewHandler(opts ...HandlerOption) *WasmLogHandler {
	h := &WasmLogHandler{send: guest.Log, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *WasmLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *WasmLogHandler) Handle(_ context.Context, record slog.Record) error {
	h.send(h.format(record))
	return nil
}

func (h *WasmLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &nh
}

func (h *WasmLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}
