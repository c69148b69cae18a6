//go:build wasip1

package log

import "log/slog"

// init makes the host the default slog destination inside guests.
func init() {
	slog.SetDefault(slog.New(NewHandler()))
}
