package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that drops all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
