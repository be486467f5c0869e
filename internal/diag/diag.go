// Package diag is the monitor's internal diagnostics channel. Failures
// inside the fault path have no caller to return an error to (the
// "caller" is a faulted mov instruction), so they are reported here
// instead of being silently dropped.
package diag

import (
	"io"
	"log/slog"
	"os"
)

// L is the global diagnostics logger. It discards everything by default;
// call Init to enable output.
var L *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures diagnostics output.
type Options struct {
	Enabled bool       // if false, all output is discarded
	Output  io.Writer  // destination; default os.Stderr
	Level   slog.Level // minimum level; default LevelInfo
}

// Init configures the diagnostics logger. Call before creating monitors;
// the logger is read without synchronization from the fault path.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	L = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level}))
}
