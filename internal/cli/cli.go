// Package cli provides Cargo/rustc-style terminal output for the gaudi
// command: colored diagnostics for blueprint and runtime errors, tables, and
// the slog handler used by long-running commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

var colors atomic.Bool

func init() {
	colors.Store(ColorsFor(os.Stdout))
}

// ColorsFor reports whether output written to f should be styled: f is a
// terminal, NO_COLOR is unset and TERM is not dumb.
func ColorsFor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(f)
}

// SetColors overrides terminal detection.
func SetColors(on bool) { colors.Store(on) }

// Colors reports whether style functions emit ANSI sequences.
func Colors() bool { return colors.Load() }

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// NewLogHandler returns a text handler when w is a terminal and a JSON
// handler otherwise.
func NewLogHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if f, ok := w.(*os.File); ok && isTerminal(f) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
