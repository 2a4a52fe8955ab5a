package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/roach88/pluma/internal/handler"
)

// NewLogger creates the structured logger for a pluma invocation.
// When w is a terminal, uses slog.TextHandler for human-readable output;
// otherwise slog.JSONHandler. Only warnings are shown unless verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if isTerminal(w) {
		h = slog.NewTextHandler(w, options)
	} else {
		h = slog.NewJSONHandler(w, options)
	}
	return slog.New(h)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// layoutFor sizes help output to the terminal behind w, if any.
func layoutFor(w io.Writer) handler.Layout {
	l := handler.DefaultLayout
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 40 {
			l.Width = min(width, 120)
		}
	}
	return l
}
