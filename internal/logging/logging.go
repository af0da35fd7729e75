// Package logging builds the structured logger shared by all packages.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w. With debug off, every record is
// discarded so normal output stays clean.
func New(w io.Writer, debug bool) *slog.Logger {
	if !debug || w == nil {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Component returns l tagged with a component name.
func Component(l *slog.Logger, name string) *slog.Logger {
	return l.With(slog.String("component", name))
}
