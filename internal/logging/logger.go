// Copyright (c) 2025 sqlgate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/pterm/pterm"
)

// NewLogger returns a slog.Logger rendered by pterm. format "json" switches
// to pterm's JSON formatter; anything else is the colorful terminal format.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	pl := pterm.DefaultLogger.
		WithLevel(ParseLevel(level)).
		WithWriter(w).
		WithTime(true)
	if strings.EqualFold(format, "json") {
		pl = pl.WithFormatter(pterm.LogFormatterJSON)
	}
	return slog.New(pterm.NewSlogHandler(pl))
}

// ParseLevel maps debug|info|warn|error onto pterm levels; unknown values
// are treated as info.
func ParseLevel(level string) pterm.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return pterm.LogLevelTrace
	case "debug":
		return pterm.LogLevelDebug
	case "warn", "warning":
		return pterm.LogLevelWarn
	case "error":
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}

// Discard returns a logger that drops everything. Used by tests and by CLI
// commands that report through pterm directly.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
