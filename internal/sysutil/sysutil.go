// Package sysutil holds process bootstrap helpers for cmd/server.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SetLogLevel sets the global zerolog level and returns it. Accepted values
// (case-insensitive): trace, debug, info, warn|warning, error, fatal, panic,
// off|disabled. Anything else selects info.
func SetLogLevel(lvl string) zerolog.Level {
	level := zerolog.InfoLevel
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	case "fatal":
		level = zerolog.FatalLevel
	case "panic":
		level = zerolog.PanicLevel
	case "off", "disabled":
		level = zerolog.Disabled
	}
	zerolog.SetGlobalLevel(level)
	return level
}

// NewLogger builds the process logger: JSON lines by default, a colorless
// console writer when pretty is set. Every entry carries the service name.
func NewLogger(w io.Writer, pretty bool, service string) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
