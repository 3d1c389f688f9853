// Package logger builds the service's zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout, or a console logger with debug
// level when appEnv is "development".
func New(appEnv, service string) zerolog.Logger {
	return newWithWriter(os.Stdout, appEnv, service)
}

func newWithWriter(w io.Writer, appEnv, service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "development" {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
