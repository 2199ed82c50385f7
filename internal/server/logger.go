// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// setupLogger installs the global slog logger writing to stdout.
func setupLogger(level, format string) {
	slog.SetDefault(newLogger(os.Stdout, level, format))
}

// newLogger builds a JSON or tinted text logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: logLevel <= slog.LevelDebug,
		}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      logLevel,
		AddSource:  logLevel <= slog.LevelDebug,
		TimeFormat: time.TimeOnly,
		NoColor:    w != os.Stdout,
	}))
}
