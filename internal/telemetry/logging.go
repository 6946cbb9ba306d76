// Package telemetry wires up structured logging and the human-readable
// per-message console report.
package telemetry

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chainsignal/chainsignal/internal/config"
)

// Init configures the global zerolog logger from the pipeline's log-level
// knob, falling back to INFO on an invalid value.
func Init(levelStr string, humanConsole bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := levelFromString(config.NormalizeLogLevel(levelStr))
	zerolog.SetGlobalLevel(level)

	if humanConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func levelFromString(s string) zerolog.Level {
	switch s {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}
