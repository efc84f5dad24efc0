// Package logging configures the process-wide zerolog logger used by every
// binary in this repository.
package logging

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger: pretty console output when
// attached to a terminal, structured JSON otherwise, and a run_id field
// (a fresh UUID per process) attached to every subsequent log line so
// concurrent runs can be told apart in aggregated logs.
func Setup(component string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer io.Writer = os.Stdout
	if isatty.IsTerminal(os.Stdout.Fd()) {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(writer).With().
		Timestamp().
		Str("component", component).
		Str("run_id", uuid.NewString()).
		Logger()

	log.Logger = logger
	return logger
}
