// Package logger wires zerolog into the flags struct.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger carries the logging options embedded into the CLI option struct.
type Logger struct {
	Level string `long:"log-level" env:"LOG_LEVEL" description:"Logging level (trace|debug|info|warn|error)" default:"info"`
	File  string `long:"log-file"  env:"LOG_FILE"  description:"Write logs to a file instead of stderr"`
	JSON  bool   `long:"log-json"  env:"LOG_JSON"  description:"Log in JSON format"`
}

// Setup configures the global zerolog logger. The TUI owns stdout, so logs
// go to stderr or the configured file.
func (l Logger) Setup() {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if l.File != "" {
		f, err := os.OpenFile(l.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
		}
	}
	if !l.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
