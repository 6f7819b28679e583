// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

type Options struct {
	// Format is "json", "console" or "ecs". Empty picks console in
	// development and json otherwise.
	Format string
	Level  string
	Dev    bool
	Out    io.Writer
}

// New returns a logger for opts and installs it as the zerolog global.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	format := opts.Format
	if format == "" {
		format = "json"
		if opts.Dev {
			format = "console"
		}
	}

	var logger zerolog.Logger
	switch format {
	case "ecs":
		// ecszerolog renames the zerolog global field names to ECS ones.
		logger = ecszerolog.New(out).With().Timestamp().Logger()
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	default:
		logger = zerolog.New(out).With().Timestamp().Logger()
	}

	logger = logger.Level(ParseLevel(opts.Level)).With().Str("service", "clinic-server").Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
