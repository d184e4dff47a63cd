// Package logger configures the global zerolog logger used by every scanner component.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the logger.
type Config struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	JSONFormat bool   `mapstructure:"json_format"`
}

// Setup configures the global logger. Console output goes to stderr; when a file
// is configured, entries are mirrored there as JSON or uncolored console lines.
// The returned closer releases the log file, if any.
func Setup(cfg Config) (io.Closer, error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg Config, console io.Writer) (io.Closer, error) {
	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339},
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		logFile, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o664)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closer = logFile
		if cfg.JSONFormat {
			writers = append(writers, logFile)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: logFile, TimeFormat: time.RFC3339, NoColor: true})
		}
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	SetLevel(cfg.Level)

	log.Debug().Str("level", zerolog.GlobalLevel().String()).Msg("Logger initialized")
	return closer, nil
}

// SetLevel sets the global logging level.
func SetLevel(level string) {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Msgf("Unknown log level '%s', defaulting to 'info'", level)
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
