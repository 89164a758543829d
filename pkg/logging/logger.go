// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel `yaml:"level"`

	// Pretty switches from JSON lines to console output.
	Pretty bool `yaml:"pretty"`

	// Service tags every line with the binary that wrote it.
	Service string `yaml:"-"`

	// Output defaults to os.Stderr.
	Output io.Writer `yaml:"-"`
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. An invalid
// level falls back to info; config validation rejects it earlier.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.DateTime}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a LogLevel to a zerolog.Level. Empty means info and
// "warning" is accepted for warn.
func ParseLevel(level LogLevel) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger derives a component logger from the global logger. Call it
// after Setup so the component inherits the service field.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRun tags logger with the pipeline name and run id.
func WithRun(logger zerolog.Logger, pipeline, runID string) zerolog.Logger {
	return logger.With().Str("pipeline", pipeline).Str("run_id", runID).Logger()
}

// Log Level Guidelines:
//
// Debug: per-request detail
//   - Page URLs and query parameters
//   - Cache hit/miss for upstream responses
//   - Pacing sleeps between pages
//
// Info: run progress
//   - Entity retrieval start/complete with record counts
//   - Aggregation summary
//   - Objects written to storage
//
// Warn: recoverable conditions
//   - HTTP 400 backoff
//   - Indicator request failed (treated as no data)
//   - Country name could not be converted (entity skipped)
//
// Error: conditions that fail the run or need attention
//   - Transport or non-retryable HTTP failures
//   - Backoff alarm (many consecutive 400s for the same request)
//   - Storage write failures
//
// Context Fields:
//   - run_id: pipeline run identifier
//   - country_code / country: entity being processed
//   - url: request URL
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network, decode
//   - records / pages / backoffs: counters
//   - path: storage object path
