// Package logging configures the process-wide zerolog logger and hands out
// component loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level is a textual log level as it appears in LOG_LEVEL.
type Level string

const (
	// LevelDebug logs per-page fetch detail and above.
	LevelDebug Level = "debug"

	// LevelInfo logs batch and server lifecycle messages and above.
	LevelInfo Level = "info"

	// LevelWarn logs failed fetches and rejected requests and above.
	LevelWarn Level = "warn"

	// LevelError logs errors only.
	LevelError Level = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level Level

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs the global logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a level name to a zerolog level. Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger tagged with the given component name from the
// global logger.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: per-page flow
//   - Page requests (endpoint, page, item count)
//   - Items skipped for a missing timestamp
//
// Info: normal operation
//   - Batch summaries (addresses, duration)
//   - Server startup/shutdown
//
// Warn: failures scoped to one fetch or one address
//   - Non-2xx upstream statuses
//   - Transport or decode failures
//   - Rejected batch requests (bad dates)
//
// Error: the service itself is failing
//   - Listener errors
//   - Configuration errors
//
// Context Fields:
//   - component: ordiscan-client, inscriptions, batch, http
//   - endpoint: upstream path
//   - address: queried Bitcoin address
//   - mode: held or transferred
//   - page: 1-indexed page number
//   - status: HTTP status code
//   - error_class: client, server, network
