// Package logging provides structured logging configuration using zerolog,
// and a fetch observer that narrates paged fetches.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// zerologLevels maps every LogLevel to its zerolog level.
var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

// ParseLevel validates a level name from configuration or flags. An empty name is info.
func ParseLevel(s string) (LogLevel, error) {
	switch name := strings.ToLower(strings.TrimSpace(s)); name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	default:
		if _, ok := zerologLevels[LogLevel(name)]; ok {
			return LogLevel(name), nil
		}
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// zerologLevel converts the level, falling back to info for unknown names.
func (l LogLevel) zerologLevel() zerolog.Level {
	level, err := ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zerologLevels[level]
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Every page request (strategy, request number, variables)
//   - Every page received (items, total_items, has_next_page)
//   - Probe cache operations (hit/miss, key, TTL)
//
// Info: Normal operation events
//   - Fetch completed (requests, items, duration)
//   - Empty root (the root lookup matched nothing)
//   - Probe recommendations
//   - Metrics server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Non-2xx responses and GraphQL errors from the transport
//   - Probe cache errors (probe runs uncached)
//   - A strategy the endpoint does not support during probing
//
// Error: Error conditions requiring attention
//   - Fetch failed (request number, cause)
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting component
//   - strategy: Pagination strategy (offset, cursor)
//   - request: 1-based request number within a fetch
//   - items / total_items: Items in the page / collected so far
//   - operation: GraphQL operation name
//   - error_class: Error classification (client, server, network, decode, graphql)
//   - duration: Fetch or request duration
