// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel = "PICAMD_LOG_LEVEL"
	EnvLogJSON  = "PICAMD_LOG_JSON"
)

var configureOnce sync.Once

// Setup installs the global logger. level comes from configuration; the
// PICAMD_LOG_LEVEL and PICAMD_LOG_JSON environment variables override it.
// The returned logger is also stored in zerolog's global log.Logger.
func Setup(level string) zerolog.Logger {
	configureOnce.Do(func() {
		lvl, ok := parseLevel(os.Getenv(EnvLogLevel))
		if !ok {
			if lvl, ok = parseLevel(level); !ok {
				lvl = zerolog.InfoLevel
			}
		}

		var out = os.Stderr
		logger := zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		})
		if isTruthy(os.Getenv(EnvLogJSON)) {
			logger = zerolog.New(out)
		}
		log.Logger = logger.Level(lvl).With().Timestamp().Logger()
	})
	return log.Logger
}

// SetupTests installs a quiet logger for package tests.
func SetupTests() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel)
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	default:
		return zerolog.NoLevel, false
	}
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
