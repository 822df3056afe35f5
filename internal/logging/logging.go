// Package logging configures the process-wide slog logger. Each binary
// picks its own default level: the CLI stays at error so log lines do
// not tear the terminal UI, the server runs at info. The
// OPENDROP_LOG_LEVEL environment variable overrides either (LOG_LEVEL
// is honored as a fallback name).
package logging

import (
	"log/slog"
	"os"
)

// Init installs a text handler on stderr as the default logger.
func Init(defaultLevel slog.Level) {
	level := defaultLevel
	if l, ok := levelFromEnv(); ok {
		level = l
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

func levelFromEnv() (slog.Level, bool) {
	for _, key := range []string{"OPENDROP_LOG_LEVEL", "LOG_LEVEL"} {
		if v, ok := os.LookupEnv(key); ok {
			if l, ok := parseLevel(v); ok {
				return l, true
			}
		}
	}
	return 0, false
}

func parseLevel(s string) (slog.Level, bool) {
	switch s {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return 0, false
}
