package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a JSON logger with a component field attached. The level
// is taken from LOG_LEVEL and defaults to info.
func NewLogger(component string) *slog.Logger {
	return NewLoggerWithLevel(component, ParseLevel(os.Getenv("LOG_LEVEL")))
}

// NewLoggerWithLevel returns a JSON logger writing to stdout at the given level.
func NewLoggerWithLevel(component string, level slog.Level) *slog.Logger {
	return newLogger(os.Stdout, component, level)
}

func newLogger(w io.Writer, component string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	logger := slog.New(handler)
	if component != "" {
		logger = logger.With("component", component)
	}
	return logger
}

// ParseLevel maps a case-insensitive level name to a slog level. Unknown
// values fall back to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func WithRequest(logger *slog.Logger, requestID string) *slog.Logger {
	if logger == nil || requestID == "" {
		return logger
	}
	return logger.With("request_id", requestID)
}

func WithRecipe(logger *slog.Logger, recipeID string) *slog.Logger {
	if logger == nil || recipeID == "" {
		return logger
	}
	return logger.With("recipe_id", recipeID)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
