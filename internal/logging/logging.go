// Package logging configures the router's diagnostic stream: one JSON
// object per line on stderr with timestamp, level, component, message,
// and optional metadata. Stdout is reserved for the MCP session.
package logging

import (
	"io"
	"log/slog"
	"time"
)

// Setup builds the process logger. All components derive their loggers
// from this one via For.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	})
	return slog.New(handler)
}

// For returns a logger stamped with a component name.
func For(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// Metadata wraps structured event data under the metadata field.
func Metadata(fields map[string]any) slog.Attr {
	return slog.Any("metadata", fields)
}

// replaceAttr maps slog's default keys onto the log contract: time →
// timestamp (ISO-8601 UTC), level → lowercase info/warn/error, msg →
// message.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
		}
	case slog.LevelKey:
		a.Key = "level"
		level, _ := a.Value.Any().(slog.Level)
		a.Value = slog.StringValue(levelName(level))
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// levelName collapses slog levels onto the contract's three values.
// Debug output shares the info level rather than inventing a fourth.
func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	default:
		return "info"
	}
}
