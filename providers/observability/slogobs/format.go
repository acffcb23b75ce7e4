package slogobs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Format selects how records are rendered.
type Format string

const (
	// FormatCompact renders one line per record with attributes as a JSON object.
	FormatCompact Format = "compact"
	// FormatPretty renders the message line followed by one indented line per attribute.
	FormatPretty Format = "pretty"
	// FormatJSON renders every record as a single JSON object.
	FormatJSON Format = "json"
)

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// ParseFormat maps a case-insensitive name to a Format. Unknown names yield FormatCompact.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPretty:
		return FormatPretty
	case FormatJSON:
		return FormatJSON
	default:
		return FormatCompact
	}
}

// GetFormatFromEnv reads NODEFLOW_LOG_FORMAT, then LOG_FORMAT.
func GetFormatFromEnv() Format {
	return ParseFormat(firstEnv("NODEFLOW_LOG_FORMAT", "LOG_FORMAT"))
}

// LevelTrace sits below slog.LevelDebug and is used by Observer.Trace.
const LevelTrace = slog.LevelDebug - 4

// GetLogLevelFromEnv reads NODEFLOW_LOG_LEVEL, then LOG_LEVEL. Default is INFO.
func GetLogLevelFromEnv() slog.Level {
	level := firstEnv("NODEFLOW_LOG_LEVEL", "LOG_LEVEL")
	if level == "" {
		return slog.LevelInfo
	}
	return ParseLogLevel(level)
}

// ParseLogLevel maps TRACE, DEBUG, INFO, WARN/WARNING and ERROR (any case) to a
// slog.Level. Unknown values print a warning to stderr and yield INFO.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Warning: unknown log level %q, using INFO\n", level)
		return slog.LevelInfo
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
