package slogobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// Handler is a slog.Handler that renders records in one of the Format layouts.
// Handlers derived through WithAttrs and WithGroup share the parent's writer lock.
type Handler struct {
	format Format
	level  slog.Leveler
	output io.Writer
	colors bool
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string
}

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	Format Format
	Level  slog.Leveler
	Output io.Writer
	// Colors enables ANSI colors. When false and Output is a terminal, colors
	// are turned on automatically for non-JSON formats.
	Colors bool
}

// NewHandler builds a Handler, defaulting to compact output on stderr at INFO.
func NewHandler(opts *HandlerOptions) *Handler {
	if opts == nil {
		opts = &HandlerOptions{}
	}
	handler := &Handler{
		format: opts.Format,
		level:  opts.Level,
		output: opts.Output,
		colors: opts.Colors,
		mu:     &sync.Mutex{},
	}
	if handler.format == "" {
		handler.format = FormatCompact
	}
	if handler.level == nil {
		handler.level = slog.LevelInfo
	}
	if handler.output == nil {
		handler.output = os.Stderr
	}
	if !handler.colors && handler.format != FormatJSON {
		if file, ok := handler.output.(*os.File); ok {
			handler.colors = isTerminal(file)
		}
	}
	return handler
}

var _ slog.Handler = (*Handler)(nil)

// Enabled reports whether level passes the configured minimum.
func (handler *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level.Level()
}

// Handle renders and writes one record.
func (handler *Handler) Handle(_ context.Context, record slog.Record) error {
	fields := handler.fields(record)

	var line []byte
	var err error
	switch handler.format {
	case FormatJSON:
		line, err = handler.renderJSON(record, fields)
	case FormatPretty:
		line = handler.renderPretty(record, fields)
	default:
		line = handler.renderCompact(record, fields)
	}
	if err != nil {
		return err
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	_, err = handler.output.Write(line)
	return err
}

// WithAttrs returns a handler that adds attrs to every record.
func (handler *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *handler
	clone.attrs = make([]slog.Attr, 0, len(handler.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, handler.attrs...)
	for _, attr := range attrs {
		attr.Key = handler.prefix + attr.Key
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

// WithGroup returns a handler that prefixes subsequent keys with "name.".
func (handler *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return handler
	}
	clone := *handler
	clone.prefix = handler.prefix + name + "."
	return &clone
}

func (handler *Handler) fields(record slog.Record) map[string]any {
	fields := make(map[string]any, len(handler.attrs)+record.NumAttrs())
	for _, attr := range handler.attrs {
		fields[attr.Key] = attr.Value.Resolve().Any()
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields[handler.prefix+attr.Key] = attr.Value.Resolve().Any()
		return true
	})
	return fields
}

func (handler *Handler) levelLabel(level slog.Level, width int) string {
	label := levelString(level)
	if width > 0 {
		label = fmt.Sprintf("%*s", width, label)
	}
	if !handler.colors {
		return label
	}
	return colorForLevel(level) + label + colorReset
}

// renderCompact: "2006-01-02 15:04:05  INFO message {"key":"value"}".
func (handler *Handler) renderCompact(record slog.Record, fields map[string]any) []byte {
	var builder strings.Builder
	builder.WriteString(record.Time.Format("2006-01-02 15:04:05"))
	builder.WriteByte(' ')
	builder.WriteString(handler.levelLabel(record.Level, 5))
	builder.WriteByte(' ')
	builder.WriteString(record.Message)
	if len(fields) > 0 {
		encoded, err := json.Marshal(fields)
		if err != nil {
			builder.WriteString(" [unencodable attributes]")
		} else {
			builder.WriteByte(' ')
			builder.Write(encoded)
		}
	}
	builder.WriteByte('\n')
	return []byte(builder.String())
}

// renderPretty writes the header line and then "    key: value" per attribute, keys sorted.
func (handler *Handler) renderPretty(record slog.Record, fields map[string]any) []byte {
	var builder strings.Builder
	builder.WriteString(record.Time.Format("2006-01-02 15:04:05"))
	builder.WriteString(" [")
	builder.WriteString(handler.levelLabel(record.Level, 0))
	builder.WriteString("] ")
	builder.WriteString(record.Message)
	builder.WriteByte('\n')

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&builder, "    %s: %v\n", key, fields[key])
	}
	return []byte(builder.String())
}

func (handler *Handler) renderJSON(record slog.Record, fields map[string]any) ([]byte, error) {
	document := make(map[string]any, len(fields)+3)
	for key, value := range fields {
		document[key] = value
	}
	document["time"] = record.Time.Format("2006-01-02T15:04:05.000Z07:00")
	document["level"] = levelString(record.Level)
	document["msg"] = record.Message

	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encoding log record: %w", err)
	}
	return append(encoded, '\n'), nil
}

func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "TRACE"
	case level < slog.LevelInfo:
		return "DEBUG"
	case level < slog.LevelWarn:
		return "INFO"
	case level < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

func colorForLevel(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return colorGray
	case level < slog.LevelInfo:
		return colorBlue
	case level < slog.LevelWarn:
		return colorGreen
	case level < slog.LevelError:
		return colorYellow
	default:
		return colorRed
	}
}

func isTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
