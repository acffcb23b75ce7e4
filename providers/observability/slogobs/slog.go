package slogobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leofalp/nodeflow/providers/observability"
)

// Observer implements observability.Provider by writing everything to a slog.Logger.
type Observer struct {
	logger  *slog.Logger
	metrics *metricsStore
}

var _ observability.Provider = (*Observer)(nil)

// New creates an Observer. Without options it reads format and level from the
// environment and writes compact lines to stderr.
//
//	observer := slogobs.New(
//	    slogobs.WithFormat(slogobs.FormatJSON),
//	    slogobs.WithLevel(slog.LevelDebug),
//	)
func New(opts ...Option) *Observer {
	cfg := applyOptions(opts...)

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(NewHandler(&HandlerOptions{
			Format: cfg.format,
			Level:  cfg.level,
			Output: cfg.output,
			Colors: cfg.colors,
		}))
	}

	return &Observer{
		logger:  logger,
		metrics: &metricsStore{counters: map[string]*slogCounter{}, histograms: map[string]*slogHistogram{}},
	}
}

// Logger exposes the underlying slog.Logger, e.g. for HTTP middleware.
func (observer *Observer) Logger() *slog.Logger {
	return observer.logger
}

// --- TRACING ---

// StartSpan logs the span start at DEBUG and stores the span in the returned context.
func (observer *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		name:   name,
		start:  time.Now(),
		logger: observer.logger,
		attrs:  append([]observability.Attribute(nil), attrs...),
	}
	observer.logger.LogAttrs(ctx, slog.LevelDebug, "span started",
		append([]slog.Attr{slog.String("span", name)}, toSlog(attrs)...)...)
	return observability.ContextWithSpan(ctx, span), span
}

type slogSpan struct {
	name   string
	start  time.Time
	logger *slog.Logger

	mu     sync.Mutex
	attrs  []observability.Attribute
	failed bool
}

// End logs the span duration and accumulated attributes. Spans that recorded
// an error or an error status end at WARN, others at DEBUG.
func (span *slogSpan) End() {
	span.mu.Lock()
	attrs := append([]slog.Attr{
		slog.String("span", span.name),
		slog.Duration("duration", time.Since(span.start)),
	}, toSlog(span.attrs)...)
	level := slog.LevelDebug
	if span.failed {
		level = slog.LevelWarn
	}
	span.mu.Unlock()

	span.logger.LogAttrs(context.Background(), level, "span ended", attrs...)
}

func (span *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	span.mu.Lock()
	defer span.mu.Unlock()
	span.attrs = append(span.attrs, attrs...)
}

func (span *slogSpan) SetStatus(code observability.StatusCode, description string) {
	span.mu.Lock()
	defer span.mu.Unlock()

	status := "unset"
	switch code {
	case observability.StatusOK:
		status = "ok"
	case observability.StatusError:
		status = "error"
		span.failed = true
	}
	span.attrs = append(span.attrs, observability.String(observability.AttrStatus, status))
	if description != "" {
		span.attrs = append(span.attrs, observability.String(observability.AttrStatusDescription, description))
	}
}

func (span *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	span.mu.Lock()
	span.failed = true
	span.attrs = append(span.attrs, observability.Error(err))
	span.mu.Unlock()

	span.logger.LogAttrs(context.Background(), slog.LevelDebug, "span error",
		slog.String("span", span.name), slog.String(observability.AttrError, err.Error()))
}

func (span *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	span.logger.LogAttrs(context.Background(), slog.LevelDebug, "span event",
		append([]slog.Attr{slog.String("span", span.name), slog.String("event", name)}, toSlog(attrs)...)...)
}

// --- METRICS ---

// Counter returns the named counter, creating it on first use.
func (observer *Observer) Counter(name string) observability.Counter {
	return observer.metrics.counter(name, observer.logger)
}

// Histogram returns the named histogram, creating it on first use.
func (observer *Observer) Histogram(name string) observability.Histogram {
	return observer.metrics.histogram(name, observer.logger)
}

type metricsStore struct {
	mu         sync.RWMutex
	counters   map[string]*slogCounter
	histograms map[string]*slogHistogram
}

func (store *metricsStore) counter(name string, logger *slog.Logger) *slogCounter {
	store.mu.RLock()
	counter, ok := store.counters[name]
	store.mu.RUnlock()
	if ok {
		return counter
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if counter, ok := store.counters[name]; ok {
		return counter
	}
	counter = &slogCounter{name: name, logger: logger}
	store.counters[name] = counter
	return counter
}

func (store *metricsStore) histogram(name string, logger *slog.Logger) *slogHistogram {
	store.mu.RLock()
	histogram, ok := store.histograms[name]
	store.mu.RUnlock()
	if ok {
		return histogram
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if histogram, ok := store.histograms[name]; ok {
		return histogram
	}
	histogram = &slogHistogram{name: name, logger: logger}
	store.histograms[name] = histogram
	return histogram
}

type slogCounter struct {
	name   string
	logger *slog.Logger
	mu     sync.Mutex
	value  int64
}

// Add increments the counter and logs the running total at DEBUG.
func (counter *slogCounter) Add(ctx context.Context, value int64, attrs ...observability.Attribute) {
	counter.mu.Lock()
	counter.value += value
	total := counter.value
	counter.mu.Unlock()

	counter.logger.LogAttrs(ctx, slog.LevelDebug, "counter",
		append([]slog.Attr{
			slog.String("metric", counter.name),
			slog.Int64("value", total),
			slog.Int64("delta", value),
		}, toSlog(attrs)...)...)
}

// Value returns the running total.
func (counter *slogCounter) Value() int64 {
	counter.mu.Lock()
	defer counter.mu.Unlock()
	return counter.value
}

type slogHistogram struct {
	name   string
	logger *slog.Logger
}

// Record logs one observation at DEBUG.
func (histogram *slogHistogram) Record(ctx context.Context, value float64, attrs ...observability.Attribute) {
	histogram.logger.LogAttrs(ctx, slog.LevelDebug, "histogram",
		append([]slog.Attr{
			slog.String("metric", histogram.name),
			slog.Float64("value", value),
		}, toSlog(attrs)...)...)
}

// --- LOGGING ---

// Trace logs at LevelTrace, which is filtered out unless explicitly enabled.
func (observer *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.logger.LogAttrs(ctx, LevelTrace, msg, toSlog(attrs)...)
}

func (observer *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.logger.LogAttrs(ctx, slog.LevelDebug, msg, toSlog(attrs)...)
}

func (observer *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.logger.LogAttrs(ctx, slog.LevelInfo, msg, toSlog(attrs)...)
}

func (observer *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.logger.LogAttrs(ctx, slog.LevelWarn, msg, toSlog(attrs)...)
}

func (observer *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	observer.logger.LogAttrs(ctx, slog.LevelError, msg, toSlog(attrs)...)
}

func toSlog(attrs []observability.Attribute) []slog.Attr {
	converted := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		converted = append(converted, slog.Any(attr.Key, attr.Value))
	}
	return converted
}
