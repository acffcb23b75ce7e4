package slogobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/leofalp/nodeflow/providers/observability"
)

func newTestObserver(buf *bytes.Buffer, level slog.Level) *Observer {
	return New(WithFormat(FormatCompact), WithLevel(level), WithOutput(buf), WithColors(false))
}

func TestObserver_SpanLifecycle(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, slog.LevelDebug)

	ctx, span := observer.StartSpan(context.Background(), observability.SpanNodeEvaluate,
		observability.String(observability.AttrNodeID, "add"))
	if observability.SpanFromContext(ctx) != span {
		t.Fatal("StartSpan should store the span in the returned context")
	}
	span.AddEvent(observability.EventHandlerInvoked)
	span.SetStatus(observability.StatusOK, "")
	span.End()

	output := buf.String()
	for _, want := range []string{"span started", "span event", "span ended", `"node.id":"add"`, `"status":"ok"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestObserver_FailedSpanEndsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, slog.LevelWarn)

	_, span := observer.StartSpan(context.Background(), observability.SpanJobRun)
	span.RecordError(errors.New("boom"))
	span.End()

	if !strings.Contains(buf.String(), "span ended") || !strings.Contains(buf.String(), "boom") {
		t.Errorf("failed span should be visible at WARN, got: %s", buf.String())
	}
}

func TestObserver_CounterAccumulates(t *testing.T) {
	var buf bytes.Buffer
	observer := newTestObserver(&buf, slog.LevelInfo)

	counter := observer.Counter(observability.MetricNodeCount)
	counter.Add(context.Background(), 2)
	observer.Counter(observability.MetricNodeCount).Add(context.Background(), 3)

	if got := counter.(*slogCounter).Value(); got != 5 {
		t.Errorf("counter value = %d, want 5", got)
	}
	if observer.Histogram("h") != observer.Histogram("h") {
		t.Error("histograms with the same name should be shared")
	}
}

func TestObserver_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	observer := New(WithLogger(logger))

	observer.Info(context.Background(), "hello", observability.String("k", "v"))

	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("expected text handler output, got: %s", buf.String())
	}
	if observer.Logger() != logger {
		t.Error("Logger() should return the provided logger")
	}
}
