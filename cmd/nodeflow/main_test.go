package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/internal/server"
	"github.com/leofalp/nodeflow/providers/builtin"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := engine.New()
	if err := builtin.Register(e); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	httpServer := httptest.NewServer(server.New(e).Handler())
	t.Cleanup(httpServer.Close)
	return httpServer
}

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "project.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing project: %v", err)
	}
	return path
}

func TestRun_Completes(t *testing.T) {
	httpServer := newServer(t)
	// Unquoted keys are repaired before submission.
	path := writeProject(t, `{nodes: [{id: 'len', type: 'array-length', terminator: true, inputs: {array: [1, 2, 3]}}]}`)

	var out bytes.Buffer
	if err := run(context.Background(), httpServer.Client(), httpServer.URL, path, false, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "job completed") || !strings.Contains(output, `"length": 3`) {
		t.Fatalf("unexpected output:\n%s", output)
	}
}

func TestRun_Terminated(t *testing.T) {
	httpServer := newServer(t)
	path := writeProject(t, `{"nodes": [{"id": "sum", "type": "math-add", "terminator": true,
		"inputs": {"inA": {"kind": "dependent", "node": "ghost", "field": "value"}}}]}`)

	var out bytes.Buffer
	err := run(context.Background(), httpServer.Client(), httpServer.URL, path, true, &out)
	if !errors.Is(err, errTerminated) {
		t.Fatalf("expected errTerminated, got %v", err)
	}
	if !strings.Contains(out.String(), `"kind":"terminate"`) {
		t.Fatalf("expected a raw terminate event, got:\n%s", out.String())
	}
}

func TestRun_InvalidProject(t *testing.T) {
	httpServer := newServer(t)
	path := writeProject(t, `{"nodes": [{"id": "", "type": ""}]}`)

	if err := run(context.Background(), httpServer.Client(), httpServer.URL, path, false, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an invalid project error")
	}
	if err := run(context.Background(), httpServer.Client(), httpServer.URL, filepath.Join(t.TempDir(), "missing.json"), false, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, engine.Event{Kind: engine.EventNotification, Notification: &engine.Notification{Level: engine.LevelWarn, NodeID: "n1", Message: "careful"}})
	printEvent(&out, engine.Event{Kind: engine.EventTerminate, Code: engine.CodeCycleDetected, Reason: "loop"})

	want := "[WARN n1] careful\njob terminated (cycle_detected): loop\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
}
