package documents

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/providers/builtin"
)

const testToken = "secret"

func newDocumentServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/documents/letter", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Document{ID: "letter", Name: "Welcome letter", Placeholders: []string{"name", "city"}})
	})
	mux.HandleFunc("/documents/letter/content", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<h1>Hello {{ name }}</h1><p>Welcome to <strong>{{city}}</strong>.</p>"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func payload(t *testing.T, baseURL string, documents ...string) json.RawMessage {
	t.Helper()
	encoded, err := json.Marshal(Payload{BaseURL: baseURL, Token: testToken, Documents: documents})
	if err != nil {
		t.Fatalf("encoding payload: %v", err)
	}
	return encoded
}

func TestFill(t *testing.T) {
	got := Fill("<p>{{name}} / {{ name }} / {{other}}</p>", map[string]string{"name": "<Ada>"})
	want := "<p>&lt;Ada&gt; / &lt;Ada&gt; / {{other}}</p>"
	if got != want {
		t.Fatalf("Fill = %q, want %q", got, want)
	}
}

func TestDefine(t *testing.T) {
	server := newDocumentServer(t)
	integration := New()

	resources, err := integration.Resources(context.Background(), payload(t, server.URL, "letter"))
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	if len(resources) != 1 || resources[0].Name != "Welcome letter" {
		t.Fatalf("unexpected resources %#v", resources)
	}

	definition, err := integration.Define(resources[0])
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	if definition.ID() != "documents-letter" || !definition.IsTerminator() {
		t.Fatalf("unexpected definition %#v", definition)
	}
	if got := definition.InputNames(); !reflect.DeepEqual(got, []string{"city", "name"}) {
		t.Fatalf("inputs = %v", got)
	}
	for name, shape := range definition.Inputs {
		if shape.Signature() != "nullable<string>" {
			t.Errorf("input %s = %s, want nullable<string>", name, shape.Signature())
		}
	}
}

func TestDefine_InvalidPlaceholder(t *testing.T) {
	resource := node.Resource{ID: "bad", Metadata: map[string]any{metadataDocument: Document{Placeholders: []string{"has space"}}}}
	if _, err := New().Define(resource); err == nil {
		t.Fatal("expected an error for an invalid placeholder")
	}
}

func TestResources_Errors(t *testing.T) {
	server := newDocumentServer(t)

	if _, err := New().Resources(context.Background(), json.RawMessage(`{}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
	unauthorized := json.RawMessage(`{"baseURL":"` + server.URL + `","documents":["letter"]}`)
	if _, err := New().Resources(context.Background(), unauthorized); err == nil {
		t.Fatal("expected an error without a token")
	}
}

func TestWithBaseURL_RejectsOtherServices(t *testing.T) {
	server := newDocumentServer(t)
	var hits atomic.Int64
	elsewhere := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(elsewhere.Close)
	integration := New(WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	if _, err := integration.Resources(context.Background(), payload(t, elsewhere.URL, "letter")); !errors.Is(err, ErrBaseURLNotAllowed) {
		t.Fatalf("expected ErrBaseURLNotAllowed from Resources, got %v", err)
	}
	definition := &node.Definition{Category: ID, Name: "letter", Resource: "letter"}
	if _, err := integration.Handlers(context.Background(), payload(t, elsewhere.URL, "letter"), []*node.Definition{definition}); !errors.Is(err, ErrBaseURLNotAllowed) {
		t.Fatalf("expected ErrBaseURLNotAllowed from Handlers, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request to the other service, got %d", hits.Load())
	}

	resources, err := integration.Resources(context.Background(), payload(t, "", "letter"))
	if err != nil || len(resources) != 1 {
		t.Fatalf("resources with the configured URL = %v, %v", resources, err)
	}
}

func TestRun_RendersDocument(t *testing.T) {
	server := newDocumentServer(t)
	e := engine.New()
	if err := builtin.Register(e); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	if err := e.RegisterIntegration(New(WithHTTPClient(server.Client()))); err != nil {
		t.Fatalf("register integration: %v", err)
	}

	job, err := e.Submit(context.Background(), &project.Project{
		Integrations: map[string]json.RawMessage{ID: payload(t, server.URL, "letter")},
		Nodes: []*project.Node{
			{ID: "name", Type: "literal-string", Inputs: map[string]project.Entry{"value": project.Independent("Ada")}},
			{ID: "letter", Type: "documents-letter", Inputs: map[string]project.Entry{
				"name": project.Dependent("name", "value"),
				"city": project.Independent("Turin"),
			}},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := map[string]any{
		"name":    "Welcome letter",
		"content": "# Hello Ada\n\nWelcome to **Turin**.",
		"format":  Format,
	}
	if got := job.Artifacts()["letter"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("letter = %#v, want %#v", got, want)
	}
}

func TestRun_WarnsOnEmptyPlaceholder(t *testing.T) {
	server := newDocumentServer(t)
	e := engine.New()
	if err := e.RegisterIntegration(New()); err != nil {
		t.Fatalf("register integration: %v", err)
	}

	job, err := e.Submit(context.Background(), &project.Project{
		Integrations: map[string]json.RawMessage{ID: payload(t, server.URL, "letter")},
		Nodes:        []*project.Node{{ID: "letter", Type: "documents-letter"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	events, err := job.Events()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	warnings := 0
	for event := range events {
		if event.Kind == engine.EventNotification && event.Notification.Level == engine.LevelWarn &&
			strings.HasPrefix(event.Notification.Message, "placeholder") {
			warnings++
		}
	}
	if warnings != 2 {
		t.Fatalf("expected a warning per empty placeholder, got %d", warnings)
	}
}
