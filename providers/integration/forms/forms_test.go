package forms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/providers/builtin"
)

const testToken = "secret"

func newFormServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/forms/survey", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"id":    "survey",
			"title": "Customer survey",
			"questions": []map[string]any{
				{"id": "name", "title": "Your name", "type": "text"},
				{"id": "age", "title": "Your age", "type": "integer"},
				{"id": "tags", "title": "Pick some", "type": "multipleChoice"},
			},
		})
	})
	mux.HandleFunc("/forms/survey/responses", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(t, w, map[string]any{
				"responses": []map[string]any{
					{"id": "r1", "submittedAt": "2024-03-01T10:00:00Z", "answers": map[string]any{"name": "Ada", "age": 36, "tags": []any{"a"}}},
				},
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"responses": []map[string]any{
				{"id": "r2", "answers": map[string]any{"name": "Grace", "age": "unknown"}},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeJSON(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("encoding response: %v", err)
	}
}

func payload(t *testing.T, baseURL string, forms ...string) json.RawMessage {
	t.Helper()
	encoded, err := json.Marshal(Payload{BaseURL: baseURL, Token: testToken, Forms: forms})
	if err != nil {
		t.Fatalf("encoding payload: %v", err)
	}
	return encoded
}

func TestResources_FetchesMetadata(t *testing.T) {
	server := newFormServer(t)
	integration := New()

	resources, err := integration.Resources(context.Background(), payload(t, server.URL+"/", "survey"))
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	if len(resources) != 1 || resources[0].ID != "survey" || resources[0].Name != "Customer survey" {
		t.Fatalf("unexpected resources %#v", resources)
	}

	definition, err := integration.Define(resources[0])
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	if definition.ID() != "forms-survey" || !definition.IsGenerator() || !definition.Iterable {
		t.Fatalf("unexpected definition %#v", definition)
	}
	want := map[string]string{
		"responseId":  "string",
		"submittedAt": "nullable<date>",
		"name":        "nullable<string>",
		"age":         "nullable<integer>",
		"tags":        "nullable<array<string>>",
	}
	if len(definition.Outputs) != len(want) {
		t.Fatalf("outputs = %v", definition.Outputs)
	}
	for field, signature := range want {
		if got := definition.Outputs[field].Signature(); got != signature {
			t.Errorf("output %s = %s, want %s", field, got, signature)
		}
	}
}

func TestResources_Errors(t *testing.T) {
	server := newFormServer(t)
	integration := New()

	if _, err := integration.Resources(context.Background(), json.RawMessage(`{"forms":["survey"]}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected invalid payload without baseURL, got %v", err)
	}
	if _, err := integration.Resources(context.Background(), json.RawMessage(`[`)); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected invalid payload for malformed JSON, got %v", err)
	}
	if _, err := integration.Resources(context.Background(), payload(t, server.URL, "missing")); err == nil {
		t.Fatal("expected an error for an unknown form")
	}
}

func TestWithBaseURL_RejectsOtherServices(t *testing.T) {
	server := newFormServer(t)
	var hits atomic.Int64
	elsewhere := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(elsewhere.Close)
	integration := New(WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	if _, err := integration.Resources(context.Background(), payload(t, elsewhere.URL, "survey")); !errors.Is(err, ErrBaseURLNotAllowed) {
		t.Fatalf("expected ErrBaseURLNotAllowed from Resources, got %v", err)
	}
	definition := &node.Definition{Category: ID, Name: "survey", Resource: "survey"}
	if _, err := integration.Handlers(context.Background(), payload(t, elsewhere.URL, "survey"), []*node.Definition{definition}); !errors.Is(err, ErrBaseURLNotAllowed) {
		t.Fatalf("expected ErrBaseURLNotAllowed from Handlers, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected no request to the other service, got %d", hits.Load())
	}

	// Repeating the configured URL is fine.
	if _, err := integration.Resources(context.Background(), payload(t, server.URL+"/", "survey")); err != nil {
		t.Fatalf("resources with the configured URL: %v", err)
	}
}

func TestWithBaseURL_FillsPayload(t *testing.T) {
	server := newFormServer(t)
	integration := New(WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	resources, err := integration.Resources(context.Background(), json.RawMessage(`{"forms":["survey"]}`))
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("expected one resource, got %d", len(resources))
	}
}

func TestDefine_RejectsReservedQuestion(t *testing.T) {
	resource := node.Resource{ID: "bad", Metadata: map[string]any{metadataForm: Form{
		Questions: []Question{{ID: "responseId", Type: "text"}},
	}}}
	if _, err := New().Define(resource); !errors.Is(err, ErrReservedQuestion) {
		t.Fatalf("expected reserved question error, got %v", err)
	}
	if _, err := New().Define(node.Resource{ID: "empty"}); err == nil {
		t.Fatal("expected an error for a resource without metadata")
	}
}

func TestQuestionShape(t *testing.T) {
	cases := map[string]string{
		"text":           "nullable<string>",
		"choice":         "nullable<string>",
		"number":         "nullable<number>",
		"Integer":        "nullable<integer>",
		"boolean":        "nullable<boolean>",
		"date":           "nullable<date>",
		"multipleChoice": "nullable<array<string>>",
	}
	for questionType, want := range cases {
		if got := questionShape(questionType).Signature(); got != want {
			t.Errorf("questionShape(%q) = %s, want %s", questionType, got, want)
		}
	}
}

func TestRun_IteratesResponses(t *testing.T) {
	server := newFormServer(t)
	e := engine.New()
	if err := builtin.Register(e); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	if err := e.RegisterIntegration(New()); err != nil {
		t.Fatalf("register integration: %v", err)
	}

	job, err := e.Submit(context.Background(), &project.Project{
		Integrations: map[string]json.RawMessage{ID: payload(t, server.URL, "survey")},
		Nodes: []*project.Node{
			{ID: "survey", Type: "forms-survey"},
			{ID: "names", Type: "output-value", Terminator: true, Inputs: map[string]project.Entry{"value": project.Dependent("survey", "name")}},
			{ID: "ages", Type: "output-value", Terminator: true, Inputs: map[string]project.Entry{"value": project.Dependent("survey", "age")}},
			{ID: "submitted", Type: "output-value", Terminator: true, Inputs: map[string]project.Entry{"value": project.Dependent("survey", "submittedAt")}},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	artifacts := job.Artifacts()
	wantNames := []any{map[string]any{"value": "Ada"}, map[string]any{"value": "Grace"}}
	if !reflect.DeepEqual(artifacts["names"], wantNames) {
		t.Fatalf("names = %#v, want %#v", artifacts["names"], wantNames)
	}
	wantAges := []any{map[string]any{"value": int64(36)}, map[string]any{"value": nil}}
	if !reflect.DeepEqual(artifacts["ages"], wantAges) {
		t.Fatalf("ages = %#v, want %#v", artifacts["ages"], wantAges)
	}
	wantSubmitted := []any{
		map[string]any{"value": time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		map[string]any{"value": nil},
	}
	if !reflect.DeepEqual(artifacts["submitted"], wantSubmitted) {
		t.Fatalf("submitted = %#v, want %#v", artifacts["submitted"], wantSubmitted)
	}
}

func TestHandler_Unauthorized(t *testing.T) {
	server := newFormServer(t)
	integration := New()
	definition := &node.Definition{Category: ID, Name: "survey", Resource: "survey", Outputs: map[string]typemodel.Shape{"responseId": typemodel.String}}

	handlers, err := integration.Handlers(context.Background(), json.RawMessage(`{"baseURL":"`+server.URL+`","token":"wrong"}`), []*node.Definition{definition})
	if err != nil {
		t.Fatalf("handlers: %v", err)
	}
	handler := handlers["forms-survey"]
	if handler == nil {
		t.Fatal("expected a handler for forms-survey")
	}
	if _, err := handler.Handle(context.Background(), &engine.Invocation{Definition: definition}); err == nil {
		t.Fatal("expected an error for a rejected token")
	}
}
