package utils

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type formMeta struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestDoGetSync_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(formMeta{ID: "f1", Title: "Signup"})
	}))
	defer server.Close()

	response, form, err := DoGetSync[formMeta](context.Background(), nil, server.URL, "secret")
	if err != nil {
		t.Fatalf("DoGetSync() error: %v", err)
	}
	if response.StatusCode != http.StatusOK || form.Title != "Signup" {
		t.Errorf("unexpected result: %d %+v", response.StatusCode, form)
	}
}

func TestDoPostSync_SendsJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("empty token should not send Authorization")
		}
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"echo","title":` + strings.TrimSpace(string(body)) + `}`))
	}))
	defer server.Close()

	_, form, err := DoPostSync[formMeta](context.Background(), server.Client(), server.URL, "", "hello")
	if err != nil {
		t.Fatalf("DoPostSync() error: %v", err)
	}
	if form.Title != "hello" {
		t.Errorf("Title = %q, want hello", form.Title)
	}
}

func TestDoJSON_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "form not found", http.StatusNotFound)
	}))
	defer server.Close()

	response, form, err := DoGetSync[formMeta](context.Background(), nil, server.URL, "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if form != nil || response.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected result: %v %+v", response.StatusCode, form)
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "form not found") {
		t.Errorf("error should carry status and body: %v", err)
	}
}

func TestDoJSON_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	_, _, err := DoGetSync[formMeta](context.Background(), nil, server.URL, "")
	if err == nil || !strings.Contains(err.Error(), "decoding response") {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestDoGetText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<h1>Invoice</h1>"))
	}))
	defer server.Close()

	text, err := DoGetText(context.Background(), nil, server.URL, "tok")
	if err != nil {
		t.Fatal(err)
	}
	if text != "<h1>Invoice</h1>" {
		t.Errorf("DoGetText() = %q", text)
	}
}

func TestDoJSON_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := DoGetSync[formMeta](ctx, nil, server.URL, ""); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

type failingCloser struct{}

func (failingCloser) Close() error { return io.ErrClosedPipe }

func TestCloseWithLog(t *testing.T) {
	CloseWithLog(nil)
	CloseWithLog(failingCloser{})
}
