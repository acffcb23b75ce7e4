package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/leofalp/nodeflow/providers/observability"
)

// maxResponseBodySize caps how much of a response body is read into memory.
const maxResponseBodySize int64 = 10 * 1024 * 1024

// DoJSON sends a request with an optional JSON body and decodes a JSON reply
// into Out. A non-empty token is sent as a bearer Authorization header.
// Non-2xx replies are errors carrying the start of the body.
func DoJSON[Out any](ctx context.Context, client *http.Client, method, url, token string, body any) (*http.Response, *Out, error) {
	response, payload, err := do(ctx, client, method, url, token, "application/json", body)
	if err != nil {
		return response, nil, err
	}

	var decoded Out
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return response, nil, fmt.Errorf("decoding response from %s (status %d): %w; body: %s",
			url, response.StatusCode, err, TruncateString(string(payload), 200))
	}
	return response, &decoded, nil
}

// DoGetSync is DoJSON with GET and no body.
func DoGetSync[Out any](ctx context.Context, client *http.Client, url, token string) (*http.Response, *Out, error) {
	return DoJSON[Out](ctx, client, http.MethodGet, url, token, nil)
}

// DoPostSync is DoJSON with POST.
func DoPostSync[Out any](ctx context.Context, client *http.Client, url, token string, body any) (*http.Response, *Out, error) {
	return DoJSON[Out](ctx, client, http.MethodPost, url, token, body)
}

// DoGetText fetches url and returns the body as text, e.g. an HTML template.
func DoGetText(ctx context.Context, client *http.Client, url, token string) (string, error) {
	_, payload, err := do(ctx, client, http.MethodGet, url, token, "text/html, text/plain, */*", nil)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func do(ctx context.Context, client *http.Client, method, url, token, accept string, body any) (*http.Response, []byte, error) {
	span := observability.SpanFromContext(ctx)
	if client == nil {
		client = http.DefaultClient
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Accept", accept)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPRequestSent,
			observability.String(observability.AttrHTTPMethod, method),
			observability.String(observability.AttrHTTPURL, url),
		)
	}

	start := time.Now()
	response, err := client.Do(request)
	elapsed := time.Since(start)
	if err != nil {
		if span != nil {
			span.AddEvent(observability.EventHTTPRequestFailure,
				observability.Error(err),
				observability.Duration(observability.AttrHTTPDuration, elapsed),
			)
		}
		return response, nil, fmt.Errorf("sending %s %s: %w", method, url, err)
	}
	defer CloseWithLog(response.Body)

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return response, nil, fmt.Errorf("reading response from %s: %w", url, err)
	}

	if span != nil {
		span.AddEvent(observability.EventHTTPResponse,
			observability.Int(observability.AttrHTTPStatusCode, response.StatusCode),
			observability.Int(observability.AttrHTTPResponseBodySize, len(payload)),
			observability.Duration(observability.AttrHTTPDuration, elapsed),
		)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return response, payload, fmt.Errorf("%s %s: non-2xx status %d: %s",
			method, url, response.StatusCode, TruncateString(string(payload), 200))
	}
	return response, payload, nil
}

// CloseWithLog closes closer and logs a failure instead of returning it.
func CloseWithLog(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}
