package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxSSELineSize bounds a single SSE line. Longer lines make Next fail with
// bufio.ErrTooLong.
const maxSSELineSize = 1024 * 1024

// OpenStream issues a GET for an event stream and returns the response with
// the body open. The caller closes the body. Non-2xx replies are read, closed
// and returned as errors.
func OpenStream(ctx context.Context, client *http.Client, url, token string) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating stream request: %w", err)
	}
	request.Header.Set("Accept", "text/event-stream")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	response, err := client.Do(request)
	if err != nil {
		return response, fmt.Errorf("opening stream %s: %w", url, err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		defer CloseWithLog(response.Body)
		payload, _ := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
		return response, fmt.Errorf("opening stream %s: non-2xx status %d: %s", url, response.StatusCode, TruncateString(string(payload), 200))
	}
	return response, nil
}

// SSEEvent is one dispatched Server-Sent Event.
type SSEEvent struct {
	// Name is the "event:" field, "message" when absent.
	Name string
	Data string
	ID   string
}

// SSEScanner reads events from a text/event-stream body.
type SSEScanner struct {
	scanner *bufio.Scanner
}

// NewSSEScanner wraps reader.
func NewSSEScanner(reader io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELineSize)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next event with data. Comments and events without data
// lines are skipped; multiple data lines are joined with newlines. io.EOF
// marks the end of the stream.
func (sseScanner *SSEScanner) Next() (SSEEvent, error) {
	event := SSEEvent{}
	var data []string

	flush := func() (SSEEvent, bool) {
		if len(data) == 0 {
			event = SSEEvent{}
			return SSEEvent{}, false
		}
		if event.Name == "" {
			event.Name = "message"
		}
		event.Data = strings.Join(data, "\n")
		return event, true
	}

	for sseScanner.scanner.Scan() {
		line := sseScanner.scanner.Text()
		if line == "" {
			if dispatched, ok := flush(); ok {
				return dispatched, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event.Name = value
		case "data":
			data = append(data, value)
		case "id":
			event.ID = value
		}
	}

	if err := sseScanner.scanner.Err(); err != nil {
		return SSEEvent{}, fmt.Errorf("reading event stream: %w", err)
	}
	if dispatched, ok := flush(); ok {
		return dispatched, nil
	}
	return SSEEvent{}, io.EOF
}
