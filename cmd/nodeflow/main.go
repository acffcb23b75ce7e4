// Command nodeflow submits a project file to a nodeflow server and prints the
// job's events until it completes.
//
// Usage:
//
//	nodeflow [-server URL] [-json] project.json
//
// The exit status is 0 when the job completes and 1 when it is terminated.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/internal/server"
	"github.com/leofalp/nodeflow/internal/utils"
)

var errTerminated = errors.New("job terminated")

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "nodeflow server URL")
	raw := flag.Bool("json", false, "print events as JSON lines")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-server URL] [-json] project.json\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, http.DefaultClient, strings.TrimRight(*serverURL, "/"), flag.Arg(0), *raw, os.Stdout)
	if errors.Is(err, errTerminated) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "nodeflow: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *http.Client, serverURL, path string, raw bool, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	parsed, err := project.Parse(data)
	if err != nil {
		return err
	}

	_, response, err := utils.DoPostSync[server.APIResponse](ctx, client, serverURL+"/jobs", "", parsed)
	if err != nil {
		return fmt.Errorf("submitting project: %w", err)
	}
	jobID, _ := response.Data["jobId"].(string)
	if jobID == "" {
		return fmt.Errorf("submitting project: no job id in response")
	}
	if !raw {
		fmt.Fprintf(out, "job %s submitted\n", jobID)
	}

	stream, err := utils.OpenStream(ctx, client, serverURL+"/jobs/"+jobID+"/events", "")
	if err != nil {
		return err
	}
	defer utils.CloseWithLog(stream.Body)

	scanner := utils.NewSSEScanner(stream.Body)
	for {
		sse, err := scanner.Next()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("stream of job %s ended without a final event", jobID)
		}
		if err != nil {
			return fmt.Errorf("reading events: %w", err)
		}

		var event engine.Event
		if err := json.Unmarshal([]byte(sse.Data), &event); err != nil {
			return fmt.Errorf("decoding %s event: %w", sse.Name, err)
		}
		if raw {
			fmt.Fprintln(out, sse.Data)
		} else {
			printEvent(out, event)
		}

		switch event.Kind {
		case engine.EventDone:
			return nil
		case engine.EventTerminate:
			return errTerminated
		}
	}
}

func printEvent(out io.Writer, event engine.Event) {
	switch event.Kind {
	case engine.EventNotification:
		if event.Notification == nil {
			return
		}
		prefix := strings.ToUpper(string(event.Notification.Level))
		if event.Notification.NodeID != "" {
			prefix += " " + event.Notification.NodeID
		}
		fmt.Fprintf(out, "[%s] %s\n", prefix, event.Notification.Message)
	case engine.EventDone:
		fmt.Fprintln(out, "job completed")
		fmt.Fprintln(out, utils.JSONToString(event.Artifacts, true))
	case engine.EventTerminate:
		fmt.Fprintf(out, "job terminated (%s): %s\n", event.Code, event.Reason)
	}
}
