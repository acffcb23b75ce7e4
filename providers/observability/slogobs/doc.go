// Package slogobs implements observability.Provider on top of log/slog.
//
// Spans, metric updates and log calls all become slog records. The output
// format (compact, pretty or json) and level come from options or from the
// NODEFLOW_LOG_FORMAT / NODEFLOW_LOG_LEVEL environment variables.
package slogobs
