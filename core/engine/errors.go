package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies job failures.
type Code string

const (
	CodeTypeIncompatible    Code = "type_incompatible"
	CodeMissingDependency   Code = "missing_dependency"
	CodeUnhandledNodeType   Code = "unhandled_node_type"
	CodeAmbiguousGenerators Code = "ambiguous_generators"
	CodeHandlerFailure      Code = "handler_failure"
	CodeConversionFailure   Code = "conversion_failure"
	CodeNoTerminators       Code = "no_terminators"
	CodeCycleDetected       Code = "cycle_detected"
	CodeIntegrationFailure  Code = "integration_failure"
	CodeTerminated          Code = "terminated"
)

// Error is a job failure. Fields names the ports involved, when relevant.
type Error struct {
	Code    Code
	NodeID  string
	Fields  []string
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrTypeIncompatible    = &Error{Code: CodeTypeIncompatible}
	ErrMissingDependency   = &Error{Code: CodeMissingDependency}
	ErrUnhandledNodeType   = &Error{Code: CodeUnhandledNodeType}
	ErrAmbiguousGenerators = &Error{Code: CodeAmbiguousGenerators}
	ErrHandlerFailure      = &Error{Code: CodeHandlerFailure}
	ErrConversionFailure   = &Error{Code: CodeConversionFailure}
	ErrNoTerminators       = &Error{Code: CodeNoTerminators}
	ErrCycleDetected       = &Error{Code: CodeCycleDetected}
	ErrIntegrationFailure  = &Error{Code: CodeIntegrationFailure}
	ErrTerminated          = &Error{Code: CodeTerminated}
)

func (e *Error) Error() string {
	var builder strings.Builder
	builder.WriteString(string(e.Code))
	if e.NodeID != "" {
		builder.WriteString(": node ")
		builder.WriteString(e.NodeID)
	}
	if len(e.Fields) > 0 {
		builder.WriteString(" [")
		builder.WriteString(strings.Join(e.Fields, ", "))
		builder.WriteString("]")
	}
	if e.Message != "" {
		builder.WriteString(": ")
		builder.WriteString(e.Message)
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	return ok && sentinel.Code == e.Code && sentinel.NodeID == "" && sentinel.Message == "" && sentinel.Err == nil
}

func newError(code Code, nodeID string, format string, args ...any) *Error {
	return &Error{Code: code, NodeID: nodeID, Message: fmt.Sprintf(format, args...)}
}

// asError returns err as an *Error, wrapping foreign errors as handler failures.
func asError(err error, nodeID string) *Error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}
	return &Error{Code: CodeHandlerFailure, NodeID: nodeID, Err: err}
}
