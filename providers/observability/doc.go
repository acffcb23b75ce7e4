// Package observability defines the tracing, metrics and logging contracts used
// across nodeflow. Components accept a Provider and treat a nil Provider as
// "observability disabled", so every call site guards on nil before emitting.
//
// The slogobs subpackage supplies the default implementation on top of log/slog.
package observability
