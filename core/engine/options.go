package engine

import (
	"time"

	"github.com/leofalp/nodeflow/core/convert"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/providers/observability"
	"github.com/leofalp/nodeflow/providers/store"
)

const (
	DefaultHandlerTimeout    = 30 * time.Second
	DefaultFanOutConcurrency = 8
	DefaultReplayBuffer      = 64
	DefaultJobRetention      = 5 * time.Minute
)

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the process-wide node registry. Jobs read it through a
// private scope.
func WithRegistry(registry *node.Registry) Option {
	return func(e *Engine) {
		e.registry = registry
	}
}

// WithConverters sets the converter registry used along edges.
func WithConverters(converters *convert.Registry) Option {
	return func(e *Engine) {
		e.converters = converters
	}
}

// WithObserver enables tracing, metrics and logging.
func WithObserver(observer observability.Provider) Option {
	return func(e *Engine) {
		e.observer = observer
	}
}

// WithStore sets where job records are persisted.
func WithStore(provider store.Provider) Option {
	return func(e *Engine) {
		e.store = provider
	}
}

// WithHandlerTimeout bounds every handler call. Zero disables the bound.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.handlerTimeout = timeout
	}
}

// WithFanOutConcurrency bounds the handler calls running at once for one
// fanned-out node.
func WithFanOutConcurrency(workers int) Option {
	return func(e *Engine) {
		if workers > 0 {
			e.fanOutConcurrency = workers
		}
	}
}

// WithReplayBuffer sets how many events a job keeps while nobody listens.
func WithReplayBuffer(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.replayBuffer = size
		}
	}
}

// WithJobRetention sets how long a finished job stays reachable through
// Engine.Job. A non-positive value drops it as soon as it finishes.
func WithJobRetention(retention time.Duration) Option {
	return func(e *Engine) {
		e.jobRetention = retention
	}
}
