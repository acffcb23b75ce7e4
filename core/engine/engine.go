package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leofalp/nodeflow/core/convert"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/providers/observability"
	"github.com/leofalp/nodeflow/providers/store"
	"github.com/leofalp/nodeflow/providers/store/inmemory"
)

// ErrJobNotFound is returned for ids the engine does not know.
var ErrJobNotFound = errors.New("engine: job not found")

// Engine owns the process-wide node vocabulary and the jobs submitted to it.
// Handlers, definitions and integrations are registered at startup; after
// that the tables are only read.
type Engine struct {
	registry   *node.Registry
	converters *convert.Registry
	observer   observability.Provider
	store      store.Provider

	handlerTimeout    time.Duration
	fanOutConcurrency int
	replayBuffer      int
	jobRetention      time.Duration

	mu           sync.RWMutex
	handlers     map[string]Handler
	integrations map[string]Integration
	jobs         map[string]*Job
}

// New returns an engine. Without options it has an empty registry, the
// builtin converters and an in-memory job store.
func New(opts ...Option) *Engine {
	e := &Engine{
		handlerTimeout:    DefaultHandlerTimeout,
		fanOutConcurrency: DefaultFanOutConcurrency,
		replayBuffer:      DefaultReplayBuffer,
		jobRetention:      DefaultJobRetention,
		handlers:          make(map[string]Handler),
		integrations:      make(map[string]Integration),
		jobs:              make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		e.registry = node.NewRegistry()
	}
	if e.converters == nil {
		var converterOpts []convert.Option
		if e.observer != nil {
			converterOpts = append(converterOpts, convert.WithObserver(e.observer))
		}
		e.converters = convert.NewDefaultRegistry(converterOpts...)
	}
	if e.store == nil {
		e.store = inmemory.New()
	}
	return e
}

// Register adds a definition to the process-wide registry together with its handler.
func (e *Engine) Register(definition *node.Definition, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("engine: nil handler for %s", definition.ID())
	}
	if err := e.registry.Register(definition); err != nil {
		return err
	}
	e.mu.Lock()
	e.handlers[definition.ID()] = handler
	e.mu.Unlock()
	return nil
}

// RegisterHandler attaches a handler to an already registered node type.
func (e *Engine) RegisterHandler(typeID string, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("engine: nil handler for %s", typeID)
	}
	if _, err := e.registry.Lookup(typeID); err != nil {
		return err
	}
	e.mu.Lock()
	e.handlers[typeID] = handler
	e.mu.Unlock()
	return nil
}

// RegisterIntegration makes an integration available to every job.
func (e *Engine) RegisterIntegration(integration Integration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := integration.ID()
	if _, exists := e.integrations[id]; exists {
		return fmt.Errorf("engine: integration %q already registered", id)
	}
	e.integrations[id] = integration
	return nil
}

// Integrations lists the registered integration ids, sorted.
func (e *Engine) Integrations() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]string, 0, len(e.integrations))
	for id := range e.integrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Definitions lists the process-wide node types.
func (e *Engine) Definitions() []*node.Definition {
	return e.registry.Definitions()
}

// Registry returns the process-wide node registry.
func (e *Engine) Registry() *node.Registry {
	return e.registry
}

// Converters returns the converter registry.
func (e *Engine) Converters() *convert.Registry {
	return e.converters
}

// Observer returns the configured provider, or nil.
func (e *Engine) Observer() observability.Provider {
	return e.observer
}

// Submit validates p and creates a job for it. The job does not run until
// Job.Run is called.
func (e *Engine) Submit(ctx context.Context, p *project.Project) (*Job, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil project", project.ErrInvalidProject)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	job := newJob(e, uuid.NewString(), p)
	e.mu.Lock()
	e.jobs[job.ID] = job
	e.mu.Unlock()

	if err := e.store.Save(ctx, job.Record()); err != nil {
		e.forget(job.ID)
		return nil, fmt.Errorf("engine: persist job: %w", err)
	}

	if e.observer != nil {
		e.observer.Info(ctx, "Job submitted",
			observability.String(observability.AttrJobID, job.ID),
			observability.Int(observability.AttrJobNodeCount, len(p.Nodes)),
		)
	}
	return job, nil
}

// Job returns a job that is running or finished within the retention window.
func (e *Engine) Job(id string) (*Job, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	job, ok := e.jobs[id]
	return job, ok
}

// Status returns the record of a job, from memory when the job is still
// held and from the store otherwise.
func (e *Engine) Status(ctx context.Context, id string) (store.Record, error) {
	if job, ok := e.Job(id); ok {
		return job.Record(), nil
	}
	record, err := e.store.Get(ctx, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return store.Record{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return record, err
}

// Terminate stops a held job. It reports false when the job is unknown or
// already finished.
func (e *Engine) Terminate(id, reason string) bool {
	job, ok := e.Job(id)
	if !ok {
		return false
	}
	return job.Terminate(reason)
}

func (e *Engine) handler(typeID string) (Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	handler, ok := e.handlers[typeID]
	return handler, ok
}

func (e *Engine) integration(id string) (Integration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	integration, ok := e.integrations[id]
	return integration, ok
}

// retire drops a finished job after the retention window.
func (e *Engine) retire(id string) {
	if e.jobRetention <= 0 {
		e.forget(id)
		return
	}
	time.AfterFunc(e.jobRetention, func() { e.forget(id) })
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	delete(e.jobs, id)
	e.mu.Unlock()
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	if e.observer == nil {
		return ctx, nil
	}
	return e.observer.StartSpan(ctx, name, attrs...)
}
