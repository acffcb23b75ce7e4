package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/providers/observability"
	"github.com/leofalp/nodeflow/providers/store"
)

// State is the lifecycle position of a job.
type State string

const (
	StateCreated    State = "created"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateTerminated State = "terminated"
)

// Job is one execution of a project. Results are cached per node for the
// lifetime of the job, so every node runs at most once per job.
type Job struct {
	ID      string
	Project *project.Project

	engine     *Engine
	nodes      map[string]*project.Node
	session    *session
	processing atomic.Bool
	createdAt  time.Time
	done       chan struct{}

	mu        sync.Mutex
	state     State
	reason    string
	code      Code
	err       error
	artifacts map[string]any
	updatedAt time.Time
	cancel    context.CancelFunc

	prepareOnce    sync.Once
	prepareErr     error
	registry       *node.Registry
	handlers       map[string]Handler
	templates      map[string]string
	definitions    map[string]*node.Definition
	definitionErrs map[string]error

	resultsMu sync.RWMutex
	results   map[string]*Output
	flight    singleflight.Group
}

func newJob(e *Engine, id string, p *project.Project) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        id,
		Project:   p,
		engine:    e,
		nodes:     p.Index(),
		session:   newSession(e.replayBuffer),
		createdAt: now,
		updatedAt: now,
		done:      make(chan struct{}),
		state:     StateCreated,
		results:   make(map[string]*Output),
	}
}

// State returns the current state.
func (job *Job) State() State {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.state
}

// Done is closed once the job completes or is terminated.
func (job *Job) Done() <-chan struct{} {
	return job.done
}

// Err returns why the job was terminated, or nil.
func (job *Job) Err() error {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.err
}

// Artifacts returns the aggregated terminator outputs of a completed job,
// keyed by terminator node id.
func (job *Job) Artifacts() map[string]any {
	job.mu.Lock()
	defer job.mu.Unlock()
	return maps.Clone(job.artifacts)
}

// Record returns the persisted view of the job.
func (job *Job) Record() store.Record {
	job.mu.Lock()
	defer job.mu.Unlock()
	return store.Record{
		ID:        job.ID,
		ProjectID: job.Project.ID,
		State:     string(job.state),
		Reason:    job.reason,
		Code:      string(job.code),
		Artifacts: maps.Clone(job.artifacts),
		CreatedAt: job.createdAt,
		UpdatedAt: job.updatedAt,
	}
}

// Events attaches the single subscriber. Events emitted before attaching are
// replayed first. The channel is closed after the done or terminate event,
// or when Detach is called.
func (job *Job) Events() (<-chan Event, error) {
	return job.session.attach()
}

// Detach releases a subscriber obtained from Events.
func (job *Job) Detach(events <-chan Event) {
	job.session.detach(events)
}

// Run executes the job: integration setup, preflight, then every terminator
// concurrently. Calling Run again, or concurrently, waits for the first run
// and returns its outcome.
func (job *Job) Run(ctx context.Context) error {
	if !job.processing.CompareAndSwap(false, true) {
		select {
		case <-job.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		return job.Err()
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	job.mu.Lock()
	if job.state != StateCreated {
		job.mu.Unlock()
		return job.Err()
	}
	job.state = StateRunning
	job.cancel = cancel
	job.updatedAt = time.Now().UTC()
	job.mu.Unlock()
	job.persist(ctx)

	e := job.engine
	runCtx, span := e.startSpan(runCtx, observability.SpanJobRun,
		observability.String(observability.AttrJobID, job.ID),
		observability.Int(observability.AttrJobNodeCount, len(job.nodes)),
	)
	if e.observer != nil {
		runCtx = observability.ContextWithObserver(runCtx, e.observer)
	}
	start := time.Now()

	artifacts, err := job.execute(runCtx)
	if err != nil {
		job.fail(err)
	} else {
		job.complete(artifacts)
	}

	if span != nil {
		span.SetAttributes(observability.String(observability.AttrJobState, string(job.State())))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, err.Error())
		} else {
			span.SetAttributes(observability.Int(observability.AttrJobArtifacts, len(artifacts)))
			span.SetStatus(observability.StatusOK, "")
		}
		span.End()
	}
	if e.observer != nil {
		state := observability.String(observability.AttrJobState, string(job.State()))
		e.observer.Counter(observability.MetricJobCount).Add(ctx, 1, state)
		e.observer.Histogram(observability.MetricJobDuration).Record(ctx, time.Since(start).Seconds(), state)
	}
	return job.Err()
}

func (job *Job) execute(ctx context.Context) (map[string]any, error) {
	if err := job.prepare(ctx); err != nil {
		return nil, err
	}

	terminators := job.terminators()
	if len(terminators) == 0 {
		return nil, &Error{Code: CodeNoTerminators, Message: "nothing to execute"}
	}
	if span := observability.SpanFromContext(ctx); span != nil {
		span.SetAttributes(observability.Strings(observability.AttrJobTerminators, terminators))
	}
	if err := job.preflight(ctx, terminators); err != nil {
		return nil, err
	}

	outputs := make([]*Output, len(terminators))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, id := range terminators {
		group.Go(func() error {
			output, err := job.evaluate(groupCtx, id)
			outputs[i] = output
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	artifacts := make(map[string]any, len(terminators))
	for i, id := range terminators {
		artifacts[id] = outputs[i].Value()
	}
	return artifacts, nil
}

// Evaluate computes one node and everything it depends on, with the same
// checks Run applies to terminators. Results are shared with Run.
func (job *Job) Evaluate(ctx context.Context, nodeID string) (*Output, error) {
	if err := job.prepare(ctx); err != nil {
		return nil, err
	}
	if err := job.preflight(ctx, []string{nodeID}); err != nil {
		return nil, err
	}
	return job.evaluate(ctx, nodeID)
}

// Terminate stops the job with reason. Running handlers see their context
// cancelled. It reports false when the job already finished.
func (job *Job) Terminate(reason string) bool {
	if reason == "" {
		reason = "terminated by request"
	}
	return job.finish(StateTerminated, reason, CodeTerminated, &Error{Code: CodeTerminated, Message: reason}, nil)
}

func (job *Job) fail(err error) {
	var engineErr *Error
	if !errors.As(err, &engineErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			engineErr = &Error{Code: CodeTerminated, Err: err}
		} else {
			engineErr = asError(err, "")
		}
	}
	job.finish(StateTerminated, engineErr.Error(), engineErr.Code, engineErr, nil)
}

func (job *Job) complete(artifacts map[string]any) {
	job.finish(StateCompleted, "", "", nil, artifacts)
}

// finish moves the job to a final state exactly once, then emits the
// terminal event and persists the record.
func (job *Job) finish(state State, reason string, code Code, err error, artifacts map[string]any) bool {
	job.mu.Lock()
	if job.state == StateCompleted || job.state == StateTerminated {
		job.mu.Unlock()
		return false
	}
	job.state = state
	job.reason = reason
	job.code = code
	job.err = err
	job.artifacts = artifacts
	job.updatedAt = time.Now().UTC()
	cancel := job.cancel
	job.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	event := Event{Kind: EventDone, Time: time.Now().UTC(), Artifacts: artifacts}
	if state == StateTerminated {
		event = Event{Kind: EventTerminate, Time: time.Now().UTC(), Reason: reason, Code: code}
	}
	job.session.emit(event)

	ctx := context.Background()
	if e := job.engine; e.observer != nil {
		attrs := []observability.Attribute{
			observability.String(observability.AttrJobID, job.ID),
			observability.String(observability.AttrJobState, string(state)),
		}
		if state == StateTerminated {
			attrs = append(attrs,
				observability.String(observability.AttrJobReason, reason),
				observability.String(observability.AttrErrorCode, string(code)),
			)
			e.observer.Warn(ctx, "Job terminated", attrs...)
		} else {
			e.observer.Info(ctx, "Job completed", append(attrs, observability.Int(observability.AttrJobArtifacts, len(artifacts)))...)
		}
		if dropped := job.session.droppedCount(); dropped > 0 {
			e.observer.Debug(ctx, "Events dropped for slow or absent subscriber",
				observability.String(observability.AttrJobID, job.ID),
				observability.Int("events.dropped", dropped),
			)
		}
	}

	job.persist(ctx)
	close(job.done)
	job.engine.retire(job.ID)
	return true
}

func (job *Job) persist(ctx context.Context) {
	e := job.engine
	if err := e.store.Save(context.WithoutCancel(ctx), job.Record()); err != nil && e.observer != nil {
		e.observer.Error(ctx, "Failed to persist job record",
			observability.String(observability.AttrJobID, job.ID),
			observability.Error(err),
		)
	}
}

// notify sends a notification on the job's stream. Notifications after the
// terminal event are discarded by the session.
func (job *Job) notify(ctx context.Context, level Level, message, nodeID string) {
	delivered := job.session.emit(Event{
		Kind:         EventNotification,
		Time:         time.Now().UTC(),
		Notification: &Notification{Level: level, Message: message, NodeID: nodeID},
	})

	e := job.engine
	if e.observer == nil {
		return
	}
	attrs := []observability.Attribute{
		observability.String(observability.AttrJobID, job.ID),
		observability.String(observability.AttrNodeID, nodeID),
	}
	switch level {
	case LevelError:
		e.observer.Error(ctx, message, attrs...)
	case LevelWarn:
		e.observer.Warn(ctx, message, attrs...)
	case LevelInfo:
		e.observer.Info(ctx, message, attrs...)
	default:
		e.observer.Debug(ctx, message, attrs...)
	}
	if !delivered {
		e.observer.Counter(observability.MetricNotificationsDrop).Add(ctx, 1,
			observability.String(observability.AttrJobID, job.ID))
		if span := observability.SpanFromContext(ctx); span != nil {
			span.AddEvent(observability.EventNotificationDrop, observability.String(observability.AttrNodeID, nodeID))
		}
	}
}

// terminators lists the sink nodes, sorted by id.
func (job *Job) terminators() []string {
	var ids []string
	for id, n := range job.nodes {
		definition := job.definitions[id]
		if n.Terminator || (definition != nil && definition.IsTerminator()) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// prepare runs integration setup and resolves a definition for every node,
// once per job.
func (job *Job) prepare(ctx context.Context) error {
	job.prepareOnce.Do(func() {
		job.prepareErr = job.setup(ctx)
	})
	return job.prepareErr
}

func (job *Job) setup(ctx context.Context) error {
	job.registry = job.engine.registry.Scope()
	job.handlers = make(map[string]Handler)
	job.templates = make(map[string]string)
	job.definitions = make(map[string]*node.Definition, len(job.nodes))
	job.definitionErrs = make(map[string]error)

	if err := job.setupIntegrations(ctx); err != nil {
		return err
	}

	for _, n := range job.Project.Nodes {
		definition, err := job.registry.Lookup(n.Type)
		if err != nil {
			job.definitionErrs[n.ID] = err
			continue
		}
		if len(n.Bindings) > 0 {
			bindings, err := n.BindingShapes()
			if err != nil {
				job.definitionErrs[n.ID] = err
				continue
			}
			instance, err := job.registry.Instantiate(definition, bindings, definition.ID())
			if err != nil {
				job.definitionErrs[n.ID] = err
				continue
			}
			job.templates[instance.ID()] = definition.ID()
			definition = instance
		}
		job.definitions[n.ID] = definition
	}
	return nil
}

type integrationSetup struct {
	id          string
	definitions []*node.Definition
	handlers    map[string]Handler
}

// setupIntegrations registers the node types of every integration the
// project references into the job scope. Integrations are set up concurrently.
func (job *Job) setupIntegrations(ctx context.Context) error {
	e := job.engine
	ids := job.Project.IntegrationIDs(func(category string) bool {
		_, ok := e.integration(category)
		return ok
	})

	setups := make([]*integrationSetup, len(ids))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, id := range ids {
		integration, ok := e.integration(id)
		if !ok {
			job.notify(ctx, LevelWarn, fmt.Sprintf("no integration registered for %q, payload ignored", id), "")
			continue
		}
		group.Go(func() error {
			setup, err := job.setupIntegration(groupCtx, integration)
			setups[i] = setup
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, setup := range setups {
		if setup == nil {
			continue
		}
		for id, handler := range setup.handlers {
			job.handlers[id] = handler
		}
	}
	return nil
}

func (job *Job) setupIntegration(ctx context.Context, integration Integration) (*integrationSetup, error) {
	id := integration.ID()
	ctx, span := job.engine.startSpan(ctx, observability.SpanIntegrationInit,
		observability.String(observability.AttrJobID, job.ID),
		observability.String(observability.AttrIntegrationID, id),
	)
	setup, err := job.loadIntegration(ctx, integration)
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, err.Error())
		} else {
			span.SetAttributes(observability.Int(observability.AttrResourceCount, len(setup.definitions)))
			span.SetStatus(observability.StatusOK, "")
		}
		span.End()
	}
	return setup, err
}

func (job *Job) loadIntegration(ctx context.Context, integration Integration) (*integrationSetup, error) {
	id := integration.ID()
	payload := job.Project.Integrations[id]

	resources, err := integration.Resources(ctx, payload)
	if err != nil {
		return nil, &Error{Code: CodeIntegrationFailure, Message: fmt.Sprintf("listing %s resources", id), Err: err}
	}
	definitions, err := job.registry.RegisterResources(id, resources, integration.Define)
	if err != nil {
		return nil, &Error{Code: CodeIntegrationFailure, Message: fmt.Sprintf("registering %s node types", id), Err: err}
	}
	handlers, err := integration.Handlers(ctx, payload, definitions)
	if err != nil {
		return nil, &Error{Code: CodeIntegrationFailure, Message: fmt.Sprintf("building %s handlers", id), Err: err}
	}
	job.notify(ctx, LevelDebug, fmt.Sprintf("%s: %d node types available", id, len(definitions)), "")
	return &integrationSetup{id: id, definitions: definitions, handlers: handlers}, nil
}

// handler resolves the handler for a definition: the process-wide table
// first, then the job's integration handlers. Instances of generic
// templates fall back to the template's handler.
func (job *Job) handler(definition *node.Definition) (Handler, bool) {
	id := definition.ID()
	if handler, ok := job.engine.handler(id); ok {
		return handler, true
	}
	if handler, ok := job.handlers[id]; ok {
		return handler, true
	}
	if template, ok := job.templates[id]; ok {
		if handler, ok := job.engine.handler(template); ok {
			return handler, true
		}
		handler, ok := job.handlers[template]
		return handler, ok
	}
	return nil, false
}
