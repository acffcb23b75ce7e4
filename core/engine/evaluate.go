package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leofalp/nodeflow/core/convert"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/providers/observability"
)

// resolvedInput is one input port after its upstream node ran and the edge
// converter was applied. A sequence input carries one value per upstream
// record; skipped marks values dropped by the skip policy.
type resolvedInput struct {
	field    string
	values   []any
	skipped  []bool
	sequence bool
	origin   string
}

// evaluate returns the cached output of nodeID or computes it. Concurrent
// callers share a single computation.
func (job *Job) evaluate(ctx context.Context, nodeID string) (*Output, error) {
	if output, ok := job.cached(nodeID); ok {
		if span := observability.SpanFromContext(ctx); span != nil {
			span.AddEvent(observability.EventNodeCacheHit, observability.String(observability.AttrNodeID, nodeID))
		}
		return output, nil
	}

	value, err, _ := job.flight.Do(nodeID, func() (any, error) {
		if output, ok := job.cached(nodeID); ok {
			return output, nil
		}
		output, err := job.compute(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		job.resultsMu.Lock()
		job.results[nodeID] = output
		job.resultsMu.Unlock()
		return output, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*Output), nil
}

func (job *Job) cached(nodeID string) (*Output, bool) {
	job.resultsMu.RLock()
	defer job.resultsMu.RUnlock()
	output, ok := job.results[nodeID]
	return output, ok
}

func (job *Job) compute(ctx context.Context, nodeID string) (*Output, error) {
	e := job.engine
	n := job.nodes[nodeID]
	definition := job.definitions[nodeID]
	handler, _ := job.handler(definition)

	ctx, span := e.startSpan(ctx, observability.SpanNodeEvaluate,
		observability.String(observability.AttrJobID, job.ID),
		observability.String(observability.AttrNodeID, nodeID),
		observability.String(observability.AttrNodeType, definition.ID()),
		observability.String(observability.AttrNodePurpose, string(definition.Purpose)),
	)
	start := time.Now()

	output, invocations, err := job.run(ctx, n, definition, handler)

	if span != nil {
		span.SetAttributes(observability.Int(observability.AttrNodeInvocations, invocations))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, err.Error())
		} else {
			span.SetAttributes(observability.Int(observability.AttrNodeOutputs, len(output.Records)))
			span.SetStatus(observability.StatusOK, "")
		}
		span.End()
	}
	if e.observer != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := []observability.Attribute{
			observability.String(observability.AttrNodeType, definition.ID()),
			observability.String(observability.AttrStatus, status),
		}
		e.observer.Counter(observability.MetricNodeCount).Add(ctx, 1, attrs...)
		e.observer.Histogram(observability.MetricNodeDuration).Record(ctx, time.Since(start).Seconds(), attrs...)
	}
	return output, err
}

// run resolves the inputs of n and calls its handler, once for fixed inputs
// or once per element when an input carries a sequence.
func (job *Job) run(ctx context.Context, n *project.Node, definition *node.Definition, handler Handler) (*Output, int, error) {
	inputs, err := job.resolveInputs(ctx, n, definition)
	if err != nil {
		return nil, 0, err
	}

	fixed := make(Record, len(definition.Inputs))
	for name := range definition.Inputs {
		fixed[name] = nil
	}
	var multi []*resolvedInput
	for _, input := range inputs {
		if input.sequence {
			multi = append(multi, input)
			continue
		}
		if input.skipped[0] {
			return emptySequence(n.ID, definition, ""), 0, nil
		}
		fixed[input.field] = input.values[0]
	}

	if len(multi) == 0 {
		output, err := job.invoke(ctx, n, definition, handler, fixed)
		if err != nil {
			return nil, 1, err
		}
		switch {
		case definition.IsGenerator():
			output = &Output{Records: nonNil(output.Records), Sequence: true, Origin: n.ID}
		case output.Sequence && output.Origin == "":
			output.Origin = n.ID
		}
		return output, 1, nil
	}

	origin := multi[0].origin
	length := len(multi[0].values)
	for _, input := range multi[1:] {
		if input.origin != origin {
			return nil, 0, &Error{
				Code:    CodeAmbiguousGenerators,
				NodeID:  n.ID,
				Fields:  []string{multi[0].field, input.field},
				Message: fmt.Sprintf("inputs iterate over different generators %q and %q", origin, input.origin),
			}
		}
		if len(input.values) != length {
			return nil, 0, &Error{
				Code:    CodeAmbiguousGenerators,
				NodeID:  n.ID,
				Fields:  []string{multi[0].field, input.field},
				Message: fmt.Sprintf("sequences have %d and %d elements", length, len(input.values)),
			}
		}
	}
	if length == 0 {
		return emptySequence(n.ID, definition, origin), 0, nil
	}

	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventNodeFanOut,
			observability.String(observability.AttrNodeFanOut, origin),
			observability.Int(observability.AttrNodeInvocations, length),
		)
	}

	results := make([][]Record, length)
	invocations := 0
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(job.engine.fanOutConcurrency)
	for i := 0; i < length; i++ {
		if skippedAt(multi, i) {
			continue
		}
		element := make(Record, len(fixed)+len(multi))
		for name, value := range fixed {
			element[name] = typemodel.Clone(value)
		}
		for _, input := range multi {
			element[input.field] = input.values[i]
		}
		invocations++
		group.Go(func() error {
			output, err := job.invoke(groupCtx, n, definition, handler, element)
			if err != nil {
				return err
			}
			results[i] = output.Records
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, invocations, err
	}

	records := []Record{}
	for _, batch := range results {
		records = append(records, batch...)
	}
	if definition.IsGenerator() {
		origin = n.ID
	}
	return &Output{Records: records, Sequence: true, Origin: origin}, invocations, nil
}

func emptySequence(nodeID string, definition *node.Definition, origin string) *Output {
	if definition.IsGenerator() {
		origin = nodeID
	}
	return &Output{Records: []Record{}, Sequence: true, Origin: origin}
}

func nonNil(records []Record) []Record {
	if records == nil {
		return []Record{}
	}
	return records
}

func skippedAt(inputs []*resolvedInput, index int) bool {
	for _, input := range inputs {
		if input.skipped[index] {
			return true
		}
	}
	return false
}

// resolveInputs resolves every declared input of n concurrently. Literal
// entries for ports the definition does not declare are ignored.
func (job *Job) resolveInputs(ctx context.Context, n *project.Node, definition *node.Definition) ([]*resolvedInput, error) {
	fields := make([]string, 0, len(n.Inputs))
	for field := range n.Inputs {
		if _, declared := definition.Inputs[field]; declared {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	resolved := make([]*resolvedInput, len(fields))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, field := range fields {
		entry := n.Inputs[field]
		target := definition.Inputs[field]
		group.Go(func() error {
			input, err := job.resolveInput(groupCtx, n, field, entry, target)
			resolved[i] = input
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (job *Job) resolveInput(ctx context.Context, n *project.Node, field string, entry project.Entry, target typemodel.Shape) (*resolvedInput, error) {
	if !entry.IsDependent() {
		value, err := job.literal(n.ID, field, entry.Value, target)
		if err != nil {
			return nil, err
		}
		return &resolvedInput{field: field, values: []any{value}, skipped: []bool{false}}, nil
	}

	upstream, err := job.evaluate(ctx, entry.Node)
	if err != nil {
		return nil, err
	}
	producer := job.nodes[entry.Node]
	source := job.definitions[entry.Node].Outputs[entry.Field]
	converter, err := job.engine.converters.Synthesize(source, target)
	if err != nil {
		return nil, &Error{Code: CodeTypeIncompatible, NodeID: n.ID, Fields: []string{field}, Err: err}
	}

	raw := upstream.Field(entry.Field)
	if !upstream.Sequence && len(raw) == 0 {
		raw = []any{nil}
	}
	input := &resolvedInput{
		field:    field,
		values:   make([]any, len(raw)),
		skipped:  make([]bool, len(raw)),
		sequence: upstream.Sequence,
		origin:   upstream.Origin,
	}
	for i, value := range raw {
		if converter.Identity() {
			input.values[i] = typemodel.Clone(value)
			continue
		}
		converted, ok := converter.Convert(value)
		if ok {
			input.values[i] = converted
			continue
		}

		policy := producer.ConversionPolicy()
		job.conversionFailed(ctx, n.ID, field, converter, value, policy)
		switch policy {
		case project.PolicyRaise:
			return nil, &Error{
				Code:    CodeConversionFailure,
				NodeID:  n.ID,
				Fields:  []string{field},
				Message: fmt.Sprintf("%s.%s value %s has no %s representation", entry.Node, entry.Field, describe(value), target.Signature()),
			}
		case project.PolicySkip:
			input.skipped[i] = true
		default:
			input.values[i] = nil
		}
	}
	return input, nil
}

// literal normalizes an inline value for target, converting it from its
// own scalar shape when it does not fit as is.
func (job *Job) literal(nodeID, field string, value any, target typemodel.Shape) (any, error) {
	normalized := typemodel.Normalize(target, value)
	if normalized == nil || typemodel.Accepts(target, normalized) {
		return normalized, nil
	}
	if source, ok := literalShape(normalized); ok {
		if converter, err := job.engine.converters.Synthesize(source, target); err == nil {
			if converted, ok := converter.Convert(normalized); ok {
				return converted, nil
			}
		}
	}
	return nil, &Error{
		Code:    CodeConversionFailure,
		NodeID:  nodeID,
		Fields:  []string{field},
		Message: fmt.Sprintf("literal %s does not fit %s", describe(value), target.Signature()),
	}
}

func literalShape(value any) (typemodel.Shape, bool) {
	switch value.(type) {
	case string:
		return typemodel.String, true
	case float64:
		return typemodel.Number, true
	case int64:
		return typemodel.Integer, true
	case bool:
		return typemodel.Boolean, true
	case time.Time:
		return typemodel.Date, true
	}
	return nil, false
}

// conversionFailed reports a faulty converter that produced no value.
func (job *Job) conversionFailed(ctx context.Context, nodeID, field string, converter *convert.Converter, value any, policy project.Policy) {
	e := job.engine
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventConversionFailed,
			observability.String(observability.AttrNodeField, field),
			observability.String(observability.AttrTypeSource, converter.Source.Signature()),
			observability.String(observability.AttrTypeTarget, converter.Target.Signature()),
		)
	}
	if e.observer != nil {
		e.observer.Counter(observability.MetricConversionFailures).Add(ctx, 1,
			observability.String(observability.AttrTypeSource, converter.Source.Signature()),
			observability.String(observability.AttrTypeTarget, converter.Target.Signature()),
		)
	}
	if policy == project.PolicyNull {
		job.notify(ctx, LevelWarn, fmt.Sprintf("input %s: %s could not be converted to %s, using null",
			field, describe(value), converter.Target.Signature()), nodeID)
	}
}

// invoke calls handler once, bounded by the handler timeout. A panic in the
// handler becomes a handler failure.
func (job *Job) invoke(ctx context.Context, n *project.Node, definition *node.Definition, handler Handler, inputs Record) (*Output, error) {
	invocation := &Invocation{
		JobID:      job.ID,
		Node:       n,
		Definition: definition,
		Inputs:     inputs,
		Notify: func(level Level, message string) {
			job.notify(ctx, level, message, n.ID)
		},
	}
	if span := observability.SpanFromContext(ctx); span != nil {
		span.AddEvent(observability.EventHandlerInvoked, observability.String(observability.AttrNodeID, n.ID))
	}

	timeout := job.engine.handlerTimeout
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		output *Output
		err    error
	}
	results := make(chan result, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				results <- result{err: &Error{Code: CodeHandlerFailure, NodeID: n.ID, Message: fmt.Sprintf("handler panicked: %v", recovered)}}
			}
		}()
		output, err := handler.Handle(callCtx, invocation)
		results <- result{output: output, err: err}
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return nil, handlerError(n.ID, res.err)
		}
		if res.output == nil {
			return Single(Record{}), nil
		}
		return res.output, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &Error{
			Code:    CodeHandlerFailure,
			NodeID:  n.ID,
			Message: fmt.Sprintf("handler did not finish within %s", timeout),
			Err:     callCtx.Err(),
		}
	}
}

func handlerError(nodeID string, err error) error {
	engineErr := asError(err, nodeID)
	if engineErr.NodeID == "" {
		withNode := *engineErr
		withNode.NodeID = nodeID
		return &withNode
	}
	return engineErr
}

func describe(value any) string {
	if value == nil {
		return "null"
	}
	return observability.TruncateString(fmt.Sprintf("%v", value), 80)
}
