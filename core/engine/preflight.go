package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/leofalp/nodeflow/providers/observability"
)

const (
	unvisited = iota
	visiting
	visited
)

// preflight walks everything reachable from targets before any handler
// runs. It checks that every node has a definition and a handler, that every
// dependent input names an existing node and one of its declared outputs,
// that every edge is type compatible, that the graph is acyclic, and that no
// node reads from two different generators.
func (job *Job) preflight(ctx context.Context, targets []string) error {
	_, span := job.engine.startSpan(ctx, observability.SpanJobPreflight,
		observability.String(observability.AttrJobID, job.ID),
		observability.Strings(observability.AttrJobTerminators, targets),
	)
	err := job.check(targets)
	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(observability.StatusError, err.Error())
		} else {
			span.SetStatus(observability.StatusOK, "")
		}
		span.End()
	}
	return err
}

func (job *Job) check(targets []string) error {
	marks := make(map[string]int, len(job.nodes))
	// origins maps a node to the generator whose iteration its output follows.
	origins := make(map[string]string, len(job.nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch marks[id] {
		case visiting:
			return &Error{Code: CodeCycleDetected, NodeID: id, Message: "node depends on its own output"}
		case visited:
			return nil
		}
		marks[id] = visiting

		n, ok := job.nodes[id]
		if !ok {
			return &Error{Code: CodeMissingDependency, NodeID: id, Message: "node does not exist"}
		}
		definition, ok := job.definitions[id]
		if !ok {
			return &Error{Code: CodeUnhandledNodeType, NodeID: id, Message: fmt.Sprintf("unknown node type %q", n.Type), Err: job.definitionErrs[id]}
		}
		if _, ok := job.handler(definition); !ok {
			return &Error{Code: CodeUnhandledNodeType, NodeID: id, Message: fmt.Sprintf("no handler for node type %q", definition.ID())}
		}

		fields := make([]string, 0, len(n.Inputs))
		for field := range n.Inputs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		origin, originField := "", ""
		for _, field := range fields {
			entry := n.Inputs[field]
			if !entry.IsDependent() {
				continue
			}
			target, declared := definition.Inputs[field]
			if !declared {
				return &Error{Code: CodeMissingDependency, NodeID: id, Fields: []string{field}, Message: fmt.Sprintf("node type %q has no input %q", definition.ID(), field)}
			}
			if _, ok := job.nodes[entry.Node]; !ok {
				return &Error{Code: CodeMissingDependency, NodeID: id, Fields: []string{field}, Message: fmt.Sprintf("input reads from unknown node %q", entry.Node)}
			}
			if err := visit(entry.Node); err != nil {
				return err
			}

			sourceDefinition := job.definitions[entry.Node]
			source, declared := sourceDefinition.Outputs[entry.Field]
			if !declared {
				return &Error{Code: CodeMissingDependency, NodeID: id, Fields: []string{field}, Message: fmt.Sprintf("node %q has no output %q", entry.Node, entry.Field)}
			}
			if !job.engine.converters.Compatible(source, target) {
				return &Error{
					Code:    CodeTypeIncompatible,
					NodeID:  id,
					Fields:  []string{field},
					Message: fmt.Sprintf("%s.%s is %s, input expects %s", entry.Node, entry.Field, source.Signature(), target.Signature()),
				}
			}

			switch upstream := origins[entry.Node]; {
			case upstream == "":
			case origin == "":
				origin, originField = upstream, field
			case origin != upstream:
				return &Error{
					Code:    CodeAmbiguousGenerators,
					NodeID:  id,
					Fields:  []string{originField, field},
					Message: fmt.Sprintf("inputs iterate over different generators %q and %q", origin, upstream),
				}
			}
		}

		if definition.IsGenerator() {
			origin = id
		}
		origins[id] = origin
		marks[id] = visited
		return nil
	}

	for _, target := range targets {
		if err := visit(target); err != nil {
			return err
		}
	}
	return nil
}
