package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/leofalp/nodeflow/core/convert"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/project"
	"github.com/leofalp/nodeflow/core/typemodel"
)

// testVocabulary registers a small node vocabulary and counts handler calls.
type testVocabulary struct {
	calls atomic.Int64
}

func (v *testVocabulary) count(handler HandlerFunc) HandlerFunc {
	return func(ctx context.Context, invocation *Invocation) (*Output, error) {
		v.calls.Add(1)
		return handler(ctx, invocation)
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *testVocabulary) {
	t.Helper()
	e := New(opts...)
	vocabulary := &testVocabulary{}

	passValue := func(_ context.Context, invocation *Invocation) (*Output, error) {
		return Single(Record{"value": invocation.Input("value")}), nil
	}
	for _, literal := range []struct {
		name  string
		shape typemodel.Shape
	}{
		{"string", typemodel.String},
		{"number", typemodel.Number},
		{"boolean", typemodel.Boolean},
	} {
		mustRegister(t, e, &node.Definition{
			Category: "literal",
			Name:     literal.name,
			Inputs:   map[string]typemodel.Shape{"value": literal.shape},
			Outputs:  map[string]typemodel.Shape{"value": literal.shape},
		}, vocabulary.count(passValue))
	}

	mustRegister(t, e, &node.Definition{
		Category: "math",
		Name:     "add",
		Inputs:   map[string]typemodel.Shape{"inA": typemodel.Number, "inB": typemodel.Number},
		Outputs:  map[string]typemodel.Shape{"out": typemodel.Number},
	}, vocabulary.count(func(_ context.Context, invocation *Invocation) (*Output, error) {
		a, okA := convert.ToFloat(invocation.Input("inA"))
		b, okB := convert.ToFloat(invocation.Input("inB"))
		if !okA || !okB {
			return nil, fmt.Errorf("add needs two numbers, got %v and %v", invocation.Input("inA"), invocation.Input("inB"))
		}
		return Single(Record{"out": a + b}), nil
	}))

	mustRegister(t, e, &node.Definition{
		Category: "array",
		Name:     "length",
		Inputs:   map[string]typemodel.Shape{"array": typemodel.NewArray(typemodel.NewGeneric("T"))},
		Outputs:  map[string]typemodel.Shape{"length": typemodel.Integer},
	}, vocabulary.count(func(_ context.Context, invocation *Invocation) (*Output, error) {
		items, _ := invocation.Input("array").([]any)
		return Single(Record{"length": int64(len(items))}), nil
	}))

	mustRegister(t, e, &node.Definition{
		Category: "array",
		Name:     "iterate",
		Purpose:  node.PurposeGenerator,
		Inputs:   map[string]typemodel.Shape{"array": typemodel.NewArray(typemodel.NewGeneric("T"))},
		Outputs:  map[string]typemodel.Shape{"item": typemodel.NewGeneric("T")},
	}, vocabulary.count(func(_ context.Context, invocation *Invocation) (*Output, error) {
		items, _ := invocation.Input("array").([]any)
		records := make([]Record, len(items))
		for i, item := range items {
			records[i] = Record{"item": item}
		}
		return Sequence(records...), nil
	}))

	mustRegister(t, e, &node.Definition{
		Category: "test",
		Name:     "probe",
		Purpose:  node.PurposeTerminator,
		Inputs:   map[string]typemodel.Shape{"in": typemodel.NewNullable(typemodel.Number)},
		Outputs:  map[string]typemodel.Shape{"seen": typemodel.NewNullable(typemodel.Number)},
	}, vocabulary.count(func(_ context.Context, invocation *Invocation) (*Output, error) {
		return Single(Record{"seen": invocation.Input("in")}), nil
	}))

	mustRegister(t, e, &node.Definition{
		Category: "test",
		Name:     "identity",
		Inputs:   map[string]typemodel.Shape{"value": typemodel.NewGeneric("T")},
		Outputs:  map[string]typemodel.Shape{"value": typemodel.NewGeneric("T")},
	}, vocabulary.count(passValue))

	return e, vocabulary
}

func mustRegister(t *testing.T, e *Engine, definition *node.Definition, handler Handler) {
	t.Helper()
	if err := e.Register(definition, handler); err != nil {
		t.Fatalf("register %s: %v", definition.ID(), err)
	}
}

func literalNode(id, kind string, value any) *project.Node {
	return &project.Node{
		ID:     id,
		Type:   "literal-" + kind,
		Inputs: map[string]project.Entry{"value": project.Independent(value)},
	}
}

func submit(t *testing.T, e *Engine, nodes ...*project.Node) *Job {
	t.Helper()
	job, err := e.Submit(context.Background(), &project.Project{ID: "p", Nodes: nodes})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return job
}

// drain collects every event until the stream closes.
func drain(t *testing.T, job *Job) []Event {
	t.Helper()
	events, err := job.Events()
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	var collected []Event
	for event := range events {
		collected = append(collected, event)
	}
	return collected
}
