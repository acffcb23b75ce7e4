package engine

import (
	"context"

	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/project"
)

// Record is one output of a node: field name to value.
type Record map[string]any

// Output is what evaluating a node produced: a single record, or a sequence
// when the node is a generator or was fanned out.
type Output struct {
	Records  []Record
	Sequence bool
	// Origin is the generator node whose iteration a sequence follows.
	Origin string
}

// Single wraps one record.
func Single(record Record) *Output {
	return &Output{Records: []Record{record}}
}

// Sequence wraps zero or more records as a sequence.
func Sequence(records ...Record) *Output {
	if records == nil {
		records = []Record{}
	}
	return &Output{Records: records, Sequence: true}
}

// Record returns the single record, or nil for sequences and empty outputs.
func (output *Output) Record() Record {
	if output == nil || output.Sequence || len(output.Records) == 0 {
		return nil
	}
	return output.Records[0]
}

// Value returns what the output contributes as a job artifact: a map for a
// single record, a list of maps for a sequence.
func (output *Output) Value() any {
	if output == nil {
		return nil
	}
	if output.Sequence {
		values := make([]any, len(output.Records))
		for i, record := range output.Records {
			values[i] = map[string]any(record)
		}
		return values
	}
	if record := output.Record(); record != nil {
		return map[string]any(record)
	}
	return nil
}

// Field returns the values of field across the output's records.
func (output *Output) Field(field string) []any {
	if output == nil {
		return nil
	}
	values := make([]any, len(output.Records))
	for i, record := range output.Records {
		values[i] = record[field]
	}
	return values
}

// Invocation is one call of a handler.
type Invocation struct {
	JobID      string
	Node       *project.Node
	Definition *node.Definition
	// Inputs holds one converted value per declared input port. Unbound ports are nil.
	Inputs Record
	// Notify sends a notification on the job's event stream.
	Notify func(level Level, message string)
}

// Input returns the named input.
func (invocation *Invocation) Input(name string) any {
	return invocation.Inputs[name]
}

// Handler implements a node type.
type Handler interface {
	Handle(ctx context.Context, invocation *Invocation) (*Output, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, invocation *Invocation) (*Output, error)

func (f HandlerFunc) Handle(ctx context.Context, invocation *Invocation) (*Output, error) {
	return f(ctx, invocation)
}

var _ Handler = HandlerFunc(nil)
