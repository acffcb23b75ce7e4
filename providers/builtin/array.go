package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/typemodel"
)

func arrayNodes() []Node {
	itemType := typemodel.NewGeneric("T")
	anyArray := typemodel.NewArray(itemType)

	return []Node{
		newNode("array", "length",
			ports{"array": anyArray},
			ports{"length": typemodel.Integer},
			func(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
				items, err := arrayInput(invocation, "array")
				if err != nil {
					return nil, err
				}
				return single(engine.Record{"length": int64(len(items))})
			},
			withDescription("Counts the items of array."),
		),
		newNode("array", "iterate",
			ports{"array": anyArray},
			ports{"item": itemType, "index": typemodel.Integer},
			iterateHandler,
			asGenerator(),
			withDescription("Emits every item of array; nodes reading item run once per item."),
		),
		newNode("array", "join",
			ports{"array": typemodel.NewArray(typemodel.String), "separator": typemodel.NewNullable(typemodel.String)},
			ports{"out": typemodel.String},
			joinHandler,
			withDescription("Joins the items of array with separator."),
		),
	}
}

// arrayInput returns the named input as a list. Nil reads as an empty list.
func arrayInput(invocation *engine.Invocation, name string) ([]any, error) {
	switch value := invocation.Input(name).(type) {
	case nil:
		return nil, nil
	case []any:
		return value, nil
	default:
		return nil, fmt.Errorf("input %s: %T is not an array", name, value)
	}
}

func iterateHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	items, err := arrayInput(invocation, "array")
	if err != nil {
		return nil, err
	}
	records := make([]engine.Record, len(items))
	for i, item := range items {
		records[i] = engine.Record{"item": item, "index": int64(i)}
	}
	return engine.Sequence(records...), nil
}

func joinHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	items, err := arrayInput(invocation, "array")
	if err != nil {
		return nil, err
	}
	separator, err := textInput(invocation, "separator")
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(items))
	for i, item := range items {
		if text, ok := item.(string); ok {
			parts[i] = text
		} else if item != nil {
			parts[i] = fmt.Sprint(item)
		}
	}
	return single(engine.Record{"out": strings.Join(parts, separator)})
}
