package builtin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/leofalp/nodeflow/core/convert"
	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/typemodel"
)

func logicNodes() []Node {
	valueType := typemodel.NewGeneric("T")

	return []Node{
		newNode("logic", "if",
			ports{"condition": typemodel.Boolean, "then": valueType, "else": valueType},
			ports{"out": valueType},
			ifHandler,
			withDescription("Passes then when condition holds, else otherwise."),
		),
		newNode("logic", "equals",
			ports{"inA": typemodel.NewGeneric("A"), "inB": typemodel.NewGeneric("B")},
			ports{"out": typemodel.Boolean},
			func(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
				return single(engine.Record{"out": equal(invocation.Input("inA"), invocation.Input("inB"))})
			},
			withDescription("Reports whether inA and inB hold the same value. Numbers compare by value."),
		),
		newNode("logic", "throwIfNull",
			ports{"value": typemodel.NewNullable(valueType), "message": typemodel.NewNullable(typemodel.String)},
			ports{"value": valueType},
			throwIfNullHandler,
			withDescription("Fails the job with message when value is null, passes it through otherwise."),
		),
	}
}

func ifHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	condition, ok := invocation.Input("condition").(bool)
	if !ok && invocation.Input("condition") != nil {
		return nil, fmt.Errorf("input condition: %v is not a boolean", invocation.Input("condition"))
	}
	if condition {
		return single(engine.Record{"out": invocation.Input("then")})
	}
	return single(engine.Record{"out": invocation.Input("else")})
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if left, ok := a.(time.Time); ok {
		right, ok := b.(time.Time)
		return ok && left.Equal(right)
	}
	_, aText := a.(string)
	_, bText := b.(string)
	if !aText && !bText {
		if left, ok := convert.ToFloat(a); ok {
			if right, ok := convert.ToFloat(b); ok {
				return left == right
			}
		}
	}
	return reflect.DeepEqual(a, b)
}

func throwIfNullHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	value := invocation.Input("value")
	if value != nil {
		return single(engine.Record{"value": value})
	}
	message, err := textInput(invocation, "message")
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = "value is null"
	}
	invocation.Notify(engine.LevelError, message)
	return nil, errors.New(message)
}
