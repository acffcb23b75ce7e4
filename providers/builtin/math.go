package builtin

import (
	"context"
	"errors"
	"math"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/typemodel"
)

var errDivisionByZero = errors.New("division by zero")

func mathNodes() []Node {
	binary := func(name, description string, apply func(a, b float64) (float64, error)) Node {
		return newNode("math", name,
			ports{"inA": typemodel.Number, "inB": typemodel.Number},
			ports{"out": typemodel.Number},
			func(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
				a, err := numberInput(invocation, "inA")
				if err != nil {
					return nil, err
				}
				b, err := numberInput(invocation, "inB")
				if err != nil {
					return nil, err
				}
				out, err := apply(a, b)
				if err != nil {
					return nil, err
				}
				return single(engine.Record{"out": out})
			},
			withDescription(description),
		)
	}

	return []Node{
		binary("add", "Adds inB to inA.", func(a, b float64) (float64, error) { return a + b, nil }),
		binary("subtract", "Subtracts inB from inA.", func(a, b float64) (float64, error) { return a - b, nil }),
		binary("multiply", "Multiplies inA by inB.", func(a, b float64) (float64, error) { return a * b, nil }),
		binary("divide", "Divides inA by inB.", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errDivisionByZero
			}
			return a / b, nil
		}),
		newNode("math", "round",
			ports{"value": typemodel.Number, "digits": typemodel.NewNullable(typemodel.Integer)},
			ports{"out": typemodel.Number},
			roundHandler,
			withDescription("Rounds value half away from zero to the given number of decimal digits (default 0)."),
		),
	}
}

func roundHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	value, err := numberInput(invocation, "value")
	if err != nil {
		return nil, err
	}
	digits, err := integerInput(invocation, "digits", 0)
	if err != nil {
		return nil, err
	}
	scale := math.Pow(10, float64(digits))
	return single(engine.Record{"out": math.Round(value*scale) / scale})
}
