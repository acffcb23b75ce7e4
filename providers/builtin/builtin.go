package builtin

import (
	"fmt"

	"github.com/leofalp/nodeflow/core/convert"
	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/typemodel"
)

// Node pairs a builtin definition with its handler.
type Node struct {
	Definition *node.Definition
	Handler    engine.Handler
}

type ports = map[string]typemodel.Shape

type nodeOption func(definition *node.Definition)

func withDescription(description string) nodeOption {
	return func(definition *node.Definition) {
		definition.Description = description
	}
}

func asGenerator() nodeOption {
	return func(definition *node.Definition) {
		definition.Purpose = node.PurposeGenerator
		definition.Iterable = true
	}
}

func asTerminator() nodeOption {
	return func(definition *node.Definition) {
		definition.Purpose = node.PurposeTerminator
	}
}

func newNode(category, name string, inputs, outputs ports, fn engine.HandlerFunc, options ...nodeOption) Node {
	definition := &node.Definition{
		Category: category,
		Name:     name,
		Inputs:   inputs,
		Outputs:  outputs,
		Purpose:  node.PurposeNormal,
	}
	for _, option := range options {
		option(definition)
	}
	return Node{Definition: definition, Handler: fn}
}

// Nodes returns the builtin vocabulary.
func Nodes() []Node {
	var nodes []Node
	nodes = append(nodes, literalNodes()...)
	nodes = append(nodes, mathNodes()...)
	nodes = append(nodes, stringNodes()...)
	nodes = append(nodes, dateNodes()...)
	nodes = append(nodes, arrayNodes()...)
	nodes = append(nodes, logicNodes()...)
	nodes = append(nodes, outputNodes()...)
	return nodes
}

// Register installs every builtin into e.
func Register(e *engine.Engine) error {
	for _, builtin := range Nodes() {
		if err := e.Register(builtin.Definition, builtin.Handler); err != nil {
			return fmt.Errorf("builtin: %w", err)
		}
	}
	return nil
}

func single(record engine.Record) (*engine.Output, error) {
	return engine.Single(record), nil
}

func numberInput(invocation *engine.Invocation, name string) (float64, error) {
	value := invocation.Input(name)
	if value == nil {
		return 0, fmt.Errorf("input %s is required", name)
	}
	number, ok := convert.ToFloat(value)
	if !ok {
		return 0, fmt.Errorf("input %s: %v is not a number", name, value)
	}
	return number, nil
}

func integerInput(invocation *engine.Invocation, name string, fallback int64) (int64, error) {
	value := invocation.Input(name)
	if value == nil {
		return fallback, nil
	}
	integer, ok := convert.ToInt(value)
	if !ok {
		return 0, fmt.Errorf("input %s: %v is not an integer", name, value)
	}
	return integer, nil
}

// textInput returns the named input as a string. Nil reads as "".
func textInput(invocation *engine.Invocation, name string) (string, error) {
	switch value := invocation.Input(name).(type) {
	case nil:
		return "", nil
	case string:
		return value, nil
	default:
		return "", fmt.Errorf("input %s: %v is not a string", name, value)
	}
}
