package node

import (
	"sort"

	"github.com/leofalp/nodeflow/core/typemodel"
)

// Purpose classifies a definition for the executor.
type Purpose string

const (
	PurposeNormal     Purpose = "normal"
	PurposeGenerator  Purpose = "generator"
	PurposeTerminator Purpose = "terminator"
)

// Definition is an immutable node type.
type Definition struct {
	Category    string
	Name        string
	Description string

	Inputs  map[string]typemodel.Shape
	Outputs map[string]typemodel.Shape

	// Iterable definitions produce a sequence of records even when the
	// handler returns a single one.
	Iterable bool
	Purpose  Purpose

	// Integration and Resource are set on definitions built for an external
	// resource, e.g. one connected form.
	Integration string
	Resource    string
}

// ID returns "category-name".
func (definition *Definition) ID() string {
	return definition.Category + "-" + definition.Name
}

// IsGenerator reports whether evaluating the node yields a sequence.
func (definition *Definition) IsGenerator() bool {
	return definition.Iterable || definition.Purpose == PurposeGenerator
}

// IsTerminator reports whether the definition is a sink.
func (definition *Definition) IsTerminator() bool {
	return definition.Purpose == PurposeTerminator
}

// Generics lists the type variables used by any port, sorted.
func (definition *Definition) Generics() []string {
	seen := map[string]bool{}
	for _, ports := range []map[string]typemodel.Shape{definition.Inputs, definition.Outputs} {
		for _, shape := range ports {
			for _, name := range typemodel.Generics(shape) {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InputNames returns the declared input fields, sorted.
func (definition *Definition) InputNames() []string {
	return sortedKeys(definition.Inputs)
}

// OutputNames returns the declared output fields, sorted.
func (definition *Definition) OutputNames() []string {
	return sortedKeys(definition.Outputs)
}

func (definition *Definition) clone() *Definition {
	cloned := *definition
	cloned.Inputs = clonePorts(definition.Inputs)
	cloned.Outputs = clonePorts(definition.Outputs)
	if cloned.Purpose == "" {
		cloned.Purpose = PurposeNormal
	}
	if cloned.Purpose == PurposeGenerator {
		cloned.Iterable = true
	}
	return &cloned
}

func clonePorts(ports map[string]typemodel.Shape) map[string]typemodel.Shape {
	cloned := make(map[string]typemodel.Shape, len(ports))
	for name, shape := range ports {
		cloned[name] = shape
	}
	return cloned
}

func sortedKeys(ports map[string]typemodel.Shape) []string {
	keys := make([]string, 0, len(ports))
	for key := range ports {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
