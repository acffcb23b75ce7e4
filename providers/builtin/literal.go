package builtin

import (
	"context"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/typemodel"
)

func literalNodes() []Node {
	passThrough := func(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
		return single(engine.Record{"value": invocation.Input("value")})
	}

	nodes := make([]Node, 0, 5)
	for _, literal := range []struct {
		name  string
		shape typemodel.Shape
	}{
		{"string", typemodel.String},
		{"number", typemodel.Number},
		{"integer", typemodel.Integer},
		{"boolean", typemodel.Boolean},
		{"date", typemodel.Date},
	} {
		nodes = append(nodes, newNode("literal", literal.name,
			ports{"value": literal.shape},
			ports{"value": literal.shape},
			passThrough,
			withDescription("A constant "+literal.name+" value."),
		))
	}
	return nodes
}
