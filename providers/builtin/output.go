package builtin

import (
	"context"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/typemodel"
)

func outputNodes() []Node {
	valueType := typemodel.NewGeneric("T")

	return []Node{
		newNode("output", "value",
			ports{"value": valueType},
			ports{"value": valueType},
			func(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
				return single(engine.Record{"value": invocation.Input("value")})
			},
			asTerminator(),
			withDescription("Publishes value as a job artifact."),
		),
		newNode("output", "artifact",
			ports{"name": typemodel.String, "content": typemodel.String, "format": typemodel.NewNullable(typemodel.String)},
			ports{"name": typemodel.String, "content": typemodel.String, "format": typemodel.String},
			artifactHandler,
			asTerminator(),
			withDescription("Publishes a named text artifact. format defaults to text/plain."),
		),
	}
}

func artifactHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	fields := make(map[string]string, 3)
	for _, name := range []string{"name", "content", "format"} {
		value, err := textInput(invocation, name)
		if err != nil {
			return nil, err
		}
		fields[name] = value
	}
	if fields["name"] == "" {
		fields["name"] = invocation.Node.ID
	}
	if fields["format"] == "" {
		fields["format"] = "text/plain"
	}
	return single(engine.Record{"name": fields["name"], "content": fields["content"], "format": fields["format"]})
}
