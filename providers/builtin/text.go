package builtin

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/providers/observability"
)

func stringNodes() []Node {
	unary := func(name, description string, output string, outputShape typemodel.Shape, apply func(string) any) Node {
		return newNode("string", name,
			ports{"value": typemodel.String},
			ports{output: outputShape},
			func(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
				value, err := textInput(invocation, "value")
				if err != nil {
					return nil, err
				}
				return single(engine.Record{output: apply(value)})
			},
			withDescription(description),
		)
	}

	return []Node{
		newNode("string", "concat",
			ports{"inA": typemodel.String, "inB": typemodel.String, "separator": typemodel.NewNullable(typemodel.String)},
			ports{"out": typemodel.String},
			concatHandler,
			withDescription("Joins inA and inB with an optional separator."),
		),
		unary("upper", "Upper-cases value.", "out", typemodel.String, func(value string) any { return strings.ToUpper(value) }),
		unary("lower", "Lower-cases value.", "out", typemodel.String, func(value string) any { return strings.ToLower(value) }),
		unary("length", "Counts the characters of value.", "length", typemodel.Integer, func(value string) any {
			return int64(utf8.RuneCountInString(value))
		}),
		newNode("string", "replace",
			ports{"value": typemodel.String, "search": typemodel.String, "replacement": typemodel.NewNullable(typemodel.String)},
			ports{"out": typemodel.String},
			replaceHandler,
			withDescription("Replaces every occurrence of search in value."),
		),
		newNode("string", "htmlToMarkdown",
			ports{"html": typemodel.String},
			ports{"markdown": typemodel.String},
			htmlToMarkdownHandler,
			withDescription("Converts an HTML fragment to Markdown."),
		),
	}
}

func concatHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	var parts [3]string
	for i, name := range []string{"inA", "inB", "separator"} {
		value, err := textInput(invocation, name)
		if err != nil {
			return nil, err
		}
		parts[i] = value
	}
	return single(engine.Record{"out": parts[0] + parts[2] + parts[1]})
}

func replaceHandler(_ context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	var parts [3]string
	for i, name := range []string{"value", "search", "replacement"} {
		value, err := textInput(invocation, name)
		if err != nil {
			return nil, err
		}
		parts[i] = value
	}
	if parts[1] == "" {
		return single(engine.Record{"out": parts[0]})
	}
	return single(engine.Record{"out": strings.ReplaceAll(parts[0], parts[1], parts[2])})
}

func htmlToMarkdownHandler(ctx context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	html, err := textInput(invocation, "html")
	if err != nil {
		return nil, err
	}
	markdown, err := HTMLToMarkdown(ctx, html)
	if err != nil {
		return nil, err
	}
	return single(engine.Record{"markdown": markdown})
}

// HTMLToMarkdown converts html to Markdown, logging the sizes through the
// observer carried by ctx, if any.
func HTMLToMarkdown(ctx context.Context, html string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}
	if observer := observability.ObserverFromContext(ctx); observer != nil {
		observer.Trace(ctx, "Converted HTML to markdown",
			observability.Int("html.length", len(html)),
			observability.Int("markdown.length", len(markdown)),
		)
	}
	return strings.TrimSpace(markdown), nil
}
