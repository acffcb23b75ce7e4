package jsonschema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/leofalp/nodeflow/core/typemodel"
)

// Schema represents the structure of JSON Schema used to describe node ports.
type Schema struct {
	// Type specifies the data type (e.g., "object", "array", "string", "number")
	Type        string   `json:"type,omitempty"`
	Format      string   `json:"format,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"required,omitempty"`
	// Properties of an object, each with its own schema
	Properties map[string]*Schema `json:"properties,omitempty"`
	// For array types, defines the schema of items in the array
	Items *Schema `json:"items,omitempty"`
	// AdditionalProperties holds the value schema of map shapes
	AdditionalProperties any `json:"additionalProperties,omitempty"`
	// AnyOf lists the alternatives of unions and nullable shapes
	AnyOf []*Schema `json:"anyOf,omitempty"`
	// Ref is used for JSON Schema references to named shapes
	Ref string `json:"$ref,omitempty"`
	// Defs contains the named shapes referenced from the document
	Defs map[string]*Schema `json:"$defs,omitempty"`
	// Generic names the type variable a schema stands for
	Generic string `json:"x-generic,omitempty"`
}

// FromShape renders shape as a standalone schema document.
func FromShape(shape typemodel.Shape) *Schema {
	ctx := newSchemaContext()
	schema := ctx.render(shape)
	if len(ctx.defs) > 0 {
		schema.Defs = ctx.defs
	}
	return schema
}

// FromPorts renders a port map as an object schema. Ports whose shape is not
// nullable are required.
func FromPorts(ports map[string]typemodel.Shape) *Schema {
	ctx := newSchemaContext()
	schema := &Schema{Type: "object", Properties: make(map[string]*Schema, len(ports))}

	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		shape := ports[name]
		schema.Properties[name] = ctx.render(shape)
		if shape.Kind() != typemodel.KindNullable {
			schema.Required = append(schema.Required, name)
		}
	}
	if len(ctx.defs) > 0 {
		schema.Defs = ctx.defs
	}
	return schema
}

// schemaContext collects named shapes so each is emitted once.
type schemaContext struct {
	defs map[string]*Schema
}

func newSchemaContext() *schemaContext {
	return &schemaContext{defs: make(map[string]*Schema)}
}

func (ctx *schemaContext) render(shape typemodel.Shape) *Schema {
	switch typed := shape.(type) {
	case typemodel.Scalar:
		return scalarSchema(typed.Type)
	case typemodel.Nullable:
		inner := ctx.render(typed.Inner)
		return &Schema{AnyOf: []*Schema{inner, {Type: "null"}}}
	case typemodel.Array:
		return &Schema{Type: "array", Items: ctx.render(typed.Item)}
	case typemodel.MapLike:
		return &Schema{Type: "object", AdditionalProperties: ctx.render(typed.Value)}
	case typemodel.Named:
		return ctx.named(typed)
	case typemodel.Generic:
		return &Schema{Generic: typed.Name, Description: fmt.Sprintf("any value, bound to %s", typed.Name)}
	case typemodel.Refined:
		schema := ctx.render(typed.Inner)
		if schema.Description == "" {
			schema.Description = typed.Rule
		}
		return schema
	case typemodel.Union:
		options := make([]*Schema, len(typed.Options))
		for i, option := range typed.Options {
			options[i] = ctx.render(option)
		}
		return &Schema{AnyOf: options}
	default:
		return &Schema{}
	}
}

// named emits the record once under $defs. The reference is registered
// before the fields are rendered so self-referencing records terminate.
func (ctx *schemaContext) named(named typemodel.Named) *Schema {
	ref := &Schema{Ref: "#/$defs/" + named.ID}
	if _, exists := ctx.defs[named.ID]; exists {
		return ref
	}

	definition := &Schema{Type: "object", Properties: make(map[string]*Schema, len(named.Fields))}
	ctx.defs[named.ID] = definition

	names := make([]string, 0, len(named.Fields))
	for name := range named.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		field := named.Fields[name]
		definition.Properties[name] = ctx.render(field)
		if field.Kind() != typemodel.KindNullable {
			definition.Required = append(definition.Required, name)
		}
	}
	return ref
}

func scalarSchema(scalar typemodel.ScalarType) *Schema {
	switch scalar {
	case typemodel.TypeString:
		return &Schema{Type: "string"}
	case typemodel.TypeNumber:
		return &Schema{Type: "number"}
	case typemodel.TypeInteger:
		return &Schema{Type: "integer"}
	case typemodel.TypeBoolean:
		return &Schema{Type: "boolean"}
	case typemodel.TypeDate:
		return &Schema{Type: "string", Format: "date-time"}
	default:
		return &Schema{}
	}
}

// JsonString converts the Schema to its JSON representation
// indent: optional bool parameter. If true, formats JSON with indentation. If false or omitted, returns compact JSON.
func (s *Schema) JsonString(indent ...bool) (string, error) {
	shouldIndent := len(indent) > 0 && indent[0]

	var jsonBytes []byte
	var err error
	if shouldIndent {
		jsonBytes, err = json.MarshalIndent(s, "", "  ")
	} else {
		jsonBytes, err = json.Marshal(s)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// String returns the compact JSON representation of the schema.
// Returns an error message if marshalling fails
func (s *Schema) String() string {
	jsonStr, err := s.JsonString()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return jsonStr
}
