package jsonschema

import (
	"reflect"
	"testing"

	"github.com/leofalp/nodeflow/core/typemodel"
)

func TestFromShape_Scalars(t *testing.T) {
	tests := []struct {
		shape      typemodel.Shape
		wantType   string
		wantFormat string
	}{
		{typemodel.String, "string", ""},
		{typemodel.Number, "number", ""},
		{typemodel.Integer, "integer", ""},
		{typemodel.Boolean, "boolean", ""},
		{typemodel.Date, "string", "date-time"},
	}
	for _, tt := range tests {
		t.Run(tt.shape.Signature(), func(t *testing.T) {
			schema := FromShape(tt.shape)
			if schema.Type != tt.wantType || schema.Format != tt.wantFormat {
				t.Errorf("got type %q format %q, want %q %q", schema.Type, schema.Format, tt.wantType, tt.wantFormat)
			}
		})
	}
}

func TestFromShape_Containers(t *testing.T) {
	schema := FromShape(typemodel.MustParse("array<nullable<integer>>"))
	if schema.Type != "array" || schema.Items == nil {
		t.Fatalf("expected an array schema, got %s", schema)
	}
	if len(schema.Items.AnyOf) != 2 || schema.Items.AnyOf[0].Type != "integer" || schema.Items.AnyOf[1].Type != "null" {
		t.Fatalf("expected nullable integer items, got %s", schema.Items)
	}

	mapSchema := FromShape(typemodel.NewMap(typemodel.String, typemodel.Boolean))
	values, ok := mapSchema.AdditionalProperties.(*Schema)
	if mapSchema.Type != "object" || !ok || values.Type != "boolean" {
		t.Fatalf("expected a boolean map schema, got %s", mapSchema)
	}
}

func TestFromShape_UnionGenericRefined(t *testing.T) {
	union := FromShape(typemodel.NewUnion(typemodel.String, typemodel.Number))
	if len(union.AnyOf) != 2 {
		t.Fatalf("expected two alternatives, got %s", union)
	}

	generic := FromShape(typemodel.NewGeneric("T"))
	if generic.Generic != "T" || generic.Type != "" {
		t.Fatalf("expected an untyped generic schema, got %s", generic)
	}

	refined := FromShape(typemodel.NewRefined(typemodel.Integer, "positive", nil))
	if refined.Type != "integer" || refined.Description != "positive" {
		t.Fatalf("expected refined integer, got %s", refined)
	}
}

func TestFromShape_NamedUsesDefs(t *testing.T) {
	person := typemodel.NewNamed("person", map[string]typemodel.Shape{
		"name": typemodel.String,
		"age":  typemodel.NewNullable(typemodel.Integer),
	})
	schema := FromShape(typemodel.NewArray(person))

	if schema.Items == nil || schema.Items.Ref != "#/$defs/person" {
		t.Fatalf("expected items to reference person, got %s", schema)
	}
	definition := schema.Defs["person"]
	if definition == nil || definition.Type != "object" {
		t.Fatalf("expected person definition, got %s", schema)
	}
	if !reflect.DeepEqual(definition.Required, []string{"name"}) {
		t.Fatalf("required = %v, want [name]", definition.Required)
	}
}

func TestFromPorts(t *testing.T) {
	person := typemodel.NewNamed("person", map[string]typemodel.Shape{"name": typemodel.String})
	schema := FromPorts(map[string]typemodel.Shape{
		"b":     typemodel.NewNullable(typemodel.Number),
		"a":     typemodel.Number,
		"owner": person,
		"other": person,
	})

	if schema.Type != "object" || len(schema.Properties) != 4 {
		t.Fatalf("unexpected schema %s", schema)
	}
	if !reflect.DeepEqual(schema.Required, []string{"a", "other", "owner"}) {
		t.Fatalf("required = %v", schema.Required)
	}
	if len(schema.Defs) != 1 || schema.Properties["owner"].Ref != schema.Properties["other"].Ref {
		t.Fatalf("expected one shared definition, got %s", schema)
	}
}

func TestFromPorts_Empty(t *testing.T) {
	schema := FromPorts(nil)
	if schema.Type != "object" || len(schema.Required) != 0 || schema.Defs != nil {
		t.Fatalf("unexpected schema %s", schema)
	}
	if got := schema.String(); got != `{"type":"object"}` {
		t.Fatalf("String() = %s", got)
	}
}
