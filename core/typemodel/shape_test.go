package typemodel

import (
	"errors"
	"reflect"
	"testing"
)

func TestSignature(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  string
	}{
		{name: "scalar", shape: String, want: "string"},
		{name: "nullable", shape: NewNullable(Date), want: "nullable<date>"},
		{name: "nested nullable collapses", shape: NewNullable(NewNullable(Number)), want: "nullable<number>"},
		{name: "array", shape: NewArray(Integer), want: "array<integer>"},
		{name: "map", shape: NewMap(String, NewArray(Boolean)), want: "map<string,array<boolean>>"},
		{name: "named ignores fields", shape: NewNamed("Person", map[string]Shape{"age": Integer}), want: "named:Person"},
		{name: "generic", shape: NewGeneric("T"), want: "generic:T"},
		{name: "refined", shape: NewRefined(String, "email", nil), want: "refined<string,email>"},
		{name: "union sorted", shape: NewUnion(String, Number), want: "union<number,string>"},
		{name: "union of one", shape: NewUnion(Date, Date), want: "date"},
		{name: "union flattens", shape: NewUnion(NewUnion(String, Number), Boolean), want: "union<boolean,number,string>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.Signature(); got != tt.want {
				t.Errorf("Signature() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEqualIsStructural(t *testing.T) {
	a := NewArray(NewMap(String, NewNullable(Date)))
	b := NewArray(NewMap(String, NewNullable(Date)))
	if !Equal(a, b) {
		t.Error("freshly built shapes with the same structure should be equal")
	}
	if Equal(NewArray(String), NewArray(Number)) {
		t.Error("array<string> and array<number> should differ")
	}
	if Equal(nil, String) || !Equal(nil, nil) {
		t.Error("nil handling is wrong")
	}
}

func TestParseRoundTrip(t *testing.T) {
	shapes := []Shape{
		String, Number, Integer, Boolean, Date,
		NewNullable(Date),
		NewArray(NewArray(Number)),
		NewMap(String, NewUnion(Number, String)),
		NewGeneric("T"),
		NewNamed("Invoice", nil),
		NewRefined(NewArray(String), "nonEmpty", nil),
		NewUnion(NewArray(String), NewMap(String, Integer), Boolean),
	}
	for _, shape := range shapes {
		t.Run(shape.Signature(), func(t *testing.T) {
			parsed, err := Parse(shape.Signature())
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", shape.Signature(), err)
			}
			if !Equal(parsed, shape) {
				t.Errorf("Parse(%q) = %q", shape.Signature(), parsed.Signature())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{"", "float", "array<>", "array<string", "map<string>", "union<string>", "generic:", "refined<string>", "tuple<string,number>"}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); !errors.Is(err, ErrInvalidShape) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidShape", input, err)
			}
		})
	}
}

func TestSubstitute(t *testing.T) {
	template := NewMap(String, NewArray(NewNullable(NewGeneric("T"))))
	bound := Substitute(template, map[string]Shape{"T": Date})

	if got := bound.Signature(); got != "map<string,array<nullable<date>>>" {
		t.Errorf("Substitute() = %q", got)
	}
	if got := template.Signature(); got != "map<string,array<nullable<generic:T>>>" {
		t.Errorf("template was modified: %q", got)
	}

	partial := Substitute(NewUnion(NewGeneric("A"), NewGeneric("B")), map[string]Shape{"A": String})
	if got := Generics(partial); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("Generics() after partial substitution = %v", got)
	}
}

func TestGenerics(t *testing.T) {
	shape := NewMap(NewGeneric("K"), NewArray(NewUnion(NewGeneric("V"), NewGeneric("K"))))
	if got := Generics(shape); !reflect.DeepEqual(got, []string{"K", "V"}) {
		t.Errorf("Generics() = %v, want [K V]", got)
	}
	if got := Generics(String); len(got) != 0 {
		t.Errorf("Generics(string) = %v, want none", got)
	}
}

func TestUnwrapRefined(t *testing.T) {
	shape := NewRefined(NewRefined(Number, "positive", nil), "small", nil)
	if got := UnwrapRefined(shape); !Equal(got, Number) {
		t.Errorf("UnwrapRefined() = %v, want number", got)
	}
}

func TestKindString(t *testing.T) {
	if KindUnion.String() != "union" || Kind(99).String() != "unknown" {
		t.Error("unexpected kind names")
	}
}
