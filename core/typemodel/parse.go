package typemodel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidShape is returned by Parse for text that is not a shape signature.
var ErrInvalidShape = errors.New("typemodel: invalid shape")

// Parse reads a signature back into a Shape. Named shapes parse without
// fields and refined shapes without a check function.
//
//	Parse("array<nullable<date>>")
//	Parse("map<string,union<number,string>>")
//	Parse("generic:T")
func Parse(text string) (Shape, error) {
	shape, err := parseShape(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidShape, text, err)
	}
	return shape, nil
}

// MustParse is Parse for static declarations. It panics on malformed text.
func MustParse(text string) Shape {
	shape, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return shape
}

func parseShape(text string) (Shape, error) {
	if text == "" {
		return nil, errors.New("empty type")
	}

	switch ScalarType(text) {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeDate:
		return Scalar{Type: ScalarType(text)}, nil
	}

	if name, ok := strings.CutPrefix(text, "generic:"); ok {
		if name == "" {
			return nil, errors.New("generic without a name")
		}
		return Generic{Name: name}, nil
	}
	if id, ok := strings.CutPrefix(text, "named:"); ok {
		if id == "" {
			return nil, errors.New("named type without an id")
		}
		return Named{ID: id}, nil
	}

	open := strings.IndexByte(text, '<')
	if open <= 0 || !strings.HasSuffix(text, ">") {
		return nil, fmt.Errorf("unknown type %q", text)
	}
	constructor := text[:open]
	args, err := splitArguments(text[open+1 : len(text)-1])
	if err != nil {
		return nil, err
	}

	switch constructor {
	case "nullable", "array":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one argument, got %d", constructor, len(args))
		}
		inner, err := parseShape(args[0])
		if err != nil {
			return nil, err
		}
		if constructor == "array" {
			return Array{Item: inner}, nil
		}
		return NewNullable(inner), nil

	case "map":
		if len(args) != 2 {
			return nil, fmt.Errorf("map takes two arguments, got %d", len(args))
		}
		key, err := parseShape(args[0])
		if err != nil {
			return nil, err
		}
		value, err := parseShape(args[1])
		if err != nil {
			return nil, err
		}
		return MapLike{Key: key, Value: value}, nil

	case "refined":
		if len(args) != 2 || args[1] == "" {
			return nil, errors.New("refined takes a type and a rule")
		}
		inner, err := parseShape(args[0])
		if err != nil {
			return nil, err
		}
		return Refined{Inner: inner, Rule: args[1]}, nil

	case "union":
		if len(args) < 2 {
			return nil, errors.New("union needs at least two options")
		}
		options := make([]Shape, 0, len(args))
		for _, arg := range args {
			option, err := parseShape(arg)
			if err != nil {
				return nil, err
			}
			options = append(options, option)
		}
		return NewUnion(options...), nil
	}

	return nil, fmt.Errorf("unknown type constructor %q", constructor)
}

// splitArguments splits on commas that are not nested inside angle brackets.
func splitArguments(text string) ([]string, error) {
	var args []string
	depth, start := 0, 0
	for i, r := range text {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced '>'")
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(text[start:i]))
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced '<'")
	}
	return append(args, strings.TrimSpace(text[start:])), nil
}
