package typemodel

import (
	"sort"
	"strings"
)

// Kind identifies the variant of a Shape.
type Kind int

const (
	KindScalar Kind = iota
	KindNullable
	KindArray
	KindMap
	KindNamed
	KindGeneric
	KindRefined
	KindUnion
)

var kindNames = [...]string{"scalar", "nullable", "array", "map", "named", "generic", "refined", "union"}

func (kind Kind) String() string {
	if int(kind) < len(kindNames) {
		return kindNames[kind]
	}
	return "unknown"
}

// Shape is a node port type.
type Shape interface {
	Kind() Kind
	// Signature is the canonical structural text of the shape.
	Signature() string
	String() string
}

// ScalarType enumerates the leaf types.
type ScalarType string

const (
	TypeString  ScalarType = "string"
	TypeNumber  ScalarType = "number"
	TypeInteger ScalarType = "integer"
	TypeBoolean ScalarType = "boolean"
	TypeDate    ScalarType = "date"
)

// Scalar is a leaf type.
type Scalar struct {
	Type ScalarType
}

// Predeclared scalar shapes.
var (
	String  Shape = Scalar{Type: TypeString}
	Number  Shape = Scalar{Type: TypeNumber}
	Integer Shape = Scalar{Type: TypeInteger}
	Boolean Shape = Scalar{Type: TypeBoolean}
	Date    Shape = Scalar{Type: TypeDate}
)

func (s Scalar) Kind() Kind        { return KindScalar }
func (s Scalar) Signature() string { return string(s.Type) }
func (s Scalar) String() string    { return s.Signature() }

// Nullable admits nil in addition to the values of Inner.
type Nullable struct {
	Inner Shape
}

// NewNullable wraps inner. Wrapping an already nullable shape returns it unchanged.
func NewNullable(inner Shape) Shape {
	if nullable, ok := inner.(Nullable); ok {
		return nullable
	}
	return Nullable{Inner: inner}
}

func (n Nullable) Kind() Kind        { return KindNullable }
func (n Nullable) Signature() string { return "nullable<" + n.Inner.Signature() + ">" }
func (n Nullable) String() string    { return n.Signature() }

// Array is an ordered sequence of Item values.
type Array struct {
	Item Shape
}

// NewArray returns array<item>.
func NewArray(item Shape) Shape {
	return Array{Item: item}
}

func (a Array) Kind() Kind        { return KindArray }
func (a Array) Signature() string { return "array<" + a.Item.Signature() + ">" }
func (a Array) String() string    { return a.Signature() }

// MapLike covers ordered maps and string-keyed records.
type MapLike struct {
	Key   Shape
	Value Shape
}

// NewMap returns map<key,value>.
func NewMap(key, value Shape) Shape {
	return MapLike{Key: key, Value: value}
}

func (m MapLike) Kind() Kind { return KindMap }
func (m MapLike) Signature() string {
	return "map<" + m.Key.Signature() + "," + m.Value.Signature() + ">"
}
func (m MapLike) String() string { return m.Signature() }

// Named is a reusable composite identified by ID. Fields describe the record
// layout but do not take part in equality.
type Named struct {
	ID     string
	Fields map[string]Shape
}

// NewNamed returns a named composite.
func NewNamed(id string, fields map[string]Shape) Shape {
	return Named{ID: id, Fields: fields}
}

func (n Named) Kind() Kind        { return KindNamed }
func (n Named) Signature() string { return "named:" + n.ID }
func (n Named) String() string    { return n.Signature() }

// Generic is an unbound type variable, bound when a node template is instantiated.
type Generic struct {
	Name string
}

// NewGeneric returns the type variable name.
func NewGeneric(name string) Shape {
	return Generic{Name: name}
}

func (g Generic) Kind() Kind        { return KindGeneric }
func (g Generic) Signature() string { return "generic:" + g.Name }
func (g Generic) String() string    { return g.Signature() }

// Refined is Inner plus a validation rule. For compatibility it behaves as
// Inner; Check, when set, runs on values converted into the refined type.
type Refined struct {
	Inner Shape
	Rule  string
	Check func(value any) error
}

// NewRefined returns Inner restricted by rule. check may be nil.
func NewRefined(inner Shape, rule string, check func(value any) error) Shape {
	return Refined{Inner: inner, Rule: rule, Check: check}
}

func (r Refined) Kind() Kind { return KindRefined }
func (r Refined) Signature() string {
	return "refined<" + r.Inner.Signature() + "," + r.Rule + ">"
}
func (r Refined) String() string { return r.Signature() }

// Union admits values of any of its options.
type Union struct {
	Options []Shape
}

// NewUnion builds a union, dropping duplicate options and flattening nested
// unions. A union of one option is that option.
func NewUnion(options ...Shape) Shape {
	seen := make(map[string]bool, len(options))
	flat := make([]Shape, 0, len(options))
	var add func(Shape)
	add = func(option Shape) {
		if nested, ok := option.(Union); ok {
			for _, inner := range nested.Options {
				add(inner)
			}
			return
		}
		if seen[option.Signature()] {
			return
		}
		seen[option.Signature()] = true
		flat = append(flat, option)
	}
	for _, option := range options {
		add(option)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	sort.Slice(flat, func(i, j int) bool { return flat[i].Signature() < flat[j].Signature() })
	return Union{Options: flat}
}

func (u Union) Kind() Kind { return KindUnion }
func (u Union) Signature() string {
	parts := make([]string, len(u.Options))
	for i, option := range u.Options {
		parts[i] = option.Signature()
	}
	sort.Strings(parts)
	return "union<" + strings.Join(parts, ",") + ">"
}
func (u Union) String() string { return u.Signature() }

// Equal reports structural equality.
func Equal(a, b Shape) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Signature() == b.Signature()
}

// UnwrapRefined strips any number of Refined layers.
func UnwrapRefined(shape Shape) Shape {
	for {
		refined, ok := shape.(Refined)
		if !ok {
			return shape
		}
		shape = refined.Inner
	}
}

// Substitute returns shape with every Generic whose name is bound replaced by
// its binding. shape itself is never modified.
func Substitute(shape Shape, bindings map[string]Shape) Shape {
	switch typed := shape.(type) {
	case Generic:
		if bound, ok := bindings[typed.Name]; ok {
			return bound
		}
		return typed
	case Nullable:
		return NewNullable(Substitute(typed.Inner, bindings))
	case Array:
		return Array{Item: Substitute(typed.Item, bindings)}
	case MapLike:
		return MapLike{Key: Substitute(typed.Key, bindings), Value: Substitute(typed.Value, bindings)}
	case Refined:
		return Refined{Inner: Substitute(typed.Inner, bindings), Rule: typed.Rule, Check: typed.Check}
	case Union:
		options := make([]Shape, len(typed.Options))
		for i, option := range typed.Options {
			options[i] = Substitute(option, bindings)
		}
		return NewUnion(options...)
	case Named:
		if len(typed.Fields) == 0 {
			return typed
		}
		fields := make(map[string]Shape, len(typed.Fields))
		for name, field := range typed.Fields {
			fields[name] = Substitute(field, bindings)
		}
		return Named{ID: typed.ID, Fields: fields}
	default:
		return shape
	}
}

// Generics lists the distinct type variable names in shape, sorted.
func Generics(shape Shape) []string {
	found := map[string]bool{}
	collectGenerics(shape, found)
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectGenerics(shape Shape, found map[string]bool) {
	switch typed := shape.(type) {
	case Generic:
		found[typed.Name] = true
	case Nullable:
		collectGenerics(typed.Inner, found)
	case Array:
		collectGenerics(typed.Item, found)
	case MapLike:
		collectGenerics(typed.Key, found)
		collectGenerics(typed.Value, found)
	case Refined:
		collectGenerics(typed.Inner, found)
	case Union:
		for _, option := range typed.Options {
			collectGenerics(option, found)
		}
	case Named:
		for _, field := range typed.Fields {
			collectGenerics(field, found)
		}
	}
}
