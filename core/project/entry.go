package project

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry binds a port either to a literal (independent) or to an output field
// of another node (dependent).
type Entry struct {
	// Value is the literal of an independent entry.
	Value any
	// Node and Field locate the source of a dependent entry.
	Node  string
	Field string

	dependent bool
}

// Independent returns a literal entry.
func Independent(value any) Entry {
	return Entry{Value: value}
}

// Dependent returns an entry reading field from node.
func Dependent(node, field string) Entry {
	return Entry{Node: node, Field: field, dependent: true}
}

// IsDependent reports whether the entry references another node.
func (entry Entry) IsDependent() bool {
	return entry.dependent
}

func (entry Entry) String() string {
	if entry.dependent {
		return entry.Node + "." + entry.Field
	}
	return fmt.Sprintf("%v", entry.Value)
}

type wireEntry struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
	Node  string          `json:"node,omitempty"`
	Field string          `json:"field,omitempty"`
}

// MarshalJSON writes {"kind":"independent","value":...} or
// {"kind":"dependent","node":...,"field":...}.
func (entry Entry) MarshalJSON() ([]byte, error) {
	if entry.dependent {
		return json.Marshal(wireEntry{Kind: "dependent", Node: entry.Node, Field: entry.Field})
	}
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEntry{Kind: "independent", Value: value})
}

// UnmarshalJSON accepts the tagged forms written by MarshalJSON. Any other
// JSON value, including objects without a "kind" key, is taken as a literal.
func (entry *Entry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return err
		}
		if _, tagged := probe["kind"]; tagged {
			var wire wireEntry
			if err := json.Unmarshal(trimmed, &wire); err != nil {
				return fmt.Errorf("decoding entry: %w", err)
			}
			return entry.fromWire(wire)
		}
	}

	var literal any
	if err := json.Unmarshal(trimmed, &literal); err != nil {
		return fmt.Errorf("decoding literal entry: %w", err)
	}
	*entry = Independent(literal)
	return nil
}

func (entry *Entry) fromWire(wire wireEntry) error {
	switch wire.Kind {
	case "dependent":
		if wire.Node == "" || wire.Field == "" {
			return fmt.Errorf("%w: dependent entry needs node and field", ErrInvalidProject)
		}
		*entry = Dependent(wire.Node, wire.Field)
		return nil
	case "independent":
		var literal any
		if len(wire.Value) > 0 {
			if err := json.Unmarshal(wire.Value, &literal); err != nil {
				return fmt.Errorf("decoding literal entry: %w", err)
			}
		}
		*entry = Independent(literal)
		return nil
	default:
		return fmt.Errorf("%w: unknown entry kind %q", ErrInvalidProject, wire.Kind)
	}
}
