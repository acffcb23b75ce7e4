// Package jsonschema renders type model shapes as JSON Schema documents.
//
// The HTTP API uses it to describe the input and output ports of every node
// type, so that editors can validate literal values before submitting a
// project. Named shapes are emitted once under $defs and referenced with
// $ref; type variables carry an "x-generic" marker since JSON Schema has no
// equivalent.
//
// The main entry points are [FromShape] for a single shape and [FromPorts]
// for the port map of a node definition.
package jsonschema
