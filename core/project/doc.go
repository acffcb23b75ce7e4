// Package project models a submitted graph: integration payloads plus a flat
// list of nodes whose inputs are literals or references to another node's
// output field.
package project
