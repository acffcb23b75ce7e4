package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/internal/utils"
)

// ErrInvalidProject is returned for structurally broken projects.
var ErrInvalidProject = errors.New("project: invalid project")

// Policy says what happens when a faulty converter on one of a node's
// outgoing edges produces no value.
type Policy string

const (
	// PolicyNull delivers nil to the consumer and reports a warning.
	PolicyNull Policy = "null"
	// PolicySkip drops the value; for a fan-out item only that item is dropped.
	PolicySkip Policy = "skip"
	// PolicyRaise terminates the job.
	PolicyRaise Policy = "raise"
)

// Node is a graph vertex.
type Node struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Inputs  map[string]Entry `json:"inputs,omitempty"`
	Outputs map[string]Entry `json:"outputs,omitempty"`

	// Bindings maps the type variables of a generic node type to shape text,
	// e.g. {"T": "date"}.
	Bindings map[string]string `json:"bindings,omitempty"`
	// Terminator marks the node as a sink even when its type is not one.
	Terminator bool `json:"terminator,omitempty"`
	// OnConversionFailure applies to values read from this node's outputs.
	OnConversionFailure Policy `json:"onConversionFailure,omitempty"`
}

// ConversionPolicy returns the node's policy, PolicyNull when unset.
func (node *Node) ConversionPolicy() Policy {
	if node.OnConversionFailure == "" {
		return PolicyNull
	}
	return node.OnConversionFailure
}

// BindingShapes parses Bindings.
func (node *Node) BindingShapes() (map[string]typemodel.Shape, error) {
	if len(node.Bindings) == 0 {
		return nil, nil
	}
	shapes := make(map[string]typemodel.Shape, len(node.Bindings))
	for name, text := range node.Bindings {
		shape, err := typemodel.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("node %s binding %s: %w", node.ID, name, err)
		}
		shapes[name] = shape
	}
	return shapes, nil
}

// Dependencies lists the distinct node ids this node reads from, sorted.
func (node *Node) Dependencies() []string {
	seen := map[string]bool{}
	for _, entry := range node.Inputs {
		if entry.IsDependent() {
			seen[entry.Node] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Project is a submitted graph.
type Project struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	// Integrations holds the per-integration auth and data payloads, keyed by
	// integration id.
	Integrations map[string]json.RawMessage `json:"integrations,omitempty"`
	Nodes        []*Node                    `json:"nodes"`
}

// Parse decodes a project, repairing malformed JSON when possible, and validates it.
func Parse(data []byte) (*Project, error) {
	parsed, err := utils.ParseStringAs[Project](string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	if err := parsed.Validate(); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Validate checks node ids, types, policies and bindings. References between
// nodes are checked by the executor, which reports them per job.
func (project *Project) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(project.Nodes))
	for i, node := range project.Nodes {
		if node == nil {
			errs = append(errs, fmt.Errorf("node %d is null", i))
			continue
		}
		if node.ID == "" {
			errs = append(errs, fmt.Errorf("node %d has no id", i))
		} else if seen[node.ID] {
			errs = append(errs, fmt.Errorf("duplicate node id %q", node.ID))
		}
		seen[node.ID] = true
		if node.Type == "" {
			errs = append(errs, fmt.Errorf("node %q has no type", node.ID))
		}
		switch node.OnConversionFailure {
		case "", PolicyNull, PolicySkip, PolicyRaise:
		default:
			errs = append(errs, fmt.Errorf("node %q has unknown conversion policy %q", node.ID, node.OnConversionFailure))
		}
		if _, err := node.BindingShapes(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidProject, errors.Join(errs...))
	}
	return nil
}

// Index maps node ids to nodes.
func (project *Project) Index() map[string]*Node {
	index := make(map[string]*Node, len(project.Nodes))
	for _, node := range project.Nodes {
		if node != nil {
			index[node.ID] = node
		}
	}
	return index
}

// IntegrationIDs lists the integration ids the project references: every
// payload key, plus the category of any node type for which known reports true.
func (project *Project) IntegrationIDs(known func(category string) bool) []string {
	seen := map[string]bool{}
	for id := range project.Integrations {
		seen[id] = true
	}
	for _, node := range project.Nodes {
		if node == nil {
			continue
		}
		if category := Category(node.Type); known != nil && known(category) {
			seen[category] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Category returns the part of a node type id before the first '-'.
func Category(typeID string) string {
	category, _, _ := strings.Cut(typeID, "-")
	return category
}
