package engine

import (
	"context"
	"encoding/json"

	"github.com/leofalp/nodeflow/core/node"
)

// Integration contributes node types discovered from an external service at
// job start, e.g. one generator per connected form.
//
// For every integration a project references, the job calls Resources with
// the project's payload for that integration, registers one definition per
// resource through Define, then asks Handlers for the closures that serve
// those definitions. Everything stays scoped to the job.
type Integration interface {
	// ID is the integration id, also the category of the node types it defines.
	ID() string
	// Resources lists the external resources visible with payload.
	Resources(ctx context.Context, payload json.RawMessage) ([]node.Resource, error)
	// Define builds the definition for one resource.
	Define(resource node.Resource) (*node.Definition, error)
	// Handlers returns a handler per definition id, typically capturing credentials from payload.
	Handlers(ctx context.Context, payload json.RawMessage, definitions []*node.Definition) (map[string]Handler, error)
}
