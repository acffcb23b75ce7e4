package node

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leofalp/nodeflow/core/typemodel"
)

var (
	// ErrDuplicateDefinition is returned when an id is already registered.
	ErrDuplicateDefinition = errors.New("node: duplicate definition")
	// ErrDefinitionNotFound is returned by lookups for unknown ids.
	ErrDefinitionNotFound = errors.New("node: definition not found")
	// ErrUnboundGeneric is returned when instantiation leaves a type variable unbound.
	ErrUnboundGeneric = errors.New("node: unbound generic")
	// ErrInvalidDefinition is returned for definitions missing a category or name.
	ErrInvalidDefinition = errors.New("node: invalid definition")
)

// Resource describes one external item an integration exposes, such as a
// connected form. Metadata carries whatever the integration fetched for it.
type Resource struct {
	ID       string
	Name     string
	Metadata map[string]any
}

// DefinitionBuilder turns a resource into a concrete definition.
type DefinitionBuilder func(resource Resource) (*Definition, error)

type resourceKey struct {
	integration string
	resource    string
}

// Registry maps definition ids to definitions. A registry created by Scope
// reads through to its parent and keeps its own writes private.
type Registry struct {
	parent *Registry

	mu          sync.RWMutex
	definitions map[string]*Definition
	resources   map[resourceKey]string
}

// NewRegistry returns an empty root registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]*Definition),
		resources:   make(map[resourceKey]string),
	}
}

// Scope returns a child registry for one job.
func (registry *Registry) Scope() *Registry {
	child := NewRegistry()
	child.parent = registry
	return child
}

// Register stores a copy of definition. It fails with ErrDuplicateDefinition
// when the id is visible in this registry or any ancestor.
func (registry *Registry) Register(definition *Definition) error {
	if definition == nil || definition.Category == "" || definition.Name == "" {
		return fmt.Errorf("%w: category and name are required", ErrInvalidDefinition)
	}
	if strings.Contains(definition.Category, "-") {
		return fmt.Errorf("%w: category %q must not contain '-'", ErrInvalidDefinition, definition.Category)
	}

	id := definition.ID()
	if registry.parent != nil {
		if _, err := registry.parent.Lookup(id); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicateDefinition, id)
		}
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.definitions[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDefinition, id)
	}
	stored := definition.clone()
	registry.definitions[id] = stored
	if stored.Integration != "" && stored.Resource != "" {
		registry.resources[resourceKey{integration: stored.Integration, resource: stored.Resource}] = id
	}
	return nil
}

// MustRegister registers definition and panics on error. Intended for
// startup tables.
func (registry *Registry) MustRegister(definition *Definition) {
	if err := registry.Register(definition); err != nil {
		panic(err)
	}
}

// Lookup returns the definition for id, searching ancestors.
func (registry *Registry) Lookup(id string) (*Definition, error) {
	registry.mu.RLock()
	definition, ok := registry.definitions[id]
	registry.mu.RUnlock()
	if ok {
		return definition, nil
	}
	if registry.parent != nil {
		return registry.parent.Lookup(id)
	}
	return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, id)
}

// Definitions lists every visible definition sorted by id. Local definitions
// shadow nothing since duplicates are rejected.
func (registry *Registry) Definitions() []*Definition {
	var definitions []*Definition
	if registry.parent != nil {
		definitions = registry.parent.Definitions()
	}
	registry.mu.RLock()
	for _, definition := range registry.definitions {
		definitions = append(definitions, definition)
	}
	registry.mu.RUnlock()

	sort.Slice(definitions, func(i, j int) bool { return definitions[i].ID() < definitions[j].ID() })
	return definitions
}

// Instantiate binds the type variables of template and registers the result
// under "category-name_<hash>", where the hash covers source and the bindings.
// Instantiating the same template, source and bindings twice returns the
// definition registered the first time.
func (registry *Registry) Instantiate(template *Definition, bindings map[string]typemodel.Shape, source string) (*Definition, error) {
	var unbound []string
	for _, name := range template.Generics() {
		if _, ok := bindings[name]; !ok {
			unbound = append(unbound, name)
		}
	}
	if len(unbound) > 0 {
		return nil, fmt.Errorf("%w: %s needs bindings for %s", ErrUnboundGeneric, template.ID(), strings.Join(unbound, ", "))
	}

	concrete := template.clone()
	concrete.Name = template.Name + "_" + instanceHash(source, bindings)
	for field, shape := range concrete.Inputs {
		concrete.Inputs[field] = typemodel.Substitute(shape, bindings)
	}
	for field, shape := range concrete.Outputs {
		concrete.Outputs[field] = typemodel.Substitute(shape, bindings)
	}

	if existing, err := registry.Lookup(concrete.ID()); err == nil {
		return existing, nil
	}
	if err := registry.Register(concrete); err != nil {
		if errors.Is(err, ErrDuplicateDefinition) {
			return registry.Lookup(concrete.ID())
		}
		return nil, err
	}
	return registry.Lookup(concrete.ID())
}

func instanceHash(source string, bindings map[string]typemodel.Shape) string {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	hasher := sha256.New()
	hasher.Write([]byte(source))
	for _, name := range names {
		fmt.Fprintf(hasher, "|%s=%s", name, bindings[name].Signature())
	}
	return hex.EncodeToString(hasher.Sum(nil))[:8]
}

// RegisterResources builds and registers one definition per resource. Each
// definition is stamped with integrationID and the resource id so it can be
// found again with LookupResource.
func (registry *Registry) RegisterResources(integrationID string, resources []Resource, build DefinitionBuilder) ([]*Definition, error) {
	definitions := make([]*Definition, 0, len(resources))
	for _, resource := range resources {
		definition, err := build(resource)
		if err != nil {
			return definitions, fmt.Errorf("building definition for %s resource %q: %w", integrationID, resource.ID, err)
		}
		stamped := *definition
		stamped.Integration = integrationID
		stamped.Resource = resource.ID
		if err := registry.Register(&stamped); err != nil {
			return definitions, err
		}
		stored, err := registry.Lookup(stamped.ID())
		if err != nil {
			return definitions, err
		}
		definitions = append(definitions, stored)
	}
	return definitions, nil
}

// LookupResource returns the definition registered for an integration resource.
func (registry *Registry) LookupResource(integrationID, resourceID string) (*Definition, error) {
	registry.mu.RLock()
	id, ok := registry.resources[resourceKey{integration: integrationID, resource: resourceID}]
	registry.mu.RUnlock()
	if ok {
		return registry.Lookup(id)
	}
	if registry.parent != nil {
		return registry.parent.LookupResource(integrationID, resourceID)
	}
	return nil, fmt.Errorf("%w: %s resource %s", ErrDefinitionNotFound, integrationID, resourceID)
}
