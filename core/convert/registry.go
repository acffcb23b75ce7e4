package convert

import (
	"context"
	"errors"
	"sync"

	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/providers/observability"
)

// ErrTypeIncompatible is returned by Synthesize for shapes Compatible rejects.
var ErrTypeIncompatible = errors.New("convert: incompatible types")

// Func converts one runtime value. ok == false means no value could be produced.
type Func func(value any) (converted any, ok bool)

type primitive struct {
	faulty  bool
	convert Func
}

// Registry is the converter table plus its memo tables.
type Registry struct {
	mu         sync.RWMutex
	primitives map[string]primitive

	compatMemo sync.Map // pair key -> bool
	synthMemo  sync.Map // pair key -> *Converter

	observer observability.Provider
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver sets the provider used for registration warnings.
func WithObserver(provider observability.Provider) Option {
	return func(registry *Registry) {
		registry.observer = provider
	}
}

// NewRegistry returns an empty registry. Most callers want NewDefaultRegistry.
func NewRegistry(opts ...Option) *Registry {
	registry := &Registry{primitives: make(map[string]primitive)}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// NewDefaultRegistry returns a registry preloaded with RegisterBuiltins.
func NewDefaultRegistry(opts ...Option) *Registry {
	registry := NewRegistry(opts...)
	RegisterBuiltins(registry)
	return registry
}

// RegisterOption tunes a single Register call.
type RegisterOption func(*primitive)

// Faulty marks the converter as able to fail for some inputs.
func Faulty() RegisterOption {
	return func(entry *primitive) {
		entry.faulty = true
	}
}

// Register adds a primitive converter for the exact (source, target) pair.
// A pair that is already convertible is left untouched and a warning is
// logged; Register reports whether the converter was added.
func (registry *Registry) Register(source, target typemodel.Shape, fn Func, opts ...RegisterOption) bool {
	if registry.Compatible(source, target) {
		if registry.observer != nil {
			registry.observer.Warn(context.Background(), "converter already available, registration ignored",
				observability.String(observability.AttrTypeSource, source.Signature()),
				observability.String(observability.AttrTypeTarget, target.Signature()),
			)
		}
		return false
	}

	entry := primitive{convert: fn}
	for _, opt := range opts {
		opt(&entry)
	}

	registry.mu.Lock()
	registry.primitives[pairKey(source, target)] = entry
	registry.mu.Unlock()

	// Memoized negatives may now be stale.
	registry.compatMemo.Clear()
	registry.synthMemo.Clear()

	if registry.observer != nil {
		registry.observer.Debug(context.Background(), "converter registered",
			observability.String(observability.AttrTypeSource, source.Signature()),
			observability.String(observability.AttrTypeTarget, target.Signature()),
			observability.Bool(observability.AttrTypeFaulty, entry.faulty),
		)
	}
	return true
}

func (registry *Registry) lookupPrimitive(source, target typemodel.Shape) (primitive, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	entry, ok := registry.primitives[pairKey(source, target)]
	return entry, ok
}

func pairKey(source, target typemodel.Shape) string {
	return source.Signature() + "->" + target.Signature()
}
