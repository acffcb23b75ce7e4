package convert

import (
	"github.com/leofalp/nodeflow/core/typemodel"
)

// Compatible reports whether values of source can be converted to target.
// Rules are tried in order and the first that applies decides:
//
//  1. Refined on either side is replaced by its inner type.
//  2. A nullable source is checked by its inner type against the target,
//     itself unwrapped when nullable. A nullable target with a plain source
//     is checked by its inner type.
//  3. A union source needs one compatible option. A union target needs one
//     option compatible with the source.
//  4. An array target accepts an array source by item type, and any other
//     source by promotion to a one-element array.
//  5. Two maps need compatible keys and values.
//  6. Two generics are never compatible. One generic is a wildcard. Equal
//     shapes are compatible.
//  7. Anything else needs a primitive converter for the exact pair.
//
// Nullability is permissive: a nullable source may feed a plain target and
// nil values pass through at runtime.
func (registry *Registry) Compatible(source, target typemodel.Shape) bool {
	key := pairKey(source, target)
	if cached, ok := registry.compatMemo.Load(key); ok {
		return cached.(bool)
	}
	result := registry.compatible(source, target)
	registry.compatMemo.Store(key, result)
	return result
}

func (registry *Registry) compatible(source, target typemodel.Shape) bool {
	if isIdentity(source, target) {
		return true
	}

	source = typemodel.UnwrapRefined(source)
	target = typemodel.UnwrapRefined(target)

	if nullable, ok := source.(typemodel.Nullable); ok {
		return registry.Compatible(nullable.Inner, unwrapNullable(target))
	}
	if nullable, ok := target.(typemodel.Nullable); ok {
		return registry.Compatible(source, nullable.Inner)
	}

	if union, ok := source.(typemodel.Union); ok {
		for _, option := range union.Options {
			if registry.Compatible(option, target) {
				return true
			}
		}
		return false
	}
	if union, ok := target.(typemodel.Union); ok {
		for _, option := range union.Options {
			if registry.Compatible(source, option) {
				return true
			}
		}
		return false
	}

	if array, ok := target.(typemodel.Array); ok {
		if sourceArray, ok := source.(typemodel.Array); ok {
			return registry.Compatible(sourceArray.Item, array.Item)
		}
		return registry.Compatible(source, array.Item)
	}

	sourceMap, sourceIsMap := source.(typemodel.MapLike)
	targetMap, targetIsMap := target.(typemodel.MapLike)
	if sourceIsMap && targetIsMap {
		return registry.Compatible(sourceMap.Key, targetMap.Key) &&
			registry.Compatible(sourceMap.Value, targetMap.Value)
	}

	_, sourceIsGeneric := source.(typemodel.Generic)
	_, targetIsGeneric := target.(typemodel.Generic)
	if sourceIsGeneric && targetIsGeneric {
		return false
	}
	if sourceIsGeneric || targetIsGeneric || typemodel.Equal(source, target) {
		return true
	}

	_, ok := registry.lookupPrimitive(source, target)
	return ok
}

// isIdentity holds for structurally equal shapes free of type variables.
func isIdentity(source, target typemodel.Shape) bool {
	return typemodel.Equal(source, target) && len(typemodel.Generics(source)) == 0
}

func unwrapNullable(shape typemodel.Shape) typemodel.Shape {
	if nullable, ok := shape.(typemodel.Nullable); ok {
		return nullable.Inner
	}
	return shape
}
