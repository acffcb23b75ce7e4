package convert

import (
	"fmt"
	"sort"

	"github.com/leofalp/nodeflow/core/typemodel"
)

// Converter turns values of Source into values of Target.
type Converter struct {
	Source typemodel.Shape
	Target typemodel.Shape
	// Faulty is set when Convert may report ok == false for a value of Source.
	Faulty bool

	identity bool
	fn       Func
}

// Convert applies the converter.
func (converter *Converter) Convert(value any) (any, bool) {
	return converter.fn(value)
}

// Identity reports whether Convert returns its input unchanged.
func (converter *Converter) Identity() bool {
	return converter.identity
}

// Synthesize builds the converter from source to target, following the same
// rule order as Compatible. It fails with ErrTypeIncompatible exactly when
// Compatible returns false.
func (registry *Registry) Synthesize(source, target typemodel.Shape) (*Converter, error) {
	key := pairKey(source, target)
	if cached, ok := registry.synthMemo.Load(key); ok {
		return cached.(*Converter), nil
	}
	if !registry.Compatible(source, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTypeIncompatible, source.Signature(), target.Signature())
	}

	converter, err := registry.build(source, target)
	if err != nil {
		return nil, err
	}
	stored, _ := registry.synthMemo.LoadOrStore(key, converter)
	return stored.(*Converter), nil
}

func (registry *Registry) build(source, target typemodel.Shape) (*Converter, error) {
	if isIdentity(source, target) {
		return identityConverter(source, target), nil
	}

	if checks := refinementChecks(target); len(checks) > 0 {
		inner, err := registry.Synthesize(source, typemodel.UnwrapRefined(target))
		if err != nil {
			return nil, err
		}
		return &Converter{Source: source, Target: target, Faulty: true, fn: func(value any) (any, bool) {
			converted, ok := inner.fn(value)
			if !ok {
				return nil, false
			}
			for _, check := range checks {
				if check(converted) != nil {
					return nil, false
				}
			}
			return converted, true
		}}, nil
	}

	originalSource, originalTarget := source, target
	source = typemodel.UnwrapRefined(source)
	target = typemodel.UnwrapRefined(target)

	if nullable, ok := source.(typemodel.Nullable); ok {
		inner, err := registry.Synthesize(nullable.Inner, unwrapNullable(target))
		if err != nil {
			return nil, err
		}
		return nilPassThrough(originalSource, originalTarget, inner), nil
	}
	if nullable, ok := target.(typemodel.Nullable); ok {
		inner, err := registry.Synthesize(source, nullable.Inner)
		if err != nil {
			return nil, err
		}
		return nilPassThrough(originalSource, originalTarget, inner), nil
	}

	if union, ok := source.(typemodel.Union); ok {
		return registry.fromUnion(originalSource, originalTarget, union, target)
	}
	if union, ok := target.(typemodel.Union); ok {
		return registry.toUnion(originalSource, originalTarget, source, union)
	}

	if array, ok := target.(typemodel.Array); ok {
		if sourceArray, ok := source.(typemodel.Array); ok {
			item, err := registry.Synthesize(sourceArray.Item, array.Item)
			if err != nil {
				return nil, err
			}
			return &Converter{Source: originalSource, Target: originalTarget, Faulty: item.Faulty, fn: func(value any) (any, bool) {
				items, ok := value.([]any)
				if !ok {
					return nil, false
				}
				converted := make([]any, len(items))
				for i, element := range items {
					out, ok := item.fn(element)
					if !ok {
						return nil, false
					}
					converted[i] = out
				}
				return converted, true
			}}, nil
		}

		single, err := registry.Synthesize(source, array.Item)
		if err != nil {
			return nil, err
		}
		return &Converter{Source: originalSource, Target: originalTarget, Faulty: single.Faulty, fn: func(value any) (any, bool) {
			out, ok := single.fn(value)
			if !ok {
				return nil, false
			}
			return []any{out}, true
		}}, nil
	}

	sourceMap, sourceIsMap := source.(typemodel.MapLike)
	targetMap, targetIsMap := target.(typemodel.MapLike)
	if sourceIsMap && targetIsMap {
		return registry.betweenMaps(originalSource, originalTarget, sourceMap, targetMap)
	}

	_, sourceIsGeneric := source.(typemodel.Generic)
	_, targetIsGeneric := target.(typemodel.Generic)
	if sourceIsGeneric || targetIsGeneric || typemodel.Equal(source, target) {
		return identityConverter(originalSource, originalTarget), nil
	}

	entry, ok := registry.lookupPrimitive(source, target)
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTypeIncompatible, source.Signature(), target.Signature())
	}
	return &Converter{Source: originalSource, Target: originalTarget, Faulty: entry.faulty, fn: entry.convert}, nil
}

// fromUnion dispatches on the runtime value. Options that cannot reach the
// target make the converter faulty.
func (registry *Registry) fromUnion(source, target typemodel.Shape, union typemodel.Union, unwrappedTarget typemodel.Shape) (*Converter, error) {
	type branch struct {
		option    typemodel.Shape
		converter *Converter
	}

	var branches []branch
	faulty := false
	for _, option := range union.Options {
		if !registry.Compatible(option, unwrappedTarget) {
			faulty = true
			continue
		}
		converter, err := registry.Synthesize(option, unwrappedTarget)
		if err != nil {
			return nil, err
		}
		faulty = faulty || converter.Faulty
		branches = append(branches, branch{option: option, converter: converter})
	}

	return &Converter{Source: source, Target: target, Faulty: faulty, fn: func(value any) (any, bool) {
		for _, candidate := range branches {
			if typemodel.Accepts(candidate.option, value) {
				return candidate.converter.fn(value)
			}
		}
		return nil, false
	}}, nil
}

// toUnion prefers the first option reachable without a faulty converter.
// When every reachable option is faulty, each is tried in turn.
func (registry *Registry) toUnion(source, target, unwrappedSource typemodel.Shape, union typemodel.Union) (*Converter, error) {
	var candidates []*Converter
	for _, option := range union.Options {
		if !registry.Compatible(unwrappedSource, option) {
			continue
		}
		converter, err := registry.Synthesize(unwrappedSource, option)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, converter)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return !candidates[i].Faulty && candidates[j].Faulty
	})

	if len(candidates) > 0 && !candidates[0].Faulty {
		best := candidates[0]
		return &Converter{Source: source, Target: target, identity: best.identity, fn: best.fn}, nil
	}
	return &Converter{Source: source, Target: target, Faulty: true, fn: func(value any) (any, bool) {
		for _, candidate := range candidates {
			if out, ok := candidate.fn(value); ok {
				return out, true
			}
		}
		return nil, false
	}}, nil
}

func (registry *Registry) betweenMaps(source, target typemodel.Shape, sourceMap, targetMap typemodel.MapLike) (*Converter, error) {
	keys, err := registry.Synthesize(sourceMap.Key, targetMap.Key)
	if err != nil {
		return nil, err
	}
	values, err := registry.Synthesize(sourceMap.Value, targetMap.Value)
	if err != nil {
		return nil, err
	}

	return &Converter{Source: source, Target: target, Faulty: keys.Faulty || values.Faulty, fn: func(value any) (any, bool) {
		entries, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		converted := make(map[string]any, len(entries))
		for key, entry := range entries {
			newKey, ok := keys.fn(key)
			if !ok {
				return nil, false
			}
			newValue, ok := values.fn(entry)
			if !ok {
				return nil, false
			}
			converted[mapKey(newKey)] = newValue
		}
		return converted, true
	}}, nil
}

// mapKey renders a converted key back to the string keys runtime maps use.
func mapKey(key any) string {
	if text, ok := key.(string); ok {
		return text
	}
	text, _ := formatScalar(key)
	return text
}

func identityConverter(source, target typemodel.Shape) *Converter {
	return &Converter{Source: source, Target: target, identity: true, fn: func(value any) (any, bool) {
		return value, true
	}}
}

func nilPassThrough(source, target typemodel.Shape, inner *Converter) *Converter {
	return &Converter{Source: source, Target: target, Faulty: inner.Faulty, fn: func(value any) (any, bool) {
		if value == nil {
			return nil, true
		}
		return inner.fn(value)
	}}
}

func refinementChecks(shape typemodel.Shape) []func(any) error {
	var checks []func(any) error
	for {
		refined, ok := shape.(typemodel.Refined)
		if !ok {
			return checks
		}
		if refined.Check != nil {
			checks = append(checks, refined.Check)
		}
		shape = refined.Inner
	}
}
