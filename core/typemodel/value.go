package typemodel

import (
	"encoding/json"
	"math"
	"time"
)

// DateLayouts are the text layouts Normalize and the string to date converter accept.
var DateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate parses text with the first matching layout in DateLayouts.
func ParseDate(text string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Accepts reports whether value is a member of shape.
func Accepts(shape Shape, value any) bool {
	switch typed := shape.(type) {
	case Scalar:
		return acceptsScalar(typed.Type, value)
	case Nullable:
		return value == nil || Accepts(typed.Inner, value)
	case Array:
		items, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if !Accepts(typed.Item, item) {
				return false
			}
		}
		return true
	case MapLike:
		entries, ok := value.(map[string]any)
		if !ok {
			return false
		}
		for key, entry := range entries {
			if !Accepts(typed.Key, key) || !Accepts(typed.Value, entry) {
				return false
			}
		}
		return true
	case Named:
		record, ok := value.(map[string]any)
		if !ok {
			return false
		}
		for name, field := range typed.Fields {
			fieldValue, present := record[name]
			if !present {
				if field.Kind() != KindNullable {
					return false
				}
				continue
			}
			if !Accepts(field, fieldValue) {
				return false
			}
		}
		return true
	case Generic:
		return true
	case Refined:
		if !Accepts(typed.Inner, value) {
			return false
		}
		return typed.Check == nil || typed.Check(value) == nil
	case Union:
		for _, option := range typed.Options {
			if Accepts(option, value) {
				return true
			}
		}
		return false
	}
	return false
}

// IsInt64 reports whether number is integral and fits in an int64.
func IsInt64(number float64) bool {
	return number == math.Trunc(number) && number >= math.MinInt64 && number < math.MaxInt64
}

func acceptsScalar(scalar ScalarType, value any) bool {
	switch scalar {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int64, int, int32:
			return true
		}
		return false
	case TypeInteger:
		switch number := value.(type) {
		case int64, int, int32:
			return true
		case float64:
			return IsInt64(number)
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeDate:
		_, ok := value.(time.Time)
		return ok
	}
	return false
}

// Normalize coerces a decoded JSON literal into the runtime representation of
// shape: integral numbers become int64 for integers, other numbers float64,
// date strings time.Time. Values that do not fit are returned unchanged.
func Normalize(shape Shape, value any) any {
	if number, ok := value.(json.Number); ok {
		if asInt, err := number.Int64(); err == nil {
			value = asInt
		} else if asFloat, err := number.Float64(); err == nil {
			value = asFloat
		}
	}
	if value == nil {
		return nil
	}

	switch typed := shape.(type) {
	case Scalar:
		return normalizeScalar(typed.Type, value)
	case Nullable:
		return Normalize(typed.Inner, value)
	case Refined:
		return Normalize(typed.Inner, value)
	case Array:
		items, ok := value.([]any)
		if !ok {
			return value
		}
		normalized := make([]any, len(items))
		for i, item := range items {
			normalized[i] = Normalize(typed.Item, item)
		}
		return normalized
	case MapLike:
		entries, ok := value.(map[string]any)
		if !ok {
			return value
		}
		normalized := make(map[string]any, len(entries))
		for key, entry := range entries {
			normalized[key] = Normalize(typed.Value, entry)
		}
		return normalized
	case Named:
		record, ok := value.(map[string]any)
		if !ok {
			return value
		}
		normalized := make(map[string]any, len(record))
		for key, entry := range record {
			if field, declared := typed.Fields[key]; declared {
				normalized[key] = Normalize(field, entry)
			} else {
				normalized[key] = entry
			}
		}
		return normalized
	case Union:
		for _, option := range typed.Options {
			if candidate := Normalize(option, value); Accepts(option, candidate) {
				return candidate
			}
		}
	}
	return value
}

func normalizeScalar(scalar ScalarType, value any) any {
	switch scalar {
	case TypeInteger:
		switch number := value.(type) {
		case float64:
			if IsInt64(number) {
				return int64(number)
			}
		case int:
			return int64(number)
		case int32:
			return int64(number)
		}
	case TypeNumber:
		switch number := value.(type) {
		case int64:
			return float64(number)
		case int:
			return float64(number)
		case int32:
			return float64(number)
		case float32:
			return float64(number)
		}
	case TypeDate:
		if text, ok := value.(string); ok {
			if parsed, ok := ParseDate(text); ok {
				return parsed
			}
		}
	}
	return value
}

// Clone deep-copies slices and maps in a runtime value. Scalars are shared.
func Clone(value any) any {
	switch typed := value.(type) {
	case []any:
		cloned := make([]any, len(typed))
		for i, item := range typed {
			cloned[i] = Clone(item)
		}
		return cloned
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, item := range typed {
			cloned[key] = Clone(item)
		}
		return cloned
	default:
		return value
	}
}
