package convert

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/leofalp/nodeflow/core/typemodel"
)

// RegisterBuiltins installs the primitive converters between scalar types.
// Parsing text and narrowing numbers are faulty; widening and formatting are not.
func RegisterBuiltins(registry *Registry) {
	registry.Register(typemodel.Integer, typemodel.Number, integerToNumber)
	registry.Register(typemodel.Number, typemodel.Integer, numberToInteger, Faulty())

	registry.Register(typemodel.Number, typemodel.String, formatValue)
	registry.Register(typemodel.Integer, typemodel.String, formatValue)
	registry.Register(typemodel.Boolean, typemodel.String, formatValue)
	registry.Register(typemodel.Date, typemodel.String, formatValue)
	registry.Register(typemodel.Date, typemodel.Integer, dateToInteger)

	registry.Register(typemodel.String, typemodel.Number, stringToNumber, Faulty())
	registry.Register(typemodel.String, typemodel.Integer, stringToInteger, Faulty())
	registry.Register(typemodel.String, typemodel.Boolean, stringToBoolean, Faulty())
	registry.Register(typemodel.String, typemodel.Date, stringToDate, Faulty())
}

// ToFloat reads any runtime numeric value as float64.
func ToFloat(value any) (float64, bool) {
	switch number := value.(type) {
	case float64:
		return number, true
	case float32:
		return float64(number), true
	case int64:
		return float64(number), true
	case int:
		return float64(number), true
	case int32:
		return float64(number), true
	}
	return 0, false
}

// ToInt reads any runtime numeric value without a fractional part as int64.
func ToInt(value any) (int64, bool) {
	switch number := value.(type) {
	case int64:
		return number, true
	case int:
		return int64(number), true
	case int32:
		return int64(number), true
	}
	asFloat, ok := ToFloat(value)
	if !ok || !typemodel.IsInt64(asFloat) {
		return 0, false
	}
	return int64(asFloat), true
}

func integerToNumber(value any) (any, bool) {
	number, ok := ToFloat(value)
	return number, ok
}

func numberToInteger(value any) (any, bool) {
	integer, ok := ToInt(value)
	if !ok {
		return nil, false
	}
	return integer, true
}

func dateToInteger(value any) (any, bool) {
	date, ok := value.(time.Time)
	if !ok {
		return nil, false
	}
	return date.UnixMilli(), true
}

// formatValue renders scalars as text: shortest float form, base 10 integers,
// true/false and RFC 3339 dates.
func formatValue(value any) (any, bool) {
	text, ok := formatScalar(value)
	return text, ok
}

func formatScalar(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case bool:
		return strconv.FormatBool(typed), true
	case time.Time:
		return typed.Format(time.RFC3339), true
	case int64, int, int32:
		integer, _ := ToInt(typed)
		return strconv.FormatInt(integer, 10), true
	case float64, float32:
		number, _ := ToFloat(typed)
		return strconv.FormatFloat(number, 'f', -1, 64), true
	}
	return "", false
}

func stringToNumber(value any) (any, bool) {
	text, ok := value.(string)
	if !ok {
		return nil, false
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return nil, false
	}
	return number, true
}

func stringToInteger(value any) (any, bool) {
	text, ok := value.(string)
	if !ok {
		return nil, false
	}
	text = strings.TrimSpace(text)
	if integer, err := strconv.ParseInt(text, 10, 64); err == nil {
		return integer, true
	}
	number, ok := stringToNumber(text)
	if !ok {
		return nil, false
	}
	return numberToInteger(number)
}

func stringToBoolean(value any) (any, bool) {
	text, ok := value.(string)
	if !ok {
		return nil, false
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "true", "yes", "1", "on":
		return true, true
	case "false", "no", "0", "off", "":
		return false, true
	}
	return nil, false
}

func stringToDate(value any) (any, bool) {
	text, ok := value.(string)
	if !ok {
		return nil, false
	}
	date, ok := typemodel.ParseDate(strings.TrimSpace(text))
	if !ok {
		return nil, false
	}
	return date, true
}
