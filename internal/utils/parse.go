package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/kaptinlin/jsonrepair"
)

// ParseStringAs converts content into T. Strings, booleans and numbers are
// parsed directly. Anything else is JSON-decoded; when that fails the text is
// run through jsonrepair and decoded again, so hand-edited documents with
// single quotes, trailing commas or unquoted keys still load.
//
//	project, err := ParseStringAs[Project](`{nodes: [{id: 'a', type: 'literal-number'},]}`)
func ParseStringAs[T any](content string) (T, error) {
	var result T
	target := reflect.ValueOf(&result).Elem()

	switch target.Kind() {
	case reflect.String:
		target.SetString(content)
		return result, nil

	case reflect.Bool:
		value, err := strconv.ParseBool(content)
		if err != nil {
			return result, fmt.Errorf("parsing %q as bool: %w", content, err)
		}
		target.SetBool(value)
		return result, nil

	case reflect.Float32, reflect.Float64:
		value, err := strconv.ParseFloat(content, 64)
		if err != nil {
			return result, fmt.Errorf("parsing %q as float: %w", content, err)
		}
		target.SetFloat(value)
		return result, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := strconv.ParseInt(content, 10, 64)
		if err != nil {
			return result, fmt.Errorf("parsing %q as int: %w", content, err)
		}
		target.SetInt(value)
		return result, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value, err := strconv.ParseUint(content, 10, 64)
		if err != nil {
			return result, fmt.Errorf("parsing %q as uint: %w", content, err)
		}
		target.SetUint(value)
		return result, nil
	}

	err := json.Unmarshal([]byte(content), &result)
	if err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return result, fmt.Errorf("decoding %T: %w (repair failed: %v)", result, err, repairErr)
	}
	result = *new(T)
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, fmt.Errorf("decoding repaired %T: %w (repaired: %s)", result, err, TruncateString(repaired, 200))
	}
	return result, nil
}
