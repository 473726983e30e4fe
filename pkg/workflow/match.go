package workflow

import (
	"reflect"

	"github.com/dukex/deskflow/pkg/condition"
)

// MatchTrigger reports whether payload satisfies every trigger condition.
// A scalar expectation must equal the payload field; a sequence expectation must contain it.
// An empty condition set always matches.
func MatchTrigger(conditions map[string]any, payload map[string]any) bool {
	for field, expected := range conditions {
		actual, found := condition.Resolve(payload, field)
		if !found {
			return false
		}

		if isSequence(expected) {
			if !containsStrict(expected, actual) {
				return false
			}

			continue
		}

		if !strictEqual(expected, actual) {
			return false
		}
	}

	return true
}

func isSequence(v any) bool {
	if v == nil {
		return false
	}

	kind := reflect.TypeOf(v).Kind()

	return kind == reflect.Slice || kind == reflect.Array
}

func containsStrict(sequence, value any) bool {
	rv := reflect.ValueOf(sequence)
	for i := range rv.Len() {
		if strictEqual(rv.Index(i).Interface(), value) {
			return true
		}
	}

	return false
}

// strictEqual compares without cross-type coercion, except that numbers compare by value
// so 42 (int) and 42.0 (decoded JSON) are equal while "42" is not.
func strictEqual(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)

		return ok && fa == fb
	}

	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
