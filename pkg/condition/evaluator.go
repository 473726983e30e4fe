// Package condition evaluates step and trigger conditions against resolved values.
package condition

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dukex/deskflow/pkg/models"
)

// Supported operators.
const (
	OpAssign      = "="
	OpEqual       = "=="
	OpNotEqual    = "!="
	OpGreater     = ">"
	OpGreaterEq   = ">="
	OpLess        = "<"
	OpLessEq      = "<="
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpIn          = "in"
	OpNotIn       = "not_in"
	OpEmpty       = "empty"
	OpNotEmpty    = "not_empty"
)

// ErrUnknownOperator is returned for operators outside the supported set.
var ErrUnknownOperator = errors.New("unknown operator")

type operatorFunc func(value, compare any) bool

var operators = map[string]operatorFunc{
	OpAssign:      equal,
	OpEqual:       equal,
	OpNotEqual:    func(v, c any) bool { return !equal(v, c) },
	OpGreater:     func(v, c any) bool { return ordered(v, c, func(cmp int) bool { return cmp > 0 }) },
	OpGreaterEq:   func(v, c any) bool { return ordered(v, c, func(cmp int) bool { return cmp >= 0 }) },
	OpLess:        func(v, c any) bool { return ordered(v, c, func(cmp int) bool { return cmp < 0 }) },
	OpLessEq:      func(v, c any) bool { return ordered(v, c, func(cmp int) bool { return cmp <= 0 }) },
	OpContains:    contains,
	OpNotContains: func(v, c any) bool { return !contains(v, c) },
	OpIn:          func(v, c any) bool { found, ok := member(v, c); return ok && found },
	OpNotIn:       func(v, c any) bool { found, ok := member(v, c); return ok && !found },
	OpEmpty:       func(v, _ any) bool { return IsEmpty(v) },
	OpNotEmpty:    func(v, _ any) bool { return !IsEmpty(v) },
}

// Evaluate applies operator to value and compare. It is pure: the same inputs always give the same answer.
func Evaluate(value any, operator string, compare any) (bool, error) {
	fn, ok := operators[operator]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
	}

	return fn(value, compare), nil
}

// Supported reports whether operator is known.
func Supported(operator string) bool {
	_, ok := operators[operator]

	return ok
}

// Operators lists the supported operators.
func Operators() []string {
	return []string{
		OpAssign, OpEqual, OpNotEqual, OpGreater, OpGreaterEq, OpLess, OpLessEq,
		OpContains, OpNotContains, OpIn, OpNotIn, OpEmpty, OpNotEmpty,
	}
}

// IsEmpty treats nil, "" and empty sequences or maps as empty. 0 and false are not empty.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}

	if s, ok := v.(string); ok {
		return s == ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

func equal(value, compare any) bool {
	if value == nil || compare == nil {
		return value == nil && compare == nil
	}

	if a, ok := models.ToFloat(value); ok {
		if b, ok := models.ToFloat(compare); ok {
			return a == b
		}
	}

	if a, ok := value.(bool); ok {
		if b, ok := compare.(bool); ok {
			return a == b
		}
	}

	return stringify(value) == stringify(compare)
}

func ordered(value, compare any, accept func(int) bool) bool {
	if value == nil || compare == nil {
		return false
	}

	if a, ok := models.ToFloat(value); ok {
		if b, ok := models.ToFloat(compare); ok {
			switch {
			case a < b:
				return accept(-1)
			case a > b:
				return accept(1)
			default:
				return accept(0)
			}
		}
	}

	return accept(strings.Compare(stringify(value), stringify(compare)))
}

func contains(value, compare any) bool {
	if value == nil || compare == nil {
		return false
	}

	return strings.Contains(strings.ToLower(stringify(value)), strings.ToLower(stringify(compare)))
}

// member reports membership of value in compare; ok is false when compare is not a sequence.
func member(value, compare any) (found bool, ok bool) {
	if compare == nil {
		return false, false
	}

	rv := reflect.ValueOf(compare)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false, false
	}

	for i := range rv.Len() {
		if equal(value, rv.Index(i).Interface()) {
			return true, true
		}
	}

	return false, true
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}

	return models.FormatID(v)
}
