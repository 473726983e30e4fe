package condition

import (
	"reflect"
	"strconv"
	"strings"
)

// Resolve walks a dotted path (e.g. "target.priority") through nested maps and slices.
// It never fails: a missing segment or a non-container value yields (nil, false).
func Resolve(root map[string]any, path string) (any, bool) {
	if path == "" || root == nil {
		return nil, false
	}

	var current any = root

	for _, segment := range strings.Split(path, ".") {
		next, ok := step(current, segment)
		if !ok {
			return nil, false
		}

		current = next
	}

	return current, true
}

func step(current any, segment string) (any, bool) {
	switch container := current.(type) {
	case map[string]any:
		v, ok := container[segment]

		return v, ok
	case map[string]string:
		v, ok := container[segment]

		return v, ok
	case []any:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 || index >= len(container) {
			return nil, false
		}

		return container[index], true
	}

	rv := reflect.ValueOf(current)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		v := rv.MapIndex(reflect.ValueOf(segment).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, false
		}

		return v.Interface(), true
	}

	return nil, false
}
