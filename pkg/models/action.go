package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ActionSpec is the configuration of an action step: a kind plus free-form parameters.
// On the wire the parameters are flattened next to "type", e.g. {"type":"webhook","url":"..."}.
type ActionSpec struct {
	Type   string
	Params map[string]any
}

// NewActionSpec builds an ActionSpec of the given kind.
func NewActionSpec(actionType string, params map[string]any) *ActionSpec {
	if params == nil {
		params = make(map[string]any)
	}

	return &ActionSpec{Type: actionType, Params: params}
}

func (a ActionSpec) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(a.Params)+1)
	for k, v := range a.Params {
		flat[k] = v
	}

	flat["type"] = a.Type

	return json.Marshal(flat)
}

func (a *ActionSpec) UnmarshalJSON(data []byte) error {
	var flat map[string]any

	err := json.Unmarshal(data, &flat)
	if err != nil {
		return err
	}

	actionType, _ := flat["type"].(string)
	delete(flat, "type")

	a.Type = actionType
	a.Params = flat

	return nil
}

// Param returns the raw parameter value.
func (a *ActionSpec) Param(key string) (any, bool) {
	if a == nil || a.Params == nil {
		return nil, false
	}

	v, ok := a.Params[key]

	return v, ok
}

// Value returns the conventional "value" parameter.
func (a *ActionSpec) Value() any {
	v, _ := a.Param("value")

	return v
}

// String returns the parameter formatted as a string, or "" when absent.
func (a *ActionSpec) String(key string) string {
	v, ok := a.Param(key)
	if !ok || v == nil {
		return ""
	}

	return FormatID(v)
}

// Float returns the parameter as a float64 when it is numeric or a numeric string.
func (a *ActionSpec) Float(key string) (float64, bool) {
	v, ok := a.Param(key)
	if !ok {
		return 0, false
	}

	return ToFloat(v)
}

// FormatID renders identifiers that may arrive as JSON numbers (42 → "42").
func FormatID(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ToFloat converts numeric values and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(val, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
