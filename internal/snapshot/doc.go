// Package snapshot models the state document returned by the energy backend.
//
// The backend document is treated as a tree of optional fields rather than a
// strict schema: every read goes through a getter that returns "not present"
// when any level of the path is missing, null, or of the wrong type.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Doc is a decoded backend state document. A nil Doc means no snapshot is
// available (for example after a failed poll).
type Doc map[string]any

// Parse decodes a JSON object into a Doc
func Parse(data []byte) (Doc, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty state document")
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode state document: %w", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("state document is not a JSON object")
	}
	return Doc(obj), nil
}

// lookup walks the path and returns the raw value at its end
func (d Doc) lookup(path ...string) (any, bool) {
	if d == nil || len(path) == 0 {
		return nil, false
	}

	var cur any = map[string]any(d)
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}

	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Has reports whether a non-null value exists at path
func (d Doc) Has(path ...string) bool {
	_, ok := d.lookup(path...)
	return ok
}

// Float returns the number at path
func (d Doc) Float(path ...string) (float64, bool) {
	v, ok := d.lookup(path...)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Int returns the number at path truncated towards zero
func (d Doc) Int(path ...string) (int, bool) {
	f, ok := d.Float(path...)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// FloatPtr returns the number at path, or nil when it is not present
func (d Doc) FloatPtr(path ...string) *float64 {
	f, ok := d.Float(path...)
	if !ok {
		return nil
	}
	return &f
}

// String returns the string at path
func (d Doc) String(path ...string) (string, bool) {
	v, ok := d.lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringPtr returns the string at path, or nil when it is not present
func (d Doc) StringPtr(path ...string) *string {
	s, ok := d.String(path...)
	if !ok {
		return nil
	}
	return &s
}

// Text returns the value at path printed the way a template would print
// it: strings as-is, numbers in their shortest form, booleans as true/false.
func (d Doc) Text(path ...string) (string, bool) {
	v, ok := d.lookup(path...)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	default:
		f, ok := toFloat(t)
		if !ok {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
}

// StringOr returns the string at path or def
func (d Doc) StringOr(def string, path ...string) string {
	if s, ok := d.String(path...); ok {
		return s
	}
	return def
}

// Bool returns the boolean at path. present is false when the value is
// missing or not a JSON boolean.
func (d Doc) Bool(path ...string) (value, present bool) {
	v, ok := d.lookup(path...)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// BoolPtr returns the boolean at path, or nil when it is not present
func (d Doc) BoolPtr(path ...string) *bool {
	b, ok := d.Bool(path...)
	if !ok {
		return nil
	}
	return &b
}

// IsTrue reports whether the value at path is the JSON literal true
func (d Doc) IsTrue(path ...string) bool {
	b, ok := d.Bool(path...)
	return ok && b
}

// Truthy follows the loose truthiness the dashboard uses for flags that
// the backend may send as bool, number or string.
func (d Doc) Truthy(path ...string) bool {
	v, ok := d.lookup(path...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// Object returns the nested object at path, or nil
func (d Doc) Object(path ...string) Doc {
	v, ok := d.lookup(path...)
	if !ok {
		return nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return Doc(obj)
}

// Len returns the length of the array at path, 0 if there is none
func (d Doc) Len(path ...string) int {
	v, ok := d.lookup(path...)
	if !ok {
		return 0
	}
	arr, ok := v.([]any)
	if !ok {
		return 0
	}
	return len(arr)
}

// FloatAt returns the number at index i of the array at path
func (d Doc) FloatAt(i int, path ...string) (float64, bool) {
	v, ok := d.lookup(path...)
	if !ok {
		return 0, false
	}
	arr, ok := v.([]any)
	if !ok || i < 0 || i >= len(arr) || arr[i] == nil {
		return 0, false
	}
	return toFloat(arr[i])
}

// MeterFields maps flow node ids to their meterhub power field
var MeterFields = map[string]string{
	"pv":   "pv_p",
	"home": "home_p",
	"bat":  "bat_p",
	"grid": "grid_p",
	"car":  "car_p",
	"heat": "heat_p",
}

// NodePower returns the meterhub power of the flow node with id node
func (d Doc) NodePower(node string) (float64, bool) {
	field, ok := MeterFields[node]
	if !ok {
		return 0, false
	}
	return d.Float("meterhub", field)
}

// SessionInvalid reports the backend's forced-reload flag
func (d Doc) SessionInvalid() bool {
	return d.IsTrue("session_invalid")
}

// ManualAuth reports whether this client currently holds manual authority
func (d Doc) ManualAuth() bool {
	return d.IsTrue("manual_auth")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
