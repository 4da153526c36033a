package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// Telemetry is an opaque MAVLink-shaped tree such as
// {"messages": {"GLOBAL_POSITION_INT": {"alt": [...], "time_boot_ms": [...]}}}.
type Telemetry map[string]any

// Empty reports whether t carries no data.
func (t Telemetry) Empty() bool { return len(t) == 0 }

// Messages returns the "messages" subtree or nil.
func (t Telemetry) Messages() map[string]any {
	msgs, _ := t["messages"].(map[string]any)
	return msgs
}

// Field returns messages.<msg>.<field> as a float series. ok is false when the
// field is missing or holds no numeric values.
func (t Telemetry) Field(msg, field string) ([]float64, bool) {
	group, _ := t.Messages()[msg].(map[string]any)
	if group == nil {
		return nil, false
	}
	series := Floats(group[field])
	return series, len(series) > 0
}

// Floats converts a JSON-decoded value into a float series. Lists and maps keyed
// by sample index are supported; non-numeric entries are skipped.
func Floats(v any) []float64 {
	switch t := v.(type) {
	case []float64:
		return t
	case []any:
		out := make([]float64, 0, len(t))
		for _, item := range t {
			if f, ok := Number(item); ok {
				out = append(out, f)
			}
		}
		return out
	case map[string]any:
		out := make([]float64, 0, len(t))
		for i := 0; i < len(t); i++ {
			if f, ok := Number(t[strconv.Itoa(i)]); ok {
				out = append(out, f)
			}
		}
		return out
	default:
		if f, ok := Number(v); ok {
			return []float64{f}
		}
		return nil
	}
}

// Number converts a JSON scalar into a finite float64.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
