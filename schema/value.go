package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Conform checks values against the descriptor and returns a new map that
// holds exactly the declared fields. Missing fields are null-filled, keys the
// descriptor does not declare are dropped, and numbers are canonicalized to
// int64 (integer) or float64 (float). The first mismatching field, in
// declaration order, is reported as a *FieldError.
func (d *Descriptor) Conform(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		raw, present := values[f.Name]
		if !present || raw == nil {
			out[f.Name] = nil
			continue
		}
		v, err := f.Check(raw)
		if err != nil {
			return nil, &FieldError{Field: f.Name, Err: err}
		}
		out[f.Name] = v
	}
	return out, nil
}

// Null returns a record with every declared field set to nil.
func (d *Descriptor) Null() map[string]any {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		out[f.Name] = nil
	}
	return out
}

// Check validates a single non-nil value against the field and returns its
// canonical form. List fields accept any slice; nil elements are kept.
func (f Field) Check(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if !f.IsList() {
		return checkScalar(f.Type, v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: want %s, got %T", ErrTypeMismatch, f.TypeName(), v)
	}
	out := make([]any, rv.Len())
	for i := range rv.Len() {
		elem := rv.Index(i).Interface()
		if elem == nil {
			continue
		}
		cv, err := checkScalar(f.Type, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = cv
	}
	return out, nil
}

func checkScalar(t ValueType, v any) (any, error) {
	switch t {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Integer:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case Float:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case Object:
		if m, ok := v.(map[string]any); ok {
			return Canonical(m), nil
		}
	}
	return nil, fmt.Errorf("%w: want %s, got %T", ErrTypeMismatch, t, v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float32:
		return integral(float64(n))
	case float64:
		return integral(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return integral(f)
		}
	}
	return 0, false
}

func integral(f float64) (int64, bool) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is
	// exclusive.
	if f < math.MinInt64 || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// Canonical returns a deep copy of an untyped JSON-like value with every
// json.Number replaced by int64 when integral and float64 otherwise.
func Canonical[T any](v T) T {
	out, _ := canonical(any(v)).(T)
	return out
}

func canonical(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[k] = canonical(val)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, val := range x {
			s[i] = canonical(val)
		}
		return s
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	default:
		return v
	}
}
