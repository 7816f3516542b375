package schema

import (
	"fmt"
	"sort"
)

// Infer derives a descriptor from untyped rows, the way a data frame infers
// column types. Columns fixes field order; keys found in rows but missing
// from columns are appended in sorted order. A field's type comes from its
// non-null values: integers widen to float when both appear, a field that
// is null everywhere becomes a string, and any other mix fails with
// ErrAmbiguousType.
func Infer(name string, columns []string, rows []map[string]any) (*Descriptor, error) {
	order := make([]string, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !seen[c] {
			seen[c] = true
			order = append(order, c)
		}
	}

	var extra []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	if len(order) == 0 {
		return nil, &SchemaError{Index: -1, Err: ErrNoFields}
	}

	specs := make([]FieldSpec, len(order))
	for i, col := range order {
		field := Field{Name: col}
		for _, row := range rows {
			v, ok := row[col]
			if !ok || v == nil {
				continue
			}
			t, m, ok := kindOf(v)
			if !ok {
				return nil, &SchemaError{Field: col, Index: i, Err: fmt.Errorf("%w: %T", ErrAmbiguousType, v)}
			}
			merged, err := widen(field, t, m)
			if err != nil {
				return nil, &SchemaError{Field: col, Index: i, Err: err}
			}
			field = merged
		}
		if field.Type == 0 {
			field.Type = String
		}
		specs[i] = field.Spec()
	}

	return Build(name, specs)
}

func widen(f Field, t ValueType, m Multiplicity) (Field, error) {
	if f.Type == 0 {
		f.Type, f.Multiplicity = t, m
		return f, nil
	}
	if f.Multiplicity != m {
		return f, fmt.Errorf("%w: %s and %s", ErrAmbiguousType, f.TypeName(), Field{Type: t, Multiplicity: m}.TypeName())
	}
	switch {
	case f.Type == t:
	case f.Type.IsNumber() && t.IsNumber():
		f.Type = Float
	default:
		return f, fmt.Errorf("%w: %s and %s", ErrAmbiguousType, f.Type, t)
	}
	return f, nil
}

func kindOf(v any) (ValueType, Multiplicity, bool) {
	switch x := v.(type) {
	case []any:
		for _, elem := range x {
			if elem == nil {
				continue
			}
			t, m, ok := kindOf(elem)
			if !ok || m == List {
				return 0, List, false
			}
			return t, List, true
		}
		return String, List, true
	case string:
		return String, Single, true
	case bool:
		return Boolean, Single, true
	case map[string]any:
		return Object, Single, true
	}
	if _, ok := toInt64(v); ok {
		return Integer, Single, true
	}
	if _, ok := toFloat64(v); ok {
		return Float, Single, true
	}
	return 0, Single, false
}
