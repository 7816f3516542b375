package rows

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tailored-agentic-units/agentics/states"
)

// document is the emitted form of a collection that carries explanations.
type document struct {
	States       []orderedRow          `json:"states"`
	Explanations []*states.Explanation `json:"explanations"`
}

// Encode renders c as a flat JSON array of rows, or as
// {"states": [...], "explanations": [...]} when c carries explanations.
// Fields follow schema order; rows of a heterogeneous collection use sorted
// keys.
func Encode(c states.Collection) ([]byte, error) {
	var order []string
	if c.Homogeneous() {
		order = c.Schema().Names()
	}

	out := make([]orderedRow, c.Len())
	for i, row := range c.Rows() {
		out[i] = orderedRow{order: order, values: row}
	}

	var v any = out
	if exps, ok := c.Explanations(); ok {
		v = document{States: out, Explanations: exps}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return append(data, '\n'), nil
}

// orderedRow marshals a row with a fixed key order.
type orderedRow struct {
	order  []string
	values map[string]any
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	keys := r.order
	if keys == nil {
		keys = make([]string, 0, len(r.values))
		for k := range r.values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	written := 0
	for _, k := range keys {
		v, ok := r.values[k]
		if !ok {
			continue
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
		written++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
