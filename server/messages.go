package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/agentics/rows"
	"github.com/tailored-agentic-units/agentics/schema"
	"github.com/tailored-agentic-units/agentics/states"
)

// TransduceRequest is the body of a Transduce call. The target comes from
// Target when it has fields, otherwise from the catalog entry CatalogType.
type TransduceRequest struct {
	Operation    string             `json:"operation"`
	Target       *schema.Definition `json:"target,omitempty"`
	CatalogType  string             `json:"catalog_type,omitempty"`
	Instructions string             `json:"instructions,omitempty"`
	BatchSize    int                `json:"batch_size,omitempty"`
	Count        int                `json:"count,omitempty"`
	Explanations bool               `json:"explanations,omitempty"`
	MergeSource  bool               `json:"merge_source,omitempty"`
	Source       *Table             `json:"source,omitempty"`
}

// Table carries rows over the wire. Struct messages do not keep key order,
// so Columns fixes the field order of the inferred schema.
type Table struct {
	Name    string           `json:"name,omitempty"`
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows"`
}

func (t *Table) table() rows.Table {
	if t == nil {
		return rows.Table{}
	}
	out := rows.Table{Columns: t.Columns, Rows: make([]map[string]any, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = schema.Canonical(row)
	}
	return out
}

// TransduceResponse is the answer to a Transduce call.
type TransduceResponse struct {
	RunID        string                `json:"run_id"`
	Operation    string                `json:"operation"`
	Status       string                `json:"status"`
	States       []map[string]any      `json:"states"`
	Explanations []*states.Explanation `json:"explanations,omitempty"`
	Failures     []Failure             `json:"failures,omitempty"`
}

// Failure is a per-record failure of a Transduce call.
type Failure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// CombineRequest is the body of a Combine call.
type CombineRequest struct {
	Selector string `json:"selector"`
	Left     Table  `json:"left"`
	Right    Table  `json:"right"`
}

// CombineResponse is the answer to a Combine call.
type CombineResponse struct {
	States       []map[string]any      `json:"states"`
	Explanations []*states.Explanation `json:"explanations,omitempty"`
	Homogeneous  bool                  `json:"homogeneous"`
}

func toStruct(v any) (*structpb.Struct, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(body, s); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("empty message")
	}
	body, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}

func explanations(c states.Collection) []*states.Explanation {
	exps, _ := c.Explanations()
	return exps
}
