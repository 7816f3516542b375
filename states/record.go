package states

import (
	"encoding/json"
	"maps"
	"slices"
)

// Record is one immutable state: a mapping from field name to value. All
// operations return new Records; the underlying map is never shared with
// callers.
type Record struct {
	data map[string]any
}

// NewRecord copies data into a Record.
func NewRecord(data map[string]any) Record {
	return Record{data: maps.Clone(data)}
}

// Get returns the value stored under key and whether the key exists.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.data[key]
	return v, ok
}

// Len returns the number of keys, null-valued keys included.
func (r Record) Len() int {
	return len(r.data)
}

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r.data))
}

// Map returns a copy of the record's data.
func (r Record) Map() map[string]any {
	out := maps.Clone(r.data)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// IsNull reports whether every value in the record is nil.
func (r Record) IsNull() bool {
	for _, v := range r.data {
		if v != nil {
			return false
		}
	}
	return true
}

// Set returns a new Record with key set to value.
func (r Record) Set(key string, value any) Record {
	data := r.Map()
	data[key] = value
	return Record{data: data}
}

// Merge returns a new Record holding r's keys overlaid with other's keys.
// On collision other wins.
func (r Record) Merge(other Record) Record {
	data := r.Map()
	maps.Copy(data, other.data)
	return Record{data: data}
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.data = m
	return nil
}

// Explanation is the free-text rationale a backend gave for the record at
// the same position.
type Explanation struct {
	Text string `json:"explanation"`
}

// NewExplanation returns a pointer to an Explanation holding text.
func NewExplanation(text string) *Explanation {
	return &Explanation{Text: text}
}
