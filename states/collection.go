// Package states holds ordered, schema-conformant collections of records and
// the positional operators that combine two of them.
//
// A Collection is a value: every operator returns a new Collection and never
// touches its receiver or argument, so two pipeline stages can hold the same
// collection without coordination.
//
//	source, err := states.FromRows(rows, movieSchema)
//	merged, err := source.Merge(tweets)   // union of fields, right side wins
//	nested, err := source.Compose(tweets) // tweets nested under "tweet"
//	all := source.Concatenate(more)        // no validation, may be heterogeneous
//
// Explanations are optional and positional. A collection either carries none
// (not requested) or exactly one entry per record, where an entry may be nil
// when the backend produced no rationale for that record.
package states

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tailored-agentic-units/agentics/schema"
)

// Collection is an ordered sequence of records sharing one schema. The
// schema is nil for an empty zero Collection and for the heterogeneous
// result of Concatenate.
type Collection struct {
	schema       *schema.Descriptor
	records      []Record
	explanations []*Explanation
	explained    bool
	instructions string
}

// FromRows validates rows against desc. A field missing from a row is
// null-filled; a key the schema does not declare is dropped; a value of the
// wrong type fails with *ValidationError naming the row and field.
func FromRows(rows []map[string]any, desc *schema.Descriptor) (Collection, error) {
	if desc == nil {
		return Collection{}, fmt.Errorf("from rows: %w", ErrNoSchema)
	}

	records := make([]Record, len(rows))
	for i, row := range rows {
		values, err := desc.Conform(row)
		if err != nil {
			var fieldErr *schema.FieldError
			if errors.As(err, &fieldErr) {
				return Collection{}, &ValidationError{RowIndex: i, Field: fieldErr.Field, Err: fieldErr.Err}
			}
			return Collection{}, &ValidationError{RowIndex: i, Err: err}
		}
		records[i] = Record{data: values}
	}

	return Collection{schema: desc, records: records}, nil
}

// New assembles a collection from records that already conform to desc.
// It is meant for producers such as the transduction engine that build
// records through desc.Conform; no validation is repeated.
func New(desc *schema.Descriptor, records []Record) Collection {
	out := make([]Record, len(records))
	copy(out, records)
	return Collection{schema: desc, records: out}
}

// WithExplanations returns a copy carrying explanations. The slice must have
// one entry per record; entries may be nil. Passing a nil slice to a
// non-empty collection is a length mismatch, not "absent".
func (c Collection) WithExplanations(explanations []*Explanation) (Collection, error) {
	if len(explanations) != len(c.records) {
		return Collection{}, fmt.Errorf("%w: %d explanations for %d records",
			ErrExplanationLen, len(explanations), len(c.records))
	}
	out := c
	out.explanations = make([]*Explanation, len(explanations))
	copy(out.explanations, explanations)
	out.explained = true
	return out, nil
}

// WithoutExplanations returns a copy with the explanation sequence absent.
func (c Collection) WithoutExplanations() Collection {
	out := c
	out.explanations = nil
	out.explained = false
	return out
}

// WithInstructions returns a copy carrying the instructions used to produce
// the collection.
func (c Collection) WithInstructions(instructions string) Collection {
	out := c
	out.instructions = instructions
	return out
}

// Len returns the number of records.
func (c Collection) Len() int {
	return len(c.records)
}

// Schema returns the shared descriptor, or nil for a heterogeneous or empty
// collection.
func (c Collection) Schema() *schema.Descriptor {
	return c.schema
}

// Name returns the schema's type name, or "" when there is no schema.
func (c Collection) Name() string {
	if c.schema == nil {
		return ""
	}
	return c.schema.Name()
}

// Homogeneous reports whether every record shares the collection's schema.
func (c Collection) Homogeneous() bool {
	return c.schema != nil
}

// Instructions returns the instructions attached by WithInstructions.
func (c Collection) Instructions() string {
	return c.instructions
}

// Record returns the record at index i.
func (c Collection) Record(i int) Record {
	return c.records[i]
}

// Records returns a copy of the record slice. Records themselves are
// immutable so the copy is shallow.
func (c Collection) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Explanations returns the explanation sequence and whether one was
// requested. A requested sequence always has Len() entries.
func (c Collection) Explanations() ([]*Explanation, bool) {
	if !c.explained {
		return nil, false
	}
	out := make([]*Explanation, len(c.explanations))
	copy(out, c.explanations)
	return out, true
}

// Rows emits the records as plain maps, the inverse of FromRows up to the
// null-fill of fields that were absent on ingestion.
func (c Collection) Rows() []map[string]any {
	rows := make([]map[string]any, len(c.records))
	for i, r := range c.records {
		rows[i] = r.Map()
	}
	return rows
}

// Validate re-checks every record against the schema. Heterogeneous
// collections have nothing to check against and always pass.
func (c Collection) Validate() error {
	if c.schema == nil {
		return nil
	}
	_, err := FromRows(c.Rows(), c.schema)
	return err
}

// Merge combines c and other index by index. Each output record holds the
// union of both records' fields; when both declare a field, other's value
// wins. Collections of different lengths fail with *AlignmentError.
//
// Explanations follow other when it carries them, otherwise c.
func (c Collection) Merge(other Collection) (Collection, error) {
	if len(c.records) != len(other.records) {
		return Collection{}, &AlignmentError{Op: "merge", Left: len(c.records), Right: len(other.records)}
	}

	out := Collection{
		records:      make([]Record, len(c.records)),
		instructions: firstNonEmpty(other.instructions, c.instructions),
	}
	if c.schema != nil && other.schema != nil {
		out.schema = c.schema.Union(other.schema)
	}
	for i := range c.records {
		out.records[i] = c.records[i].Merge(other.records[i])
	}

	switch {
	case other.explained:
		out.explanations, out.explained = other.explanations, true
	case c.explained:
		out.explanations, out.explained = c.explanations, true
	}

	return out, nil
}

// Compose combines c and other index by index without overwriting anything:
// each output record keeps c's fields at the top level and nests other's
// whole record under ComposeKey(c, other). Collections of different lengths
// fail with *AlignmentError.
func (c Collection) Compose(other Collection) (Collection, error) {
	if len(c.records) != len(other.records) {
		return Collection{}, &AlignmentError{Op: "compose", Left: len(c.records), Right: len(other.records)}
	}

	key := ComposeKey(c, other)

	out := Collection{
		records:      make([]Record, len(c.records)),
		explanations: c.explanations,
		explained:    c.explained,
		instructions: c.instructions,
	}
	if c.schema != nil {
		desc, err := c.schema.WithField(schema.Field{
			Name:        key,
			Description: "Nested " + firstNonEmpty(other.Name(), "state") + " record",
			Type:        schema.Object,
		})
		if err != nil {
			return Collection{}, err
		}
		out.schema = desc
	}
	for i := range c.records {
		out.records[i] = c.records[i].Set(key, other.records[i].Map())
	}

	return out, nil
}

// Concatenate appends other's records after c's. Schemas need not match and
// nothing is validated; when they differ the result has no schema. When only
// one side carries explanations, the other side's positions are nil so the
// sequence stays aligned.
func (c Collection) Concatenate(other Collection) Collection {
	out := Collection{
		records:      make([]Record, 0, len(c.records)+len(other.records)),
		instructions: firstNonEmpty(c.instructions, other.instructions),
	}
	out.records = append(out.records, c.records...)
	out.records = append(out.records, other.records...)

	switch {
	case len(c.records) == 0:
		out.schema = other.schema
	case len(other.records) == 0:
		out.schema = c.schema
	case c.schema.Equal(other.schema):
		out.schema = c.schema
	}

	if c.explained || other.explained {
		out.explained = true
		out.explanations = make([]*Explanation, 0, len(out.records))
		out.explanations = append(out.explanations, padded(c)...)
		out.explanations = append(out.explanations, padded(other)...)
	}

	return out
}

func padded(c Collection) []*Explanation {
	if c.explained {
		return c.explanations
	}
	return make([]*Explanation, len(c.records))
}

// ComposeKey returns the field name under which Compose nests other's
// records: other's schema name in snake case ("MovieReview" becomes
// "movie_review"), or "state" when other has no name. A numeric suffix is
// added while the key collides with a field of c.
func ComposeKey(c, other Collection) string {
	base := snakeCase(other.Name())
	if base == "" {
		base = "state"
	}

	taken := func(name string) bool {
		if c.schema != nil && c.schema.Has(name) {
			return true
		}
		for _, r := range c.records {
			if _, ok := r.Get(name); ok {
				return true
			}
		}
		return false
	}

	key := base
	for n := 1; taken(key); n++ {
		key = fmt.Sprintf("%s_%d", base, n)
	}
	return key
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
