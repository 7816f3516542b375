// Package schema builds the structural type descriptors that every state
// collection is checked against.
//
// A Descriptor is an ordered list of fields, each tagged with one of five
// value types (string, integer, float, boolean, object) and a multiplicity
// (single or list). Descriptors are constructed once with Build, ImportText,
// or Infer and are never mutated afterwards; all accessors return copies.
//
//	desc, err := schema.Build("Tweet", []schema.FieldSpec{
//	    {Name: "tweet", Type: "str", Description: "A tweet advertising the movie"},
//	})
//
// Values are checked structurally at every boundary through Conform, which
// null-fills missing fields, drops undeclared ones, and canonicalizes numbers
// to int64 and float64.
package schema

import (
	"fmt"
	"strings"
)

// FieldSpec is one row of a caller-supplied field table. A field is a list
// when Type is "list[T]", Multiplicity is List, or List is set.
type FieldSpec struct {
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Type         string       `json:"type" yaml:"type"`
	Multiplicity Multiplicity `json:"multiplicity,omitempty" yaml:"multiplicity,omitempty"`
	List         bool         `json:"list,omitempty" yaml:"list,omitempty"`
}

// Field is a validated field of a Descriptor.
type Field struct {
	Name         string
	Description  string
	Type         ValueType
	Multiplicity Multiplicity
}

// IsList reports whether the field holds a list of values.
func (f Field) IsList() bool {
	return f.Multiplicity == List
}

// TypeName renders the field type, e.g. "integer" or "list[string]".
func (f Field) TypeName() string {
	if f.IsList() {
		return "list[" + f.Type.String() + "]"
	}
	return f.Type.String()
}

// Spec converts the field back into its table form.
func (f Field) Spec() FieldSpec {
	return FieldSpec{
		Name:         f.Name,
		Description:  f.Description,
		Type:         f.Type.String(),
		Multiplicity: f.Multiplicity,
	}
}

// Descriptor is an immutable, ordered set of uniquely named fields.
type Descriptor struct {
	name        string
	description string
	fields      []Field
	index       map[string]int
}

// Build validates specs and returns a Descriptor. Field order is preserved.
// A type name of the form "list[T]" implies list multiplicity.
func Build(name string, specs []FieldSpec) (*Descriptor, error) {
	return build(name, "", specs)
}

func build(name, description string, specs []FieldSpec) (*Descriptor, error) {
	if len(specs) == 0 {
		return nil, &SchemaError{Index: -1, Err: ErrNoFields}
	}

	d := &Descriptor{
		name:        strings.TrimSpace(name),
		description: description,
		fields:      make([]Field, 0, len(specs)),
		index:       make(map[string]int, len(specs)),
	}

	for i, spec := range specs {
		fieldName := strings.TrimSpace(spec.Name)
		if fieldName == "" {
			return nil, &SchemaError{Field: spec.Name, Index: i, Err: ErrEmptyFieldName}
		}
		if _, exists := d.index[fieldName]; exists {
			return nil, &SchemaError{Field: fieldName, Index: i, Err: ErrDuplicateField}
		}

		typ, mult, err := ParseTypeName(spec.Type)
		if err != nil {
			return nil, &SchemaError{Field: fieldName, Index: i, Err: err}
		}
		if spec.Multiplicity == List || spec.List {
			mult = List
		}

		d.index[fieldName] = len(d.fields)
		d.fields = append(d.fields, Field{
			Name:         fieldName,
			Description:  spec.Description,
			Type:         typ,
			Multiplicity: mult,
		})
	}

	return d, nil
}

// Name returns the type name given at construction. It may be empty.
func (d *Descriptor) Name() string {
	return d.name
}

// Description returns the optional type-level description.
func (d *Descriptor) Description() string {
	return d.description
}

// Len returns the number of fields.
func (d *Descriptor) Len() int {
	return len(d.fields)
}

// Fields returns a copy of the ordered field list.
func (d *Descriptor) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Names returns the field names in declaration order.
func (d *Descriptor) Names() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name.
func (d *Descriptor) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}

// Has reports whether name is declared.
func (d *Descriptor) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Specs returns the field table that rebuilds this descriptor.
func (d *Descriptor) Specs() []FieldSpec {
	specs := make([]FieldSpec, len(d.fields))
	for i, f := range d.fields {
		specs[i] = f.Spec()
	}
	return specs
}

// Equal reports structural equality: same fields, same order, same tags.
// Names and descriptions of the type itself are not compared.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.fields) != len(other.fields) {
		return false
	}
	for i, f := range d.fields {
		o := other.fields[i]
		if f.Name != o.Name || f.Type != o.Type || f.Multiplicity != o.Multiplicity {
			return false
		}
	}
	return true
}

// Union returns a descriptor holding d's fields followed by other's fields
// that d does not declare. On a name collision other's definition wins,
// keeping d's position. The result carries other's name when it has one.
func (d *Descriptor) Union(other *Descriptor) *Descriptor {
	out := &Descriptor{
		name:        d.name,
		description: d.description,
		fields:      make([]Field, 0, len(d.fields)+len(other.fields)),
		index:       make(map[string]int, len(d.fields)+len(other.fields)),
	}
	for _, f := range d.fields {
		if of, ok := other.Field(f.Name); ok {
			f = of
		}
		out.index[f.Name] = len(out.fields)
		out.fields = append(out.fields, f)
	}
	for _, f := range other.fields {
		if _, exists := out.index[f.Name]; exists {
			continue
		}
		out.index[f.Name] = len(out.fields)
		out.fields = append(out.fields, f)
	}
	return out
}

// WithField returns a copy of d with f appended. It fails when the name is
// already declared.
func (d *Descriptor) WithField(f Field) (*Descriptor, error) {
	if d.Has(f.Name) {
		return nil, &SchemaError{Field: f.Name, Index: len(d.fields), Err: ErrDuplicateField}
	}
	out := &Descriptor{
		name:        d.name,
		description: d.description,
		fields:      append(d.Fields(), f),
		index:       make(map[string]int, len(d.fields)+1),
	}
	for i, field := range out.fields {
		out.index[field.Name] = i
	}
	return out, nil
}

// String renders the descriptor as Name{field: type, ...}.
func (d *Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.name)
	b.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", f.Name, f.TypeName())
	}
	b.WriteByte('}')
	return b.String()
}
