package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Definition is the declarative form of a type, as read by ImportText and
// written by Export. JSON documents are valid input since JSON is a subset
// of YAML.
//
//	name: Movie
//	fields:
//	  - name: movie_name
//	    type: str
//	  - name: genre
//	    type: str
//	  - name: cast
//	    type: list[str]
type Definition struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldSpec `json:"fields" yaml:"fields"`
}

// ImportText parses a type definition. The text is data, never code: only
// the keys of Definition are accepted and the result goes through Build, so
// every rule that applies to field tables applies here too.
func ImportText(text string) (*Descriptor, error) {
	def, err := ParseDefinition([]byte(text))
	if err != nil {
		return nil, err
	}
	return def.Descriptor()
}

// ParseDefinition decodes definition text without building a descriptor.
func ParseDefinition(data []byte) (*Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &SchemaParseError{Err: fmt.Errorf("%w: empty definition", ErrMalformedSchema)}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaParseError{Err: fmt.Errorf("%w: empty definition", ErrMalformedSchema)}
		}
		return nil, &SchemaParseError{Line: yamlLine(err), Err: fmt.Errorf("%w: %v", ErrMalformedSchema, err)}
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, &SchemaParseError{Err: fmt.Errorf("%w: multiple documents", ErrMalformedSchema)}
	}

	return &def, nil
}

// Descriptor builds the definition's descriptor.
func (def *Definition) Descriptor() (*Descriptor, error) {
	return build(def.Name, def.Description, def.Fields)
}

// Definition returns the declarative form of d.
func (d *Descriptor) Definition() Definition {
	return Definition{
		Name:        d.name,
		Description: d.description,
		Fields:      d.Specs(),
	}
}

// Export renders d as definition text accepted by ImportText.
func (d *Descriptor) Export() ([]byte, error) {
	def := d.Definition()
	return yaml.Marshal(&def)
}

var yamlLineRe = regexp.MustCompile(`line (\d+)`)

func yamlLine(err error) int {
	m := yamlLineRe.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
