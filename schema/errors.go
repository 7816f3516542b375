package schema

import (
	"fmt"

	"github.com/tailored-agentic-units/agentics/core/stage"
)

// Sentinel errors for schema construction and value checking.
var (
	ErrUnknownType     = stage.NewError(stage.Schema, "unknown value type")
	ErrDuplicateField  = stage.NewError(stage.Schema, "duplicate field name")
	ErrEmptyFieldName  = stage.NewError(stage.Schema, "empty field name")
	ErrNoFields        = stage.NewError(stage.Schema, "schema declares no fields")
	ErrTypeMismatch    = stage.NewError(stage.Schema, "value does not match field type")
	ErrAmbiguousType   = stage.NewError(stage.Schema, "field holds values of incompatible types")
	ErrMalformedSchema = stage.NewError(stage.Schema, "malformed type definition")
)

// SchemaError reports an invalid field definition. Index is the position of
// the offending field in the input list, or -1 when the error concerns the
// definition as a whole.
type SchemaError struct {
	Field string
	Index int
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("schema: %v", e.Err)
	}
	return fmt.Sprintf("schema: field %d (%q): %v", e.Index, e.Field, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func (e *SchemaError) Stage() stage.Stage { return stage.Schema }

// SchemaParseError reports type definition text that could not be parsed.
type SchemaParseError struct {
	Line int
	Err  error
}

func (e *SchemaParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("schema parse: line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("schema parse: %v", e.Err)
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

func (e *SchemaParseError) Stage() stage.Stage { return stage.Schema }

// FieldError reports a value that does not conform to its field. Callers
// that know the row position wrap it into their own error type.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }
