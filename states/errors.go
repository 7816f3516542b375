package states

import (
	"fmt"

	"github.com/tailored-agentic-units/agentics/core/stage"
)

// Sentinel errors for collection operations.
var (
	ErrMisaligned     = stage.NewError(stage.Composition, "collections are not aligned")
	ErrNoSchema       = stage.NewError(stage.Schema, "collection has no schema")
	ErrExplanationLen = stage.NewError(stage.Composition, "explanation count does not match record count")
)

// ValidationError reports a row whose value does not match its field during
// ingestion. Missing fields never produce a ValidationError; they are
// null-filled.
type ValidationError struct {
	RowIndex int
	Field    string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: field %q: %v", e.RowIndex, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Stage() stage.Stage { return stage.Ingestion }

// AlignmentError reports a positional operator applied to collections of
// different lengths. No partial result accompanies it.
type AlignmentError struct {
	Op    string
	Left  int
	Right int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("%s: %v: left has %d records, right has %d", e.Op, ErrMisaligned, e.Left, e.Right)
}

func (e *AlignmentError) Unwrap() error { return ErrMisaligned }

func (e *AlignmentError) Stage() stage.Stage { return stage.Composition }
