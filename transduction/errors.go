package transduction

import (
	"fmt"

	"github.com/tailored-agentic-units/agentics/core/stage"
)

var (
	ErrNoTarget          = stage.NewError(stage.Schema, "transduction target type is required")
	ErrNoProvider        = stage.NewError(stage.Transduction, "transduction provider is required")
	ErrNegativeCount     = stage.NewError(stage.Transduction, "generate count must not be negative")
	ErrUnknownKind       = stage.NewError(stage.Transduction, "unknown transduction kind")
	ErrInvalidTransition = stage.NewError(stage.Transduction, "invalid status transition")
)

// OperationError reports an invocation that ended FAILED. Its partial
// output was discarded.
type OperationError struct {
	RunID string
	Kind  Kind
	Err   error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s run %s failed: %v", e.Kind, e.RunID, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Stage() stage.Stage { return stage.Transduction }

// RecordFailure is a per-record failure: the output record at Index was
// null-filled because the call failed or its answer did not conform.
type RecordFailure struct {
	Index int
	Err   error
}

func (f RecordFailure) Error() string {
	return fmt.Sprintf("record %d: %v", f.Index, f.Err)
}

func (f RecordFailure) Unwrap() error { return f.Err }
