// Package stage identifies which part of the transduction pipeline produced an
// error, so callers can tell configuration mistakes apart from runtime backend
// failures.
package stage

import "errors"

// Stage names a pipeline stage.
type Stage string

const (
	Unknown      Stage = ""
	Schema       Stage = "schema"
	Ingestion    Stage = "ingestion"
	Transduction Stage = "transduction"
	Composition  Stage = "composition"
	Emission     Stage = "emission"
)

// Staged is implemented by errors that know their originating stage.
type Staged interface {
	error
	Stage() Stage
}

// Of returns the stage of the first Staged error in err's chain.
func Of(err error) Stage {
	var s Staged
	if errors.As(err, &s) {
		return s.Stage()
	}
	return Unknown
}

// IsConfiguration reports whether err was raised before any provider call,
// i.e. the caller handed over an invalid schema or invalid rows.
func IsConfiguration(err error) bool {
	switch Of(err) {
	case Schema, Ingestion:
		return true
	default:
		return false
	}
}

// Error is a sentinel error bound to the stage that raises it. Packages
// declare their sentinels with NewError so that wrapped or bare, stage.Of
// reports where they came from.
type Error struct {
	stage Stage
	msg   string
}

// NewError returns a sentinel error for s. Compare with errors.Is.
func NewError(s Stage, msg string) *Error {
	return &Error{stage: s, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Stage() Stage { return e.stage }
