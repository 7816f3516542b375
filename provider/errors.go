package provider

import (
	"context"
	"errors"

	"github.com/tailored-agentic-units/agentics/core/stage"
)

// Systemic failures: the backend as a whole cannot serve the operation.
var (
	ErrUnauthorized = stage.NewError(stage.Transduction, "provider rejected credentials")
	ErrUnavailable  = stage.NewError(stage.Transduction, "provider unavailable")
	ErrRateLimited  = stage.NewError(stage.Transduction, "provider rate limit exceeded")
)

// Per-record failures: one call produced nothing usable.
var (
	ErrMalformedOutput = stage.NewError(stage.Transduction, "provider output is not a valid structured value")
	ErrNonConforming   = stage.NewError(stage.Transduction, "provider output does not conform to the target type")
	ErrRefused         = stage.NewError(stage.Transduction, "provider refused the request")
)

// Configuration and registry errors.
var (
	ErrUnknownKind       = stage.NewError(stage.Transduction, "unknown provider kind")
	ErrMissingModel      = stage.NewError(stage.Transduction, "provider model is required")
	ErrMissingBaseURL    = stage.NewError(stage.Transduction, "provider base url is required")
	ErrProviderNotFound  = stage.NewError(stage.Transduction, "provider not found")
	ErrProviderExists    = stage.NewError(stage.Transduction, "provider already exists")
	ErrEmptyProviderName = stage.NewError(stage.Transduction, "provider name is empty")
)

// IsSystemic reports whether err must abort the whole operation rather than
// null the one record it belongs to. Cancellation counts as systemic; a
// deadline does not, since per-call timeouts are per-record failures. The
// engine checks the operation deadline separately.
func IsSystemic(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.Canceled)
}
