// Package provider is the boundary between the transduction engine and an
// inference backend. A Provider turns one request (instructions, an input,
// and a target type) into one structured value of that type.
//
// Backends:
//   - "openai":  an OpenAI-compatible chat-completions endpoint over HTTP,
//     using a strict json_schema response format
//   - "connect": a remote Generate procedure spoken over Connect
//   - "grpc":    the same procedure spoken over plain gRPC
//   - "mock":    an in-process backend for tests and dry runs
//
// Errors are classified once, here: ErrUnauthorized, ErrUnavailable and
// ErrRateLimited are systemic and abort a whole operation; anything else is
// a per-record failure.
package provider

import (
	"context"

	"github.com/tailored-agentic-units/agentics/schema"
)

// Request is one inference call.
type Request struct {
	// Instructions guide the transformation. May be empty.
	Instructions string

	// Input is the source value: a record (map[string]any) for map calls, a
	// list of records ([]any) for reduce calls, nil for generation.
	Input any

	// Target describes the value the backend must return.
	Target *schema.Descriptor

	// Explain asks the backend for a rationale alongside the value.
	Explain bool

	// Index is the position the result will occupy in the output.
	Index int
}

// Response is the backend's answer. Value has not been checked against the
// target; callers run it through Target.Conform.
type Response struct {
	Value       map[string]any
	Explanation string
}

// Provider performs inference calls. Implementations must be safe for
// concurrent use.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// Closer is implemented by providers holding connections.
type Closer interface {
	Close() error
}

// Close releases p's resources when it holds any.
func Close(p Provider) error {
	if c, ok := p.(Closer); ok {
		return c.Close()
	}
	return nil
}
