// Package runs keeps a ledger of transduction invocations: identity, kind,
// status transitions, counts, per-record failures and the systemic cause of
// a failed run. The ledger is an audit trail; results are never replayed
// from it.
package runs

import (
	"context"
	"time"

	"github.com/tailored-agentic-units/agentics/core/stage"
)

var (
	ErrNotFound      = stage.NewError(stage.Transduction, "run not found")
	ErrExists        = stage.NewError(stage.Transduction, "run already exists")
	ErrUnknownDriver = stage.NewError(stage.Transduction, "unknown ledger driver")
)

// Run is one ledger entry.
type Run struct {
	ID         string    `json:"id"`
	Operation  string    `json:"operation"`
	Target     string    `json:"target"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Failure is one per-record failure of a run.
type Failure struct {
	RunID string `json:"run_id"`
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Store persists runs. Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a new run. It fails with ErrExists on a duplicate id.
	Create(ctx context.Context, run Run) error

	// Update replaces the mutable fields of an existing run.
	Update(ctx context.Context, run Run) error

	// RecordFailure appends a per-record failure to a run.
	RecordFailure(ctx context.Context, failure Failure) error

	// Get returns a run by id or ErrNotFound.
	Get(ctx context.Context, id string) (Run, error)

	// Failures returns a run's failures ordered by record index.
	Failures(ctx context.Context, id string) ([]Failure, error)

	// List returns the most recent runs first, at most limit (0 = all).
	List(ctx context.Context, limit int) ([]Run, error)

	Close() error
}
