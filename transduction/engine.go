// Package transduction turns a state collection into a collection of a
// target type by asking an inference provider for one structured value per
// record.
//
// Three operations share one execution discipline:
//   - RunMap: one call per source record, output[i] derived from input[i]
//   - RunReduce: one call over the whole serialized collection, one record out
//   - RunGenerate: count calls with no input
//
// Records are processed in consecutive batches. Within a batch every record
// gets its own concurrent call, and each result is written back to the index
// it came from, so output order never depends on completion order.
//
// A call that fails or returns a value that does not conform to the target
// leaves a null-filled record at its index and is reported in
// Result.Failures; the run still completes. A systemic failure (rejected
// credentials, unreachable backend, rate limiting, cancellation, or the
// operation deadline) aborts in-flight calls, discards partial output and
// ends the run FAILED with *OperationError.
//
//	engine, err := transduction.New(p, &cfg)
//	result, err := engine.RunMap(ctx, movies, transduction.Spec{
//	    Target:       tweetSchema,
//	    Instructions: "Generate a tweet for the movie",
//	})
package transduction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/agentics/observability"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/runs"
	"github.com/tailored-agentic-units/agentics/schema"
	"github.com/tailored-agentic-units/agentics/states"
	"github.com/tailored-agentic-units/agentics/workflows"
)

const source = "transduction.Engine"

// Spec describes one invocation.
type Spec struct {
	// Target is the type every output record conforms to.
	Target *schema.Descriptor

	// Instructions guide the provider. May be empty.
	Instructions string

	// Explain requests one explanation per output record.
	Explain bool

	// BatchSize overrides the engine's default when positive.
	BatchSize int
}

// Result is a completed invocation.
type Result struct {
	RunID      string
	Kind       Kind
	Status     Status
	Collection states.Collection
	Failures   []RecordFailure
}

// Option configures an Engine after config-driven initialization.
type Option func(*Engine)

// WithObserver overrides the observer resolved from Config.Observer.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLedger records every invocation in store.
func WithLedger(store runs.Store) Option {
	return func(e *Engine) { e.ledger = store }
}

// WithIDGenerator replaces the random run id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine executes transductions against one provider. It holds no
// per-invocation state and is safe for concurrent use.
type Engine struct {
	provider provider.Provider
	cfg      Config
	observer observability.Observer
	ledger   runs.Store
	newID    func() string
}

// New creates an Engine. cfg is merged over DefaultConfig.
func New(p provider.Provider, cfg *Config, opts ...Option) (*Engine, error) {
	if p == nil {
		return nil, ErrNoProvider
	}

	merged := DefaultConfig()
	if cfg != nil {
		merged.Merge(cfg)
	}

	observer, err := observability.GetObserver(merged.Observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	e := &Engine{
		provider: p,
		cfg:      merged,
		observer: observer,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RunMap derives one target record from every source record.
func (e *Engine) RunMap(ctx context.Context, src states.Collection, spec Spec) (*Result, error) {
	records := src.Records()
	return e.run(ctx, KindMap, spec, len(records), func(i int) any {
		return records[i].Map()
	})
}

// RunReduce derives a single target record from the whole source
// collection in one call.
func (e *Engine) RunReduce(ctx context.Context, src states.Collection, spec Spec) (*Result, error) {
	rows := src.Rows()
	input := make([]any, len(rows))
	for i, row := range rows {
		input[i] = row
	}
	return e.run(ctx, KindReduce, spec, 1, func(int) any {
		return input
	})
}

// RunGenerate produces count target records from instructions alone.
func (e *Engine) RunGenerate(ctx context.Context, spec Spec, count int) (*Result, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeCount, count)
	}
	return e.run(ctx, KindGenerate, spec, count, func(int) any {
		return nil
	})
}

// Run dispatches on kind. count is used by KindGenerate only.
func (e *Engine) Run(ctx context.Context, kind Kind, src states.Collection, spec Spec, count int) (*Result, error) {
	switch kind {
	case KindMap:
		return e.RunMap(ctx, src, spec)
	case KindReduce:
		return e.RunReduce(ctx, src, spec)
	case KindGenerate:
		return e.RunGenerate(ctx, spec, count)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// outcome is the per-index result of one call.
type outcome struct {
	value       map[string]any
	explanation *states.Explanation
	err         error
}

func (e *Engine) run(ctx context.Context, kind Kind, spec Spec, n int, input func(int) any) (*Result, error) {
	if spec.Target == nil {
		return nil, ErrNoTarget
	}

	batchSize := e.cfg.BatchSize
	if spec.BatchSize > 0 {
		batchSize = spec.BatchSize
	}

	inv := newInvocation(e.newID(), kind)
	ctx = observability.WithRunID(ctx, inv.id)

	ledgerRun := runs.Run{
		ID:        inv.id,
		Operation: string(kind),
		Target:    spec.Target.Name(),
		Status:    string(StatusPending),
		Total:     n,
		StartedAt: time.Now().UTC(),
	}
	e.ledgerCall(ctx, func(ctx context.Context) error { return e.ledger.Create(ctx, ledgerRun) })

	observability.Emit(ctx, e.observer, EventRunStart, observability.LevelInfo, source, map[string]any{
		"run_id":     inv.id,
		"kind":       string(kind),
		"target":     spec.Target.Name(),
		"records":    n,
		"batch_size": batchSize,
		"explain":    spec.Explain,
	})

	_ = inv.transition(StatusRunning)
	ledgerRun.Status = string(StatusRunning)
	e.ledgerCall(ctx, func(ctx context.Context) error { return e.ledger.Update(ctx, ledgerRun) })

	opCtx := ctx
	if e.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, e.cfg.OperationTimeout.Std())
		defer cancel()
	}

	outcomes := make([]outcome, n)
	parallel := workflows.ParallelConfig{
		MaxWorkers: e.cfg.concurrency(batchSize),
		Observer:   e.cfg.Observer,
	}

	var (
		failuresMu sync.Mutex
		failures   []RecordFailure
	)

	processor := func(callParent context.Context, i int) (int, error) {
		o, systemic := e.call(callParent, spec, i, input(i))
		if systemic != nil {
			return i, systemic
		}
		outcomes[i] = o
		if o.err != nil {
			failuresMu.Lock()
			failures = append(failures, RecordFailure{Index: i, Err: o.err})
			failuresMu.Unlock()

			observability.Emit(ctx, e.observer, EventRecordFailed, observability.LevelWarning, source, map[string]any{
				"run_id": inv.id,
				"index":  i,
				"error":  o.err.Error(),
			})
			e.ledgerCall(ctx, func(ctx context.Context) error {
				return e.ledger.RecordFailure(ctx, runs.Failure{RunID: inv.id, Index: i, Error: o.err.Error()})
			})
		}
		return i, nil
	}

	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		indices := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			indices = append(indices, i)
		}

		observability.Emit(ctx, e.observer, EventBatchStart, observability.LevelVerbose, source, map[string]any{
			"run_id": inv.id,
			"start":  start,
			"size":   len(indices),
		})

		progress := func(completed, _ int, index int) {
			observability.Emit(ctx, e.observer, EventRecordProgress, observability.LevelVerbose, source, map[string]any{
				"run_id":    inv.id,
				"index":     index,
				"completed": start + completed,
				"total":     n,
				"failed":    outcomes[index].err != nil,
			})
		}

		_, err := workflows.ProcessParallel(opCtx, parallel, indices, processor, progress)
		if err == nil && opCtx.Err() != nil {
			err = opCtx.Err()
		}
		if err != nil {
			return nil, e.fail(ctx, inv, &ledgerRun, systemicCause(opCtx, err))
		}

		observability.Emit(ctx, e.observer, EventBatchComplete, observability.LevelVerbose, source, map[string]any{
			"run_id": inv.id,
			"start":  start,
			"size":   len(indices),
		})
	}

	records := make([]states.Record, n)
	explanations := make([]*states.Explanation, n)
	for i, o := range outcomes {
		if o.err != nil {
			records[i] = states.NewRecord(spec.Target.Null())
			continue
		}
		records[i] = states.NewRecord(o.value)
		explanations[i] = o.explanation
	}

	out := states.New(spec.Target, records).WithInstructions(spec.Instructions)
	if spec.Explain {
		var err error
		if out, err = out.WithExplanations(explanations); err != nil {
			return nil, e.fail(ctx, inv, &ledgerRun, err)
		}
	}

	sortFailures(failures)

	_ = inv.transition(StatusCompleted)
	ledgerRun.Status = string(StatusCompleted)
	ledgerRun.Failed = len(failures)
	ledgerRun.FinishedAt = time.Now().UTC()
	e.ledgerCall(ctx, func(ctx context.Context) error { return e.ledger.Update(ctx, ledgerRun) })

	observability.Emit(ctx, e.observer, EventRunComplete, observability.LevelInfo, source, map[string]any{
		"run_id":   inv.id,
		"kind":     string(kind),
		"records":  n,
		"failed":   len(failures),
		"duration": time.Since(ledgerRun.StartedAt).String(),
	})

	return &Result{
		RunID:      inv.id,
		Kind:       kind,
		Status:     inv.Status(),
		Collection: out,
		Failures:   failures,
	}, nil
}

// call performs one provider call. The second return value is non-nil only
// for systemic failures; per-record failures travel in outcome.err.
func (e *Engine) call(ctx context.Context, spec Spec, index int, input any) (outcome, error) {
	callCtx := ctx
	if e.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.CallTimeout.Std())
		defer cancel()
	}

	resp, err := e.provider.Generate(callCtx, provider.Request{
		Instructions: spec.Instructions,
		Input:        input,
		Target:       spec.Target,
		Explain:      spec.Explain,
		Index:        index,
	})
	if err != nil {
		if provider.IsSystemic(err) || ctx.Err() != nil {
			return outcome{}, err
		}
		return outcome{err: err}, nil
	}

	value, err := spec.Target.Conform(resp.Value)
	if err != nil {
		return outcome{err: fmt.Errorf("%w: %v", provider.ErrNonConforming, err)}, nil
	}

	o := outcome{value: value}
	if spec.Explain && resp.Explanation != "" {
		o.explanation = states.NewExplanation(resp.Explanation)
	}
	return o, nil
}

func (e *Engine) fail(ctx context.Context, inv *invocation, run *runs.Run, cause error) error {
	_ = inv.transition(StatusFailed)

	run.Status = string(StatusFailed)
	run.Error = cause.Error()
	run.FinishedAt = time.Now().UTC()
	e.ledgerCall(ctx, func(ctx context.Context) error { return e.ledger.Update(ctx, *run) })

	observability.Emit(ctx, e.observer, EventRunFailed, observability.LevelError, source, map[string]any{
		"run_id": inv.id,
		"kind":   string(inv.kind),
		"error":  cause.Error(),
	})

	return &OperationError{RunID: inv.id, Kind: inv.kind, Err: cause}
}

// ledgerCall writes to the ledger when one is configured. Ledger failures
// are reported as events and never change the outcome of a run.
func (e *Engine) ledgerCall(ctx context.Context, fn func(context.Context) error) {
	if e.ledger == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		observability.Emit(ctx, e.observer, EventLedgerError, observability.LevelWarning, source, map[string]any{
			"error": err.Error(),
		})
	}
}

// systemicCause unwraps the parallel error to the failing task's cause, or
// reports the context error when the operation itself was stopped.
func systemicCause(opCtx context.Context, err error) error {
	if ctxErr := opCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("operation deadline exceeded: %w", ctxErr)
		}
		return ctxErr
	}
	var pErr *workflows.ParallelError[int]
	if !errors.As(err, &pErr) || len(pErr.Errors) == 0 {
		return err
	}
	// Calls aborted by the first failure report cancellation; skip them.
	for _, taskErr := range pErr.Errors {
		if !errors.Is(taskErr.Err, context.Canceled) {
			return taskErr.Err
		}
	}
	return pErr.Errors[0].Err
}

func sortFailures(f []RecordFailure) {
	for i := 1; i < len(f); i++ {
		for j := i; j > 0 && f[j].Index < f[j-1].Index; j-- {
			f[j], f[j-1] = f[j-1], f[j]
		}
	}
}
