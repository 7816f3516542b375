// Package workflows runs independent work items on a bounded worker pool
// and returns their results in input order regardless of completion order.
package workflows

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/agentics/observability"
)

const source = "workflows.ProcessParallel"

// TaskProcessor processes one item. It receives no shared state; each call
// is independent of every other.
//
//	processor := func(ctx context.Context, batch []states.Record) (batchResult, error) {
//	    return callBackend(ctx, batch)
//	}
type TaskProcessor[TItem, TResult any] func(
	ctx context.Context,
	item TItem,
) (TResult, error)

// ProcessParallel distributes items over a pool of at most
// min(MaxWorkers, len(items)) goroutines and collects results by index, so
// the returned slices follow input order even when later items finish first.
//
// The first processor error cancels the remaining work and is returned as
// *ParallelError together with whatever completed. progress, when non-nil,
// is called once per successful item.
//
// Cancellation of ctx stops scheduling; the error wraps ctx.Err().
func ProcessParallel[TItem, TResult any](
	ctx context.Context,
	cfg ParallelConfig,
	items []TItem,
	processor TaskProcessor[TItem, TResult],
	progress ProgressFunc[TResult],
) (ParallelResult[TItem, TResult], error) {
	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		return ParallelResult[TItem, TResult]{}, fmt.Errorf("failed to resolve observer: %w", err)
	}

	workerCount := cfg.workers(len(items))

	observability.Emit(ctx, observer, EventParallelStart, observability.LevelInfo, source, map[string]any{
		"item_count":            len(items),
		"worker_count":          workerCount,
		"has_progress_callback": progress != nil,
	})

	if len(items) == 0 {
		complete(ctx, observer, 0, 0, false)
		return ParallelResult[TItem, TResult]{
			Results: []TResult{},
			Errors:  []TaskError[TItem]{},
		}, nil
	}

	group, runCtx := errgroup.WithContext(ctx)
	group.SetLimit(workerCount)

	outcomes := make([]outcome[TResult], len(items))

	var (
		progressMu sync.Mutex
		completed  int
	)

	for i := range items {
		if runCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			if runCtx.Err() != nil {
				return nil
			}

			observability.Emit(runCtx, observer, EventWorkerStart, observability.LevelVerbose, source, map[string]any{
				"item_index":  i,
				"total_items": len(items),
			})

			result, err := processor(runCtx, items[i])

			observability.Emit(runCtx, observer, EventWorkerComplete, observability.LevelVerbose, source, map[string]any{
				"item_index":  i,
				"total_items": len(items),
				"error":       err != nil,
			})

			if err != nil {
				outcomes[i] = outcome[TResult]{err: err, done: true}
				return err
			}

			outcomes[i] = outcome[TResult]{result: result, done: true}
			if progress != nil {
				progressMu.Lock()
				completed++
				progress(completed, len(items), result)
				progressMu.Unlock()
			}
			return nil
		})
	}

	// Task errors are kept per index in outcomes; the group error only
	// drives cancellation.
	_ = group.Wait()

	result := collectResults(outcomes, items)

	if ctx.Err() != nil {
		complete(ctx, observer, len(result.Results), len(result.Errors), true)
		return result, fmt.Errorf("parallel execution cancelled: %w", ctx.Err())
	}

	if len(result.Errors) > 0 {
		complete(ctx, observer, len(result.Results), len(result.Errors), true)
		return result, &ParallelError[TItem]{Errors: result.Errors}
	}

	complete(ctx, observer, len(result.Results), len(result.Errors), false)
	return result, nil
}

type outcome[TResult any] struct {
	result TResult
	err    error
	done   bool
}

func complete(ctx context.Context, observer observability.Observer, processed, failed int, isErr bool) {
	observability.Emit(ctx, observer, EventParallelComplete, observability.LevelInfo, source, map[string]any{
		"items_processed": processed,
		"items_failed":    failed,
		"error":           isErr,
	})
}

// collectResults walks outcomes by index so both dense slices follow input
// order.
func collectResults[TItem, TResult any](outcomes []outcome[TResult], items []TItem) ParallelResult[TItem, TResult] {
	result := ParallelResult[TItem, TResult]{
		Results: make([]TResult, 0, len(outcomes)),
		Errors:  []TaskError[TItem]{},
	}

	for i, o := range outcomes {
		if !o.done {
			continue
		}
		if o.err != nil {
			result.Errors = append(result.Errors, TaskError[TItem]{
				Index: i,
				Item:  items[i],
				Err:   o.err,
			})
			continue
		}
		result.Results = append(result.Results, o.result)
	}

	return result
}
