package workflows

import (
	"fmt"
	"sort"
	"strings"
)

// TaskError captures the failure of one item: its position in the input
// slice, the item, and the processor's error.
type TaskError[TItem any] struct {
	Index int
	Item  TItem
	Err   error
}

func (e TaskError[TItem]) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e TaskError[TItem]) Unwrap() error {
	return e.Err
}

// ParallelResult holds ordered results. Results is dense: it holds only the
// successes, in input order. Errors holds only the failures, also in input
// order. Items skipped after the first failure appear in neither.
type ParallelResult[TItem, TResult any] struct {
	Results []TResult
	Errors  []TaskError[TItem]
}

// ParallelError is returned when any item failed.
//
// Message formats:
//   - "parallel execution failed: item 5: connection refused"
//   - "parallel execution failed: 4 items failed with 2 error types: 'connection refused' (3 items), 'timeout' (1 item)"
type ParallelError[TItem any] struct {
	Errors []TaskError[TItem]
}

func (e *ParallelError[TItem]) Error() string {
	if len(e.Errors) == 0 {
		return "parallel execution failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("parallel execution failed: item %d: %v",
			e.Errors[0].Index, e.Errors[0].Err,
		)
	}

	errorCounts := make(map[string]int)
	for _, taskErr := range e.Errors {
		errorCounts[taskErr.Err.Error()]++
	}

	type errorSummary struct {
		msg   string
		count int
	}
	var summaries []errorSummary
	for msg, count := range errorCounts {
		summaries = append(summaries, errorSummary{msg, count})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].count == summaries[j].count {
			return summaries[i].msg < summaries[j].msg
		}
		return summaries[i].count > summaries[j].count
	})

	var parts []string
	for _, s := range summaries {
		if s.count == 1 {
			parts = append(parts, fmt.Sprintf("'%s' (1 item)", s.msg))
		} else {
			parts = append(parts, fmt.Sprintf("'%s' (%d items)", s.msg, s.count))
		}
	}

	return fmt.Sprintf(
		"parallel execution failed: %d items failed with %d error types: %s",
		len(e.Errors), len(errorCounts), strings.Join(parts, ", "),
	)
}

// Unwrap exposes every task error so errors.Is and errors.As search across
// all failures.
func (e *ParallelError[TItem]) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, taskErr := range e.Errors {
		errs[i] = taskErr.Err
	}
	return errs
}
