package workflows

// ProgressFunc reports parallel progress. It is called once per successful
// item with the running count of completed items; calls are serialized, so
// implementations need no locking of their own.
type ProgressFunc[TResult any] func(
	completed int,
	total int,
	result TResult,
)
