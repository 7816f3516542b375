package workflows

// ParallelConfig controls worker pool sizing and the observer used by
// ProcessParallel.
//
// Example JSON:
//
//	{
//	  "max_workers": 4,
//	  "observer": "slog"
//	}
type ParallelConfig struct {
	// MaxWorkers bounds the goroutines in flight. Zero or negative means
	// one worker per item.
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`

	// Observer names a registered observer ("noop", "slog", ...).
	Observer string `json:"observer" yaml:"observer"`
}

// workers returns the pool size for itemCount items.
func (c *ParallelConfig) workers(itemCount int) int {
	if c.MaxWorkers <= 0 {
		return itemCount
	}
	return min(c.MaxWorkers, itemCount)
}
