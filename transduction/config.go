package transduction

import "github.com/tailored-agentic-units/agentics/provider"

// Config controls batching, concurrency and timeouts.
//
// Example JSON:
//
//	{
//	  "observer": "slog",
//	  "batch_size": 10,
//	  "call_timeout": "30s",
//	  "operation_timeout": "10m",
//	  "max_concurrency": 0
//	}
type Config struct {
	// Observer names a registered observer, or a comma-separated list.
	Observer string `json:"observer" yaml:"observer"`

	// BatchSize is the default number of records per batch. Within a batch
	// every record gets its own concurrent call.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// CallTimeout bounds one provider call. Expiry fails that record only.
	CallTimeout provider.Duration `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`

	// OperationTimeout bounds a whole invocation. Expiry fails the run.
	OperationTimeout provider.Duration `json:"operation_timeout,omitempty" yaml:"operation_timeout,omitempty"`

	// MaxConcurrency caps calls in flight below the batch size (0 = no cap).
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
}

// DefaultConfig returns batches of 10 with no timeouts and the slog
// observer.
func DefaultConfig() Config {
	return Config{
		Observer:  "slog",
		BatchSize: 10,
	}
}

func (c *Config) Merge(source *Config) {
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.BatchSize > 0 {
		c.BatchSize = source.BatchSize
	}
	if source.CallTimeout > 0 {
		c.CallTimeout = source.CallTimeout
	}
	if source.OperationTimeout > 0 {
		c.OperationTimeout = source.OperationTimeout
	}
	if source.MaxConcurrency > 0 {
		c.MaxConcurrency = source.MaxConcurrency
	}
}

func (c *Config) concurrency(batchSize int) int {
	if c.MaxConcurrency > 0 && c.MaxConcurrency < batchSize {
		return c.MaxConcurrency
	}
	return batchSize
}
