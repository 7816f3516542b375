package catalog

import "context"

// Config selects where definitions live.
type Config struct {
	// Path is the definition directory. Empty keeps the catalog in memory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// SeedNil controls whether built-in types are written into the store
	// when missing. Defaults to true.
	SeedNil *bool `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultConfig returns an in-memory, seeded catalog configuration.
func DefaultConfig() Config {
	seed := true
	return Config{SeedNil: &seed}
}

// Seed returns whether built-in types are seeded.
func (c *Config) Seed() bool {
	if c.SeedNil == nil {
		return true
	}
	return *c.SeedNil
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.SeedNil != nil {
		c.SeedNil = source.SeedNil
	}
}

// Open creates and bootstraps a Catalog from configuration.
func Open(ctx context.Context, cfg *Config) (*Catalog, error) {
	var store Store
	if cfg.Path == "" {
		store = NewMemoryStore()
	} else {
		store = NewFileStore(cfg.Path)
	}

	if cfg.Seed() {
		if _, err := Seed(ctx, store, false); err != nil {
			return nil, err
		}
	}

	c := New(store)
	if err := c.Bootstrap(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
