package runs

import "fmt"

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config selects the ledger backend.
//
//	{"driver": "sqlite", "path": "runs.db"}
type Config struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

// DefaultConfig returns an in-memory ledger.
func DefaultConfig() Config {
	return Config{Driver: DriverMemory}
}

func (c *Config) Merge(source *Config) {
	if source.Driver != "" {
		c.Driver = source.Driver
	}
	if source.Path != "" {
		c.Path = source.Path
	}
}

// Open creates the Store selected by c. A sqlite driver without a path
// opens a private in-memory database.
func Open(c Config) (Store, error) {
	switch c.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		path := c.Path
		if path == "" {
			path = ":memory:"
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, c.Driver)
	}
}
