package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/agentics/schema"
)

// Catalog resolves type names to descriptors. It keeps an index of the keys
// in its Store and parses each definition at most once. All methods are safe
// for concurrent use.
type Catalog struct {
	store       Store
	index       map[string]bool
	descriptors map[string]*schema.Descriptor
	mu          sync.RWMutex
}

// New creates a Catalog backed by store. Call Bootstrap to index it.
func New(store Store) *Catalog {
	return &Catalog{
		store:       store,
		index:       make(map[string]bool),
		descriptors: make(map[string]*schema.Descriptor),
	}
}

// Bootstrap indexes every definition in the store without parsing any.
func (c *Catalog) Bootstrap(ctx context.Context) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap index: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if name, ok := keyName(key); ok {
			c.index[name] = true
		}
	}
	return nil
}

// Names returns the indexed type names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.index))
	for name := range c.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is indexed.
func (c *Catalog) Has(name string) bool {
	name, _ = keyName(Key(name))

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index[name]
}

// Descriptor returns the descriptor for name, loading and parsing the
// definition on first use. A definition that fails to parse is reported as
// *schema.SchemaParseError or *schema.SchemaError and is not cached.
func (c *Catalog) Descriptor(ctx context.Context, name string) (*schema.Descriptor, error) {
	key := Key(name)
	short, _ := keyName(key)

	c.mu.RLock()
	desc, cached := c.descriptors[short]
	c.mu.RUnlock()
	if cached {
		return desc, nil
	}

	entries, err := c.store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}

	desc, err = schema.ImportText(string(entries[0].Value))
	if err != nil {
		return nil, fmt.Errorf("catalog type %s: %w", name, err)
	}

	c.mu.Lock()
	c.descriptors[short] = desc
	c.index[short] = true
	c.mu.Unlock()
	return desc, nil
}

// Put stores desc under its own name, replacing any previous definition.
func (c *Catalog) Put(ctx context.Context, desc *schema.Descriptor) error {
	if desc.Name() == "" {
		return ErrNoName
	}
	text, err := desc.Export()
	if err != nil {
		return fmt.Errorf("export %s: %w", desc.Name(), err)
	}

	key := Key(desc.Name())
	if err := c.store.Save(ctx, Entry{Key: key, Value: text}); err != nil {
		return err
	}

	short, _ := keyName(key)
	c.mu.Lock()
	c.descriptors[short] = desc
	c.index[short] = true
	c.mu.Unlock()
	return nil
}

// Remove deletes name from the store and the index.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	key := Key(name)
	if err := c.store.Delete(ctx, key); err != nil {
		return err
	}

	short, _ := keyName(key)
	c.mu.Lock()
	delete(c.descriptors, short)
	delete(c.index, short)
	c.mu.Unlock()
	return nil
}
