package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Info describes a registered provider without instantiating it.
type Info struct {
	Name  string
	Kind  Kind
	Model string
}

// Registry manages named provider configurations with lazy instantiation.
// Configs are stored at registration time; providers are created on first
// Get. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	configs   map[string]Config
	providers map[string]Provider
	factory   func(*Config) (Provider, error)
}

// NewRegistry creates an empty Registry that instantiates through New.
func NewRegistry() *Registry {
	return &Registry{
		configs:   make(map[string]Config),
		providers: make(map[string]Provider),
		factory:   New,
	}
}

// Get retrieves a named provider, instantiating it on first access.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, registered := r.configs[name]
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}

	if p, exists := r.providers[name]; exists {
		return p, nil
	}

	p, err := r.factory(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", name, err)
	}

	r.providers[name] = p
	return p, nil
}

// Set installs an already constructed provider under name, replacing any
// registration. Useful for tests and for providers built with options New
// does not expose.
func (r *Registry) Set(name string, p Provider) error {
	if name == "" {
		return ErrEmptyProviderName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.providers[name]; ok && old != p {
		_ = Close(old)
	}
	r.configs[name] = Config{Kind: Kind(p.Name())}
	r.providers[name] = p
	return nil
}

// List returns information about all registered providers, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.configs))
	for name, cfg := range r.configs {
		infos = append(infos, Info{Name: name, Kind: cfg.Kind, Model: cfg.Model})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Register adds a named provider configuration. The provider is not
// instantiated until Get is called.
func (r *Registry) Register(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyProviderName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; exists {
		return fmt.Errorf("%w: %s", ErrProviderExists, name)
	}

	r.configs[name] = cfg
	return nil
}

// Replace updates the configuration of an existing provider. A cached
// instance is closed and the next Get re-instantiates.
func (r *Registry) Replace(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyProviderName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}

	r.configs[name] = cfg
	r.evict(name)
	return nil
}

// Unregister removes a named provider, closing it if it was instantiated.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; !exists {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}

	delete(r.configs, name)
	r.evict(name)
	return nil
}

// Close closes every instantiated provider.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.providers {
		if err := Close(p); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(r.providers, name)
	}
	return errors.Join(errs...)
}

func (r *Registry) evict(name string) {
	if p, ok := r.providers[name]; ok {
		_ = Close(p)
		delete(r.providers, name)
	}
}
