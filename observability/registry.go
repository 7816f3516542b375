package observability

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	observers = map[string]Observer{
		"noop": NoOpObserver{},
		"slog": NewSlogObserver(slog.Default()),
	}
	mutex sync.RWMutex
)

// GetObserver resolves a registered observer by name. The empty name
// resolves to "noop". A comma-separated list such as "slog,ledger"
// resolves to a MultiObserver over each named observer in order.
func GetObserver(name string) (Observer, error) {
	if name == "" {
		name = "noop"
	}

	mutex.RLock()
	defer mutex.RUnlock()

	if !strings.Contains(name, ",") {
		return lookup(name)
	}

	var resolved []Observer
	for part := range strings.SplitSeq(name, ",") {
		obs, err := lookup(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, obs)
	}
	return NewMultiObserver(resolved...), nil
}

func lookup(name string) (Observer, error) {
	obs, exists := observers[name]
	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}

// Observers lists registered names, sorted.
func Observers() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(observers))
	for name := range observers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
