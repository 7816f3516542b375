package catalog

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// SeedNames lists the built-in type names.
func SeedNames() []string {
	files, _ := fs.Glob(seedFS, "seed/*"+ext)
	names := make([]string, 0, len(files))
	for _, f := range files {
		if name, ok := keyName(path.Base(f)); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Seed writes the built-in definitions (answer, email, employee, movie,
// tweet) into store. Existing keys are kept unless overwrite is set.
// It returns the keys it wrote.
func Seed(ctx context.Context, store Store, overwrite bool) ([]string, error) {
	existing := make(map[string]bool)
	if !overwrite {
		keys, err := store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		for _, k := range keys {
			existing[k] = true
		}
	}

	var entries []Entry
	for _, name := range SeedNames() {
		key := Key(name)
		if existing[key] {
			continue
		}
		data, err := seedFS.ReadFile("seed/" + key)
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		entries = append(entries, Entry{Key: key, Value: data})
	}

	if err := store.Save(ctx, entries...); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	written := make([]string, len(entries))
	for i, e := range entries {
		written[i] = e.Key
	}
	return written, nil
}
