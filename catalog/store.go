// Package catalog keeps named type definitions so configurations can refer
// to a target type by name instead of spelling out its fields.
//
// Definitions are stored as YAML documents, one per type, under keys of the
// form "<name>.yaml". A Catalog indexes the store on Bootstrap and parses a
// definition the first time it is asked for.
package catalog

import (
	"context"
	"path"
	"strings"
)

// Store translates between external storage and catalog entries.
// Implementations are stateless: every call performs I/O.
type Store interface {
	// List returns all keys in the store.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// Entry is one stored definition document.
type Entry struct {
	Key   string
	Value []byte
}

const ext = ".yaml"

// Key returns the storage key for a type name. Names are case-insensitive.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name)) + ext
}

// keyName reports the type name a key stores, or false for keys that are
// not definition documents.
func keyName(key string) (string, bool) {
	base := path.Base(key)
	if path.Dir(key) != "." || !strings.HasSuffix(base, ext) {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}
