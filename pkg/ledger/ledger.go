// Package ledger keeps the set of date keys that have already been harvested.
package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Store persists seen keys. Keys are only ever appended.
type Store interface {
	// Load returns every persisted key. A store that does not exist yet loads empty.
	Load(ctx context.Context) ([]string, error)

	// Append durably records key.
	Append(ctx context.Context, key string) error

	Close() error
}

// Ledger is the in-memory view of a Store.
//
// Add marks a key as taken for the current run; Persist makes it survive restarts.
// A Ledger is not safe for concurrent use.
type Ledger struct {
	store Store
	seen  map[string]struct{}
}

// Open loads all persisted keys from store.
func Open(ctx context.Context, store Store) (*Ledger, error) {
	keys, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seen keys: %w", err)
	}

	l := &Ledger{
		store: store,
		seen:  make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		l.Add(k)
	}
	return l, nil
}

// Contains reports whether key was loaded or added.
func (l *Ledger) Contains(key string) bool {
	_, ok := l.seen[normalize(key)]
	return ok
}

// Add marks key as seen in memory only.
func (l *Ledger) Add(key string) {
	if k := normalize(key); k != "" {
		l.seen[k] = struct{}{}
	}
}

// Persist adds key and appends it to the store.
func (l *Ledger) Persist(ctx context.Context, key string) error {
	k := normalize(key)
	if k == "" {
		return nil
	}
	l.seen[k] = struct{}{}
	if err := l.store.Append(ctx, k); err != nil {
		return fmt.Errorf("persist seen key %q: %w", k, err)
	}
	return nil
}

// Len returns the number of keys in memory.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

// normalize trims the whitespace a line-oriented store cannot keep.
func normalize(key string) string {
	return strings.TrimSpace(key)
}
