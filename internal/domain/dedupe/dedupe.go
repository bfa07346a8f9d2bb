// Package dedupe tracks the keys a run has already claimed, so a batch never
// runs two jobs that write the same plot.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records which owner claimed each key.
type Deduper interface {
	// Claim atomically records owner for key. When key is already claimed it
	// returns the earlier owner and false.
	Claim(ctx context.Context, key, owner string) (string, bool)

	// Release frees key so a later owner may claim it.
	Release(ctx context.Context, key string)

	Size() int
}

type inMemoryDeduper struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewInMemoryDeduper creates an empty, unbounded deduper. Safe for
// concurrent use.
func NewInMemoryDeduper() Deduper {
	return &inMemoryDeduper{owners: make(map[string]string)}
}

func (d *inMemoryDeduper) Claim(_ context.Context, key, owner string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.owners[key]; ok {
		return prev, false
	}
	d.owners[key] = owner
	return owner, true
}

func (d *inMemoryDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.owners, key)
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.owners)
}
