package in_memory

import (
	"context"
	"sync"

	"github.com/evlasova/batch-auction/internal/port"
)

var _ port.Registry = (*Registry)(nil)

// Registry hands out owner ids starting at zero, one per address, in first
// sight order. Repeated lookups are idempotent.
type Registry struct {
	mu   sync.Mutex
	ids  map[string]uint64
	next uint64
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]uint64)}
}

func (r *Registry) IDOf(ctx context.Context, address string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[address]; ok {
		return id, nil
	}
	id := r.next
	r.next++
	r.ids[address] = id
	return id, nil
}
