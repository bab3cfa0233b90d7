package regional

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	readings map[string]Reading
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		readings: make(map[string]Reading),
	}
}

// Save stores r, replacing the previous reading for r.Region.
func (r *InMemoryRepository) Save(_ context.Context, reading Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.readings[reading.Region] = reading
	return nil
}

// List returns every reading ordered by region name.
func (r *InMemoryRepository) List(_ context.Context) ([]Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Reading, 0, len(r.readings))
	for _, reading := range r.readings {
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out, nil
}
