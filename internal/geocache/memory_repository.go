package geocache

import (
	"context"
	"sync"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]geo.Coordinate
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		entries: make(map[string]geo.Coordinate),
	}
}

// Get returns the cached coordinate for query.
func (r *InMemoryRepository) Get(_ context.Context, query string) (geo.Coordinate, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.entries[Normalize(query)]
	return c, ok, nil
}

// Put stores the coordinate for query.
func (r *InMemoryRepository) Put(_ context.Context, query string, coord geo.Coordinate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[Normalize(query)] = coord
	return nil
}

// Clear removes every entry.
func (r *InMemoryRepository) Clear(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.entries))
	r.entries = make(map[string]geo.Coordinate)
	return n, nil
}

// Len returns the number of cached entries.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
