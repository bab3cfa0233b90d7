package resilience

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Status summarises an upstream's breaker state for the status endpoint.
type Status int

// Upstream statuses, ordered from best to worst.
const (
	StatusUp Status = iota
	StatusProbing
	StatusDown
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusProbing:
		return "probing"
	default:
		return "down"
	}
}

func statusOf(state gobreaker.State) Status {
	switch state {
	case gobreaker.StateClosed:
		return StatusUp
	case gobreaker.StateHalfOpen:
		return StatusProbing
	default:
		return StatusDown
	}
}

// ProviderHealth is a point-in-time view of one upstream. Zero times mean
// the event has not happened since start-up.
type ProviderHealth struct {
	Name         string
	Status       Status
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Registry tracks the upstream clients and the outcome of their latest calls.
// It backs the operator status endpoint and the worker health check.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	client        *Client
	lastSuccessAt time.Time
	lastFailureAt time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds c under its name, replacing any earlier client of that name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[c.Name()] = &entry{client: c}
}

// Record notes the outcome of a call to name. Unknown names are ignored.
func (r *Registry) Record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return
	}
	if err == nil {
		e.lastSuccessAt = time.Now()
		return
	}
	e.lastFailureAt = time.Now()
	e.lastError = err.Error()
}

// Lookup returns the health of one upstream.
func (r *Registry) Lookup(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return e.health(name), true
}

// Snapshot returns the health of every upstream, sorted by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, e.health(name))
	}
	slices.SortFunc(out, func(a, b ProviderHealth) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// Names returns the registered upstream names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Worst returns the worst status across all upstreams; StatusUp when none
// are registered.
func (r *Registry) Worst() Status {
	worst := StatusUp
	for _, h := range r.Snapshot() {
		worst = max(worst, h.Status)
	}
	return worst
}

// Healthy reports whether no upstream has an open circuit.
func (r *Registry) Healthy() bool {
	return r.Worst() != StatusDown
}

func (e *entry) health(name string) ProviderHealth {
	state := e.client.CircuitBreakerState()
	return ProviderHealth{
		Name:          name,
		Status:        statusOf(state),
		CircuitState:  state,
		Counts:        e.client.CircuitBreakerCounts(),
		LastSuccessAt: e.lastSuccessAt,
		LastFailureAt: e.lastFailureAt,
		LastError:     e.lastError,
	}
}
