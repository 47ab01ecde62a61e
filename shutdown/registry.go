package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// CleanupFunc releases one resource at exit.
type CleanupFunc func(ctx context.Context) error

type cleanupEntry struct {
	name     string
	fn       CleanupFunc
	priority int // lower = earlier execution
}

// Registry holds cleanup functions and runs them once, in priority order.
type Registry struct {
	mu      sync.Mutex
	entries []cleanupEntry
	closed  bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn under name. Lower priorities run first; equal priorities
// run in registration order. Registering after Run is a no-op.
func (r *Registry) Register(name string, priority int, fn CleanupFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || fn == nil {
		return
	}
	r.entries = append(r.entries, cleanupEntry{name: name, fn: fn, priority: priority})
}

// Run calls every registered function, even after failures, and returns
// their errors. Only the first call does anything.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sorted := r.sortedLocked()
	r.mu.Unlock()

	var errs []error
	for _, entry := range sorted {
		if err := entry.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		}
	}
	return errs
}

// Names returns the registered names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.sortedLocked()
	names := make([]string, len(sorted))
	for i, entry := range sorted {
		names[i] = entry.name
	}
	return names
}

func (r *Registry) sortedLocked() []cleanupEntry {
	sorted := make([]cleanupEntry, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})
	return sorted
}
