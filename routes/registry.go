// Package routes holds the process-wide list of known request paths and the
// "did you mean" matcher built on it.
//
// The registry is filled once during startup, frozen, and only read
// afterwards. Reads never take a lock.
package routes

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrFrozen is returned by Register after Freeze.
var ErrFrozen = errors.New("routes: registry is frozen")

// Registry is an append-only-at-startup set of paths.
type Registry struct {
	mu     sync.Mutex
	paths  atomic.Pointer[[]string]
	frozen atomic.Bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := []string{}
	r.paths.Store(&empty)
	return r
}

// Register appends paths in order, skipping empty strings and duplicates.
func (r *Registry) Register(paths ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrFrozen
	}

	cur := *r.paths.Load()
	seen := make(map[string]struct{}, len(cur)+len(paths))
	for _, p := range cur {
		seen[p] = struct{}{}
	}
	next := make([]string, len(cur), len(cur)+len(paths))
	copy(next, cur)
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		next = append(next, p)
	}
	r.paths.Store(&next)
	return nil
}

// Freeze makes the registry read-only. Safe to call more than once.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen.Store(true)
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Snapshot returns a copy of the registered paths in registration order.
func (r *Registry) Snapshot() []string {
	cur := *r.paths.Load()
	out := make([]string, len(cur))
	copy(out, cur)
	return out
}

// Contains reports whether path was registered.
func (r *Registry) Contains(path string) bool {
	for _, p := range *r.paths.Load() {
		if p == path {
			return true
		}
	}
	return false
}

// Suggest runs Suggest against the registry with the default limit and cutoff.
func (r *Registry) Suggest(path string) []string {
	return Suggest(path, *r.paths.Load(), DefaultLimit, DefaultThreshold)
}
