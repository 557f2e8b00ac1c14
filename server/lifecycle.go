package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/dynresp/routes"
)

// Check reports a dependency's health. A nil error means healthy.
type Check func(ctx context.Context) error

// Lifecycle is the process-wide startup state. It becomes ready exactly
// once, after the route registry has been filled from the router and
// frozen; it never goes back.
type Lifecycle struct {
	registry *routes.Registry
	ready    atomic.Bool
	once     sync.Once

	mu     sync.RWMutex
	checks map[string]Check
}

// NewLifecycle wraps registry.
func NewLifecycle(registry *routes.Registry) *Lifecycle {
	return &Lifecycle{registry: registry, checks: make(map[string]Check)}
}

// AddCheck registers a named health check consulted by /healthz.
func (l *Lifecycle) AddCheck(name string, c Check) {
	l.mu.Lock()
	l.checks[name] = c
	l.mu.Unlock()
}

// MarkReady registers every path served by r, freezes the registry and
// flips readiness. Later calls are no-ops.
func (l *Lifecycle) MarkReady(r chi.Routes) error {
	var err error
	l.once.Do(func() {
		var paths []string
		err = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
			paths = append(paths, routePath(route))
			return nil
		})
		if err != nil {
			return
		}
		if err = l.registry.Register(paths...); err != nil && !errors.Is(err, routes.ErrFrozen) {
			return
		}
		l.registry.Freeze()
		l.ready.Store(true)
		err = nil
	})
	return err
}

// Ready reports whether MarkReady completed.
func (l *Lifecycle) Ready() bool { return l.ready.Load() }

// Healthy runs every check and returns the names of those that failed.
func (l *Lifecycle) Healthy(ctx context.Context) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var failed []string
	for name, c := range l.checks {
		if err := c(ctx); err != nil {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// routePath trims chi's trailing wildcard so "/static/*" reads "/static".
func routePath(pattern string) string {
	if p := strings.TrimSuffix(pattern, "/*"); p != "" {
		return p
	}
	return pattern
}
