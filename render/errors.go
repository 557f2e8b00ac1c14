package render

import (
	"errors"
	"fmt"
)

// DefaultScale is the document scale used when the caller supplies none.
const DefaultScale = 1.0

// ErrBackendUnavailable means the representation needs a backend that was
// not configured (no browser, no templates).
var ErrBackendUnavailable = errors.New("render: backend not configured")

// ErrViewNotFound is returned by Views.Execute for an unknown view name.
var ErrViewNotFound = errors.New("render: view not found")

// BackendError reports a failed or timed-out rendering backend call.
// Rendering stops at the first one; nothing is retried.
type BackendError struct {
	Backend string // "templates", "markdown", "console", "rasterizer", "printer", "pdf", "json"
	View    string
	Err     error
}

func (e *BackendError) Error() string {
	if e.View == "" {
		return fmt.Sprintf("render: %s: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("render: %s (view %s): %v", e.Backend, e.View, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
