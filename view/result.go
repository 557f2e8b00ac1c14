package view

import (
	"net/http"
	"strings"
)

const (
	// DefaultName is used when a handler does not pick a view.
	DefaultName = "default.html"

	// NotFoundName renders unmatched paths and not-found failures.
	NotFoundName = "404.html"

	// FragmentPrefix marks the partial-page variant of a view.
	FragmentPrefix = "partial_"
)

// Result is what a handler hands to the pipeline.
type Result struct {
	// Data is the structured value. It is never mutated by the pipeline.
	Data any

	// View names the template for markup-like renderings. Empty means DefaultName.
	View string

	// Status is the HTTP status. Zero means 200.
	Status int

	// Header is copied onto the final response.
	Header http.Header
}

// OK builds a 200 result for the given view.
func OK(name string, data any) *Result {
	return &Result{Data: data, View: name}
}

// Name returns the view name, falling back to DefaultName.
func (r *Result) Name() string {
	if r == nil || r.View == "" {
		return DefaultName
	}
	return r.View
}

// StatusCode returns the HTTP status, falling back to 200.
func (r *Result) StatusCode() int {
	if r == nil || r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// FragmentName returns the partial-page variant of a view name.
// Names that already carry the prefix are returned unchanged.
func FragmentName(name string) string {
	if name == "" {
		name = DefaultName
	}
	if strings.HasPrefix(name, FragmentPrefix) {
		return name
	}
	return FragmentPrefix + name
}
