package pipeline

import (
	"fmt"
	"net/http"
	"strings"
)

// NotFoundError is returned by a handler when the resource does not exist.
// The request is answered with the negotiated not-found view.
type NotFoundError struct {
	Detail string
	// Body is included in the not-found view under "data" when set.
	Body any
}

func (e *NotFoundError) Error() string {
	if e.Detail == "" {
		return "not found"
	}
	return "not found: " + e.Detail
}

// FieldError describes one invalid input field.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationError is returned for malformed input. It is always answered
// with a 422 JSON body, whatever representation was negotiated.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, f := range e.Errors {
		parts[i] = strings.Join(f.Loc, ".") + ": " + f.Msg
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Missing builds the error for a required field that is absent.
func Missing(loc ...string) FieldError {
	return FieldError{Loc: loc, Msg: "Field required", Type: "missing"}
}

// StatusError makes a handler answer with Status and {"detail": Detail}
// without rendering.
type StatusError struct {
	Status int
	Detail string
	Header http.Header
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Detail)
}

// HTTPStatus is the response status.
func (e *StatusError) HTTPStatus() int { return e.Status }

// Errorf returns a StatusError with a formatted detail.
func Errorf(status int, format string, args ...any) *StatusError {
	return &StatusError{Status: status, Detail: fmt.Sprintf(format, args...)}
}

// statusCoder is implemented by errors that carry their own HTTP status.
type statusCoder interface {
	HTTPStatus() int
}
