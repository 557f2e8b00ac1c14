// Package auth authenticates requests and checks per-route requirements.
// Routes declare a Requirement at registration; the pipeline calls
// Authenticate and Check before the handler runs.
package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"
)

// Realm is advertised in WWW-Authenticate challenges.
const Realm = "dynresp"

// Principal is an authenticated caller.
type Principal struct {
	Name     string
	Roles    []string
	Provider string // "basic" or "bearer"
}

// HasRole reports whether p carries role.
func (p *Principal) HasRole(role string) bool {
	return p != nil && slices.Contains(p.Roles, role)
}

// Error is an authentication or authorization failure. Status is 400, 401
// or 403; Challenge, when set, goes out as WWW-Authenticate.
type Error struct {
	Status    int
	Detail    string
	Challenge string
}

func (e *Error) Error() string { return "auth: " + e.Detail }

// HTTPStatus is the response status for this failure.
func (e *Error) HTTPStatus() int { return e.Status }

func unauthorized(detail string) *Error {
	return &Error{Status: http.StatusUnauthorized, Detail: detail, Challenge: `Basic realm="` + Realm + `"`}
}

// Authenticator extracts a Principal from a request. It returns (nil, nil)
// when the request carries no credentials it understands.
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// Chain tries each authenticator in order and returns the first principal
// or error.
type Chain []Authenticator

// Authenticate implements Authenticator.
func (c Chain) Authenticate(r *http.Request) (*Principal, error) {
	for _, a := range c {
		p, err := a.Authenticate(r)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, nil
}

// scheme splits an Authorization header. ok is false for a header with no
// space-separated credentials.
func scheme(r *http.Request) (name, creds string, present, ok bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", "", false, false
	}
	name, creds, ok = strings.Cut(strings.TrimSpace(h), " ")
	return name, strings.TrimSpace(creds), true, ok && strings.TrimSpace(creds) != ""
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
