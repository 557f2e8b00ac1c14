// Package idgen generates the identifiers used for request ids and audit
// entries. The default is UUIDv7 so ids sort by creation time.
package idgen

import (
	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 version 7 UUIDs. If the clock
// source fails it falls back to a random v4 UUID rather than panicking.
func UUIDv7() Generator {
	return func() string {
		if u, err := uuid.NewV7(); err == nil {
			return u.String()
		}
		return uuid.NewString()
	}
}

// Prefixed prepends prefix to every id from gen ("evt_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is used by New.
var Default Generator = UUIDv7()

// New produces an id with the Default generator.
func New() string {
	return Default()
}

// Valid reports whether s is a well-formed UUID in canonical form.
// Caller-supplied request ids are only reused when Valid.
func Valid(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
