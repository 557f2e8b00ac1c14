// Package shield provides the HTTP middleware applied in front of every
// route: security headers, body limits, request ids with a per-request
// logger, rate limiting and HEAD handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(shield.StackConfig{}) {
//	    r.Use(mw)
//	}
package shield

import (
	"net/http"
	"time"
)

type contextKey string

const (
	// LoggerKey is the context key for the per-request structured logger.
	LoggerKey contextKey = "shield_logger"

	// RequestIDKey is the context key for the request id.
	RequestIDKey contextKey = "shield_request_id"
)

// StackConfig tunes DefaultStack. Zero values pick the defaults.
type StackConfig struct {
	// MaxBody caps request bodies. Default: 1 MiB.
	MaxBody int64
	// RateLimit, when MaxRequests > 0, limits requests per client IP and
	// endpoint.
	RateLimit RateLimitConfig
	// RateLimitExclude lists path prefixes never rate limited.
	RateLimitExclude []string
	// Done stops the limiter's bucket GC. Nil leaves GC off.
	Done <-chan struct{}
}

// DefaultStack returns the middleware stack for a dynresp server, ordered
// HeadToGet → SecurityHeaders → MaxBody → TraceID → RateLimiter.
func DefaultStack(cfg StackConfig) []func(http.Handler) http.Handler {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = 1 << 20
	}
	stack := []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(cfg.MaxBody),
		TraceID,
	}
	if cfg.RateLimit.MaxRequests > 0 {
		if cfg.RateLimit.Window <= 0 {
			cfg.RateLimit.Window = time.Minute
		}
		cfg.RateLimit.Enabled = true
		rl := NewRateLimiter(map[string]RateLimitConfig{"*": cfg.RateLimit}, cfg.RateLimitExclude...)
		if cfg.Done != nil {
			rl.StartGC(cfg.RateLimit.Window, cfg.Done)
		}
		stack = append(stack, rl.Middleware)
	}
	return stack
}
