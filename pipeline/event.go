package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// State is a stage of the per-request state machine.
type State string

const (
	StateStart         State = "start"
	StateRendered      State = "rendered"
	StateNotFound      State = "not_found"
	StateValidation    State = "validation_error"
	StatePassThrough   State = "pass_through"
	StateInternalError State = "internal_error"
	StateCancelled     State = "cancelled"
)

// Terminal reports whether s ends the request.
func (s State) Terminal() bool { return s != StateStart }

// Event is emitted on every state transition.
type Event struct {
	RequestID  string
	Method     string
	Path       string
	State      State
	Preference string
	Status     int
	Duration   time.Duration
	Principal  string
	Err        error
}

// EventSink receives transition events. Emit must not block the request.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// Sinks fans an event out to several sinks.
type Sinks []EventSink

// Emit implements EventSink.
func (s Sinks) Emit(ctx context.Context, ev Event) {
	for _, sink := range s {
		sink.Emit(ctx, ev)
	}
}

// LogSink writes events to a structured logger. Start events are logged at
// debug level, failures at error level.
type LogSink struct {
	Logger *slog.Logger
}

// Emit implements EventSink.
func (l LogSink) Emit(ctx context.Context, ev Event) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{
		"request_id", ev.RequestID,
		"method", ev.Method,
		"path", ev.Path,
		"state", string(ev.State),
		"representation", ev.Preference,
	}
	if ev.State == StateStart {
		log.DebugContext(ctx, "pipeline: start", attrs...)
		return
	}
	attrs = append(attrs, "status", ev.Status, "duration", ev.Duration)
	if ev.Principal != "" {
		attrs = append(attrs, "principal", ev.Principal)
	}
	switch ev.State {
	case StateInternalError:
		log.ErrorContext(ctx, "pipeline: failed", append(attrs, "error", ev.Err)...)
	case StateCancelled:
		log.InfoContext(ctx, "pipeline: cancelled", attrs...)
	default:
		log.InfoContext(ctx, "pipeline: done", attrs...)
	}
}
