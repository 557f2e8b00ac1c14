// Package pipeline runs one request through the negotiation state machine:
// extract signals, resolve the preference, authenticate, invoke the handler,
// then render, short-circuit or fail. Each transition is reported to an
// EventSink.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/dynresp/auth"
	"github.com/hazyhaar/dynresp/idgen"
	"github.com/hazyhaar/dynresp/negotiate"
	"github.com/hazyhaar/dynresp/render"
	"github.com/hazyhaar/dynresp/routes"
	"github.com/hazyhaar/dynresp/shield"
	"github.com/hazyhaar/dynresp/view"
)

// ScaleParam is the query parameter carrying the document scale factor.
const ScaleParam = "scale"

// Renderer produces the bytes of a representation.
type Renderer interface {
	Render(ctx context.Context, res *view.Result, pref negotiate.Preference, opts render.Options) (*render.Response, error)
}

// Orchestrator turns routes into http.HandlerFuncs.
type Orchestrator struct {
	registry *routes.Registry
	renderer Renderer
	auth     auth.Authenticator
	sink     EventSink
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAuthenticator sets the authenticator run before every handler.
func WithAuthenticator(a auth.Authenticator) Option { return func(o *Orchestrator) { o.auth = a } }

// WithEventSink sets where transition events go. Default: a LogSink.
func WithEventSink(s EventSink) Option { return func(o *Orchestrator) { o.sink = s } }

// WithLogger sets the fallback logger for requests outside shield.TraceID.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// New creates an Orchestrator. The registry feeds not-found suggestions.
func New(registry *routes.Registry, renderer Renderer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.sink == nil {
		o.sink = LogSink{Logger: o.logger}
	}
	return o
}

// Handle returns the http.HandlerFunc serving rt.
func (o *Orchestrator) Handle(rt Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o.serve(w, r, rt.Requires, rt.Handler)
	}
}

// NotFound answers unmatched paths with the negotiated not-found view.
func (o *Orchestrator) NotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o.serve(w, r, auth.Public, func(context.Context, *Request) (*view.Result, error) {
			return nil, &NotFoundError{Detail: "Not Found"}
		})
	}
}

// MethodNotAllowed answers a known path hit with the wrong method.
func (o *Orchestrator) MethodNotAllowed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o.serve(w, r, auth.Public, func(context.Context, *Request) (*view.Result, error) {
			return nil, &StatusError{Status: http.StatusMethodNotAllowed, Detail: "Method Not Allowed"}
		})
	}
}

type outcome struct {
	state      State
	status     int
	body       []byte
	mediaType  string
	header     http.Header
	negotiated bool
	err        error
}

func (o *Orchestrator) serve(w http.ResponseWriter, r *http.Request, requires auth.Requirement, h Handler) {
	start := time.Now()
	ctx := r.Context()
	req := o.newRequest(r)
	o.emit(ctx, req, outcome{state: StateStart}, start)

	out := o.run(ctx, req, requires, h)
	if out.state != StateCancelled {
		write(w, out)
	}
	o.emit(ctx, req, out, start)
}

func (o *Orchestrator) newRequest(r *http.Request) *Request {
	ctx := r.Context()
	id := shield.GetRequestID(ctx)
	logger := o.logger
	if id == "" {
		id = idgen.New()
		logger = logger.With("request_id", id)
	} else {
		logger = shield.GetLogger(ctx)
	}
	sig := negotiate.Extract(r)
	return &Request{
		ID:         id,
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.Query(),
		Header:     r.Header,
		Signals:    sig,
		Preference: negotiate.Resolve(sig),
		Logger:     logger,
		Raw:        r,
	}
}

func (o *Orchestrator) run(ctx context.Context, req *Request, requires auth.Requirement, h Handler) outcome {
	if o.auth != nil {
		p, err := o.auth.Authenticate(req.Raw)
		if err != nil {
			return o.classify(ctx, req, err)
		}
		req.Principal = p
	}
	if err := requires.Check(req.Principal); err != nil {
		return o.classify(ctx, req, err)
	}

	res, err := h(auth.WithPrincipal(ctx, req.Principal), req)
	if ctx.Err() != nil {
		return outcome{state: StateCancelled, err: ctx.Err()}
	}
	if err != nil {
		return o.classify(ctx, req, err)
	}
	if res == nil {
		return internalError(errors.New("handler returned no result"), nil)
	}

	switch status := res.StatusCode(); {
	case !validStatus(status):
		return internalError(fmt.Errorf("handler returned invalid status %d", status), nil)
	case status == http.StatusNotFound:
		return o.notFound(ctx, req, "", res.Data)
	case status == http.StatusUnprocessableEntity:
		return jsonOutcome(StateValidation, status, res.Data, nil)
	case status >= 400:
		out := jsonOutcome(StatePassThrough, status, res.Data, nil)
		out.header = res.Header
		return out
	default:
		return o.render(ctx, req, res, StateRendered)
	}
}

// classify maps a handler or auth failure to its terminal state.
func (o *Orchestrator) classify(ctx context.Context, req *Request, err error) outcome {
	var (
		nfe *NotFoundError
		ve  *ValidationError
		se  *StatusError
		ae  *auth.Error
		sc  statusCoder
	)
	switch {
	case ctx.Err() != nil:
		return outcome{state: StateCancelled, err: ctx.Err()}
	case errors.As(err, &nfe):
		return o.notFound(ctx, req, nfe.Detail, nfe.Body)
	case errors.As(err, &ve):
		return jsonOutcome(StateValidation, http.StatusUnprocessableEntity, detail(ve.Errors), err)
	case errors.As(err, &ae):
		if !validStatus(ae.Status) {
			return internalError(err, nil)
		}
		out := jsonOutcome(StatePassThrough, ae.Status, detail(ae.Detail), err)
		if ae.Challenge != "" {
			out.header = http.Header{"Www-Authenticate": {ae.Challenge}}
		}
		return out
	case errors.As(err, &se):
		if !validStatus(se.Status) {
			return internalError(err, nil)
		}
		if se.Status == http.StatusNotFound {
			return o.notFound(ctx, req, se.Detail, nil)
		}
		out := jsonOutcome(StatePassThrough, se.Status, detail(se.Detail), err)
		out.header = se.Header
		return out
	case errors.As(err, &sc):
		if !validStatus(sc.HTTPStatus()) {
			return internalError(err, nil)
		}
		return jsonOutcome(StatePassThrough, sc.HTTPStatus(), detail(err.Error()), err)
	default:
		return internalError(err, detail("Internal Server Error"))
	}
}

func (o *Orchestrator) notFound(ctx context.Context, req *Request, msg string, body any) outcome {
	if msg == "" {
		msg = "Not Found"
	}
	if body == nil {
		body = detail(msg)
	}
	data := view.Object{
		{Key: "requested_path", Value: req.Path},
		{Key: "detail", Value: msg},
		{Key: "data", Value: body},
		{Key: "available_routes", Value: o.registry.Snapshot()},
		{Key: "suggestions", Value: o.registry.Suggest(req.Path)},
	}
	res := &view.Result{Data: data, View: view.NotFoundName, Status: http.StatusNotFound}
	return o.render(ctx, req, res, StateNotFound)
}

func (o *Orchestrator) render(ctx context.Context, req *Request, res *view.Result, state State) outcome {
	data, err := view.Normalize(res.Data)
	if err != nil {
		return internalError(err, detail("Internal Server Error"))
	}
	normalized := *res
	normalized.Data = data

	resp, err := o.renderer.Render(ctx, &normalized, req.Preference, render.Options{
		Path:  req.Path,
		Query: req.Query,
		Scale: parseScale(req.Query.Get(ScaleParam)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return outcome{state: StateCancelled, err: ctx.Err()}
		}
		body := view.Object{
			{Key: "detail", Value: "Rendering failed"},
			{Key: "error", Value: "render_failed"},
			{Key: "representation", Value: req.Preference.Representation().String()},
		}
		var be *render.BackendError
		if errors.As(err, &be) {
			body = body.Set("backend", be.Backend)
		}
		return internalError(err, body)
	}
	return outcome{
		state:      state,
		status:     resp.Status,
		body:       resp.Body,
		mediaType:  resp.MediaType,
		header:     resp.Header,
		negotiated: true,
	}
}

func (o *Orchestrator) emit(ctx context.Context, req *Request, out outcome, start time.Time) {
	ev := Event{
		RequestID:  req.ID,
		Method:     req.Method,
		Path:       req.Path,
		State:      out.state,
		Preference: req.Preference.String(),
		Status:     out.status,
		Err:        out.err,
	}
	if out.state.Terminal() {
		ev.Duration = time.Since(start)
	}
	if req.Principal != nil {
		ev.Principal = req.Principal.Name
	}
	o.sink.Emit(ctx, ev)
}

// validStatus reports whether net/http accepts status in WriteHeader.
func validStatus(status int) bool { return status >= 100 && status <= 599 }

func detail(v any) view.Object { return view.Object{{Key: "detail", Value: v}} }

func internalError(err error, body any) outcome {
	if body == nil {
		body = detail("Internal Server Error")
	}
	return jsonOutcome(StateInternalError, http.StatusInternalServerError, body, err)
}

func jsonOutcome(state State, status int, v any, err error) outcome {
	b, merr := json.Marshal(v)
	if merr != nil {
		b = []byte(`{"detail":"Internal Server Error"}`)
		state, status, err = StateInternalError, http.StatusInternalServerError, errors.Join(err, merr)
	}
	return outcome{state: state, status: status, body: b, mediaType: "application/json", err: err}
}

// parseScale returns 0 (renderer default) for an absent value and 1.0 for
// one that is unparsable or out of range.
func parseScale(v string) float64 {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return render.DefaultScale
	}
	return render.ClampScale(f)
}

func write(w http.ResponseWriter, out outcome) {
	h := w.Header()
	for k, vs := range out.header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if out.negotiated {
		h.Set("Vary", strings.Join(negotiate.VaryHeaders, ", "))
	}
	h.Set("Content-Type", out.mediaType)
	h.Set("Content-Length", strconv.Itoa(len(out.body)))
	w.WriteHeader(out.status)
	w.Write(out.body)
}
