package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/hazyhaar/dynresp/auth"
	"github.com/hazyhaar/dynresp/pipeline"
	"github.com/hazyhaar/dynresp/view"
)

func (s *Server) builtinRoutes() []pipeline.Route {
	rts := []pipeline.Route{
		{Method: http.MethodGet, Pattern: "/livez", Summary: "Liveness probe", Handler: s.livez},
		{Method: http.MethodGet, Pattern: "/readyz", Summary: "Readiness probe", Handler: s.readyz},
		{Method: http.MethodGet, Pattern: "/healthz", Summary: "Health check", Handler: s.healthz},
		{Method: http.MethodGet, Pattern: "/example", Summary: "Example response", Handler: example},
		{Method: http.MethodGet, Pattern: "/another-example", Summary: "Another example response", Handler: anotherExample},
		{Method: http.MethodPost, Pattern: "/message", Summary: "Echo a message", Handler: postMessage},
		{Method: http.MethodGet, Pattern: "/sitemap", Summary: "List available routes", Handler: s.sitemap},
		{Method: http.MethodGet, Pattern: "/me", Summary: "Current principal", Requires: auth.Authenticated(), Handler: me},
		{Method: http.MethodGet, Pattern: "/admin", Summary: "Admin area", Requires: auth.AnyRole("admin"), Handler: admin},
	}
	if s.tokens != nil {
		rts = append(rts, pipeline.Route{
			Method: http.MethodPost, Pattern: "/token", Summary: "Issue a bearer token",
			Requires: auth.Authenticated(), Handler: s.issueToken,
		})
	}
	return rts
}

func status(v string) view.Object { return view.Object{{Key: "status", Value: v}} }

func (s *Server) livez(context.Context, *pipeline.Request) (*view.Result, error) {
	return view.OK("status.html", status("alive")), nil
}

func (s *Server) readyz(context.Context, *pipeline.Request) (*view.Result, error) {
	if !s.lifecycle.Ready() {
		return nil, &pipeline.StatusError{Status: http.StatusServiceUnavailable, Detail: "Not ready"}
	}
	return view.OK("status.html", status("ready")), nil
}

func (s *Server) healthz(ctx context.Context, req *pipeline.Request) (*view.Result, error) {
	if !s.lifecycle.Ready() {
		return nil, &pipeline.StatusError{Status: http.StatusServiceUnavailable, Detail: "Unhealthy"}
	}
	if failed := s.lifecycle.Healthy(ctx); len(failed) > 0 {
		req.Logger.Warn("server: health checks failed", "checks", failed)
		return nil, &pipeline.StatusError{Status: http.StatusServiceUnavailable, Detail: "Unhealthy"}
	}
	return view.OK("status.html", status("healthy")), nil
}

func example(context.Context, *pipeline.Request) (*view.Result, error) {
	return view.OK("example.html", view.Object{
		{Key: "message", Value: "Hello, this is an example"},
		{Key: "data", Value: []any{1, 2, 3, 4}},
	}), nil
}

func anotherExample(context.Context, *pipeline.Request) (*view.Result, error) {
	return view.OK("another_example.html", view.Object{
		{Key: "title", Value: "Another Example"},
		{Key: "message", Value: "Your cart"},
		{Key: "items", Value: []any{"apple", "banana", "cherry"}},
	}), nil
}

type messageBody struct {
	Message *string `json:"message"`
}

func postMessage(_ context.Context, req *pipeline.Request) (*view.Result, error) {
	var body messageBody
	if err := req.DecodeJSON(&body); err != nil {
		return nil, err
	}
	if body.Message == nil {
		return nil, &pipeline.ValidationError{Errors: []pipeline.FieldError{pipeline.Missing("body", "message")}}
	}
	return view.OK("post_message.html", view.Object{{Key: "message", Value: *body.Message}}), nil
}

func (s *Server) sitemap(context.Context, *pipeline.Request) (*view.Result, error) {
	paths := s.registry.Snapshot()
	list := make([]any, len(paths))
	for i, p := range paths {
		list[i] = p
	}
	return view.OK("sitemap.html", view.Object{{Key: "available_routes", Value: list}}), nil
}

func roleList(p *auth.Principal) []any {
	roles := make([]any, len(p.Roles))
	for i, r := range p.Roles {
		roles[i] = r
	}
	return roles
}

func me(_ context.Context, req *pipeline.Request) (*view.Result, error) {
	return view.OK("", view.Object{
		{Key: "name", Value: req.Principal.Name},
		{Key: "roles", Value: roleList(req.Principal)},
		{Key: "provider", Value: req.Principal.Provider},
	}), nil
}

func admin(_ context.Context, req *pipeline.Request) (*view.Result, error) {
	return view.OK("", view.Object{
		{Key: "message", Value: "Welcome, " + req.Principal.Name},
		{Key: "roles", Value: roleList(req.Principal)},
	}), nil
}

func (s *Server) issueToken(_ context.Context, req *pipeline.Request) (*view.Result, error) {
	ttl := s.cfg.Auth.TokenTTL.D()
	token, err := s.tokens.Issue(req.Principal, ttl)
	if err != nil {
		return nil, err
	}
	secure := req.Raw.TLS != nil || strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
	h := make(http.Header)
	h.Add("Set-Cookie", auth.TokenCookie(token, "", secure, int(ttl.Seconds())).String())
	h.Set("Cache-Control", "no-store")
	return &view.Result{
		Data: view.Object{
			{Key: "access_token", Value: token},
			{Key: "token_type", Value: "bearer"},
			{Key: "expires_in", Value: int(ttl.Seconds())},
		},
		Header: h,
	}, nil
}
