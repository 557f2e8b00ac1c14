// Package server wires the negotiation pipeline into a chi router: the
// shield middleware stack, the built-in routes, the bypass paths for the
// API consoles and static assets, and the startup lifecycle.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/dynresp/auth"
	"github.com/hazyhaar/dynresp/config"
	"github.com/hazyhaar/dynresp/pipeline"
	"github.com/hazyhaar/dynresp/routes"
	"github.com/hazyhaar/dynresp/shield"
)

// Server owns the router and the process-wide route registry.
type Server struct {
	cfg       *config.Config
	router    *chi.Mux
	registry  *routes.Registry
	lifecycle *Lifecycle
	orch      *pipeline.Orchestrator
	tokens    *auth.BearerAuthenticator
	routes    []pipeline.Route
	logger    *slog.Logger
	version   string
	sink      pipeline.EventSink
	done      <-chan struct{}
	checks    map[string]Check
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithEventSink forwards pipeline transition events to sink.
func WithEventSink(sink pipeline.EventSink) Option { return func(s *Server) { s.sink = sink } }

// WithVersion sets the version reported by /openapi.json.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// WithDone stops background work (rate limiter GC) when done is closed.
func WithDone(done <-chan struct{}) Option { return func(s *Server) { s.done = done } }

// WithHealthCheck adds a check consulted by /healthz.
func WithHealthCheck(name string, c Check) Option {
	return func(s *Server) {
		if s.checks == nil {
			s.checks = make(map[string]Check)
		}
		s.checks[name] = c
	}
}

// New builds the router. The registry stays open until MarkReady.
func New(cfg *config.Config, renderer pipeline.Renderer, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		registry: routes.NewRegistry(),
		logger:   slog.Default(),
		version:  "dev",
	}
	for _, o := range opts {
		o(s)
	}
	s.lifecycle = NewLifecycle(s.registry)
	for name, c := range s.checks {
		s.lifecycle.AddCheck(name, c)
	}

	authn, tokens, err := buildAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens

	popts := []pipeline.Option{pipeline.WithAuthenticator(authn), pipeline.WithLogger(s.logger)}
	if s.sink != nil {
		popts = append(popts, pipeline.WithEventSink(pipeline.Sinks{pipeline.LogSink{Logger: s.logger}, s.sink}))
	}
	s.orch = pipeline.New(s.registry, renderer, popts...)

	s.routes = s.builtinRoutes()
	s.router = s.buildRouter()
	return s, nil
}

func buildAuth(cfg config.AuthConfig) (auth.Authenticator, *auth.BearerAuthenticator, error) {
	chain := auth.Chain{auth.NewBasicAuthenticator(cfg.Users)}
	if cfg.JWTSecret == "" {
		return chain, nil, nil
	}
	bearer, err := auth.NewBearerAuthenticator([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, nil, fmt.Errorf("server: jwt secret: %w", err)
	}
	return append(chain, bearer), bearer, nil
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultStack(shield.StackConfig{
		MaxBody: s.cfg.Server.MaxBody,
		RateLimit: shield.RateLimitConfig{
			MaxRequests: s.cfg.Server.RateLimit.MaxRequests,
			Window:      s.cfg.Server.RateLimit.Window.D(),
		},
		RateLimitExclude: []string{"/livez", "/readyz", "/healthz", "/static/"},
		Done:             s.done,
	}) {
		r.Use(mw)
	}

	// Outside the pipeline: served as is, never negotiated.
	r.Get("/openapi.json", s.openAPI)
	r.Get("/docs", serveStatic("static/docs.html"))
	r.Get("/redoc", serveStatic("static/redoc.html"))
	r.Handle("/static/*", http.FileServerFS(staticFS))

	for _, rt := range s.routes {
		r.Method(rt.Method, rt.Pattern, s.orch.Handle(rt))
	}
	r.NotFound(s.orch.NotFound())
	r.MethodNotAllowed(s.orch.MethodNotAllowed())
	return r
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Registry returns the route registry used for suggestions.
func (s *Server) Registry() *routes.Registry { return s.registry }

// Lifecycle returns the startup state.
func (s *Server) Lifecycle() *Lifecycle { return s.lifecycle }

// Routes returns the pipeline routes in declaration order.
func (s *Server) Routes() []pipeline.Route {
	out := make([]pipeline.Route, len(s.routes))
	copy(out, s.routes)
	return out
}

// MarkReady fills and freezes the registry from the router.
func (s *Server) MarkReady() error {
	if err := s.lifecycle.MarkReady(s.router); err != nil {
		return err
	}
	s.logger.Info("server: ready", "routes", len(s.registry.Snapshot()))
	return nil
}

// HTTPServer returns an http.Server for the configured address and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout.D(),
		WriteTimeout:      s.cfg.Server.WriteTimeout.D(),
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
}
