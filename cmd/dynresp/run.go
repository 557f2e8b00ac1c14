package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/dynresp/audit"
	"github.com/hazyhaar/dynresp/browser"
	"github.com/hazyhaar/dynresp/config"
	"github.com/hazyhaar/dynresp/render"
	"github.com/hazyhaar/dynresp/server"
)

func newRunCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	views, err := render.NewTemplates(cfg.Templates.Dir)
	if err != nil {
		return err
	}
	ropts := []render.Option{
		render.WithStyler(render.NewConsole(render.ConsoleConfig{Width: cfg.RichText.Width, Color: cfg.RichText.Color})),
		render.WithLogger(logger),
	}

	if !cfg.Browser.Disabled {
		mgr := browser.NewManager(browser.Config{
			RemoteURL:        cfg.Browser.RemoteURL,
			Bin:              cfg.Browser.Bin,
			NoSandbox:        cfg.Browser.NoSandbox,
			Stealth:          cfg.Browser.Stealth,
			MaxConcurrent:    cfg.Browser.MaxConcurrent,
			RecycleInterval:  cfg.Browser.RecycleInterval.D(),
			RenderTimeout:    cfg.Browser.RenderTimeout.D(),
			ViewportWidth:    cfg.Browser.ViewportWidth,
			ViewportHeight:   cfg.Browser.ViewportHeight,
			ResourceBlocking: cfg.Browser.BlockResources,
			Logger:           logger,
		})
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("browser: %w", err)
		}
		defer mgr.Close()
		ropts = append(ropts, render.WithRasterizer(mgr), render.WithPrinter(mgr))
	}

	sopts := []server.Option{
		server.WithLogger(logger),
		server.WithVersion(version),
		server.WithDone(ctx.Done()),
	}
	if cfg.Audit.DBPath != "" {
		db, err := audit.Open(cfg.Audit.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		events := audit.NewSQLiteLogger(db, audit.WithBufferSize(cfg.Audit.Buffer), audit.WithLogger(logger))
		if err := events.Init(); err != nil {
			return fmt.Errorf("audit init: %w", err)
		}
		defer events.Close()
		sopts = append(sopts, server.WithEventSink(events))
		sopts = append(sopts, server.WithHealthCheck("audit", db.PingContext))
	}

	srv, err := server.New(cfg, render.New(views, ropts...), sopts...)
	if err != nil {
		return err
	}
	if err := srv.MarkReady(); err != nil {
		return err
	}

	hs := srv.HTTPServer()
	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", hs.Addr, "env", cfg.Env, "version", version)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.D())
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
