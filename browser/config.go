// Package browser renders markup to PNG and PDF with a headless Chrome
// driven by Rod. One Chrome process is shared; every call gets its own
// incognito context and page, closed on every exit path.
package browser

import (
	"log/slog"
	"time"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// Bin is the Chrome binary for local launches. Empty lets the
	// launcher find or download one.
	Bin string

	// NoSandbox disables the Chrome sandbox (containers running as root).
	NoSandbox bool

	// Stealth applies go-rod/stealth evasions to every page.
	Stealth bool

	// MaxConcurrent bounds simultaneous render calls. Default: 2.
	MaxConcurrent int

	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 1h.
	RecycleInterval time.Duration

	// RenderTimeout bounds a single screenshot or PDF call. Default: 30s.
	RenderTimeout time.Duration

	// ViewportWidth and ViewportHeight size the screenshot. Default: 1280x1024.
	ViewportWidth  int
	ViewportHeight int

	// ResourceBlocking lists resource types to block while a page loads
	// (images, fonts, media, stylesheets, or any CDP resource type).
	ResourceBlocking []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = time.Hour
	}
	if c.RenderTimeout <= 0 {
		c.RenderTimeout = 30 * time.Second
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1280
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
