package browser

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod"
)

func TestConfig_Defaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.MaxConcurrent != 2 || c.ViewportWidth != 1280 || c.ViewportHeight != 1024 {
		t.Errorf("defaults = %+v", c)
	}
	if c.RenderTimeout != 30*time.Second || c.RecycleInterval != time.Hour || c.Logger == nil {
		t.Errorf("defaults = %+v", c)
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true, "xhr": true}
	cases := map[string]bool{
		"Image":      true,
		"Font":       true,
		"XHR":        true,
		"Stylesheet": false,
		"Document":   false,
	}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("shouldBlock(%q) = %v, want %v", typ, got, want)
		}
	}
}

func TestManager_WaitingCallHonorsContext(t *testing.T) {
	// WHAT: A call queued behind a busy slot gives up when its ctx expires.
	// WHY: a cancelled request must not wait for, or launch, a browser.
	m := NewManager(Config{MaxConcurrent: 1})
	defer m.Close()
	if err := m.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer m.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Screenshot(ctx, []byte("<p>x</p>"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if m.Running() {
		t.Error("browser launched for a call that never got a slot")
	}
}

func TestManager_Closed(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.PDF(context.Background(), []byte("<p>x</p>"), 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestManager_RecycleSkipsWhenNotDue(t *testing.T) {
	m := NewManager(Config{})
	if m.recycleIfIdle() {
		t.Error("recycled without a running browser")
	}
}

func chromeManager(t *testing.T) *Manager {
	t.Helper()
	if os.Getenv("DYNRESP_CHROME") != "1" {
		t.Skip("set DYNRESP_CHROME=1 to run against a local Chrome")
	}
	m := NewManager(Config{
		RemoteURL: os.Getenv("DYNRESP_CHROME_URL"),
		NoSandbox: true,
	})
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_ScreenshotAndPDF(t *testing.T) {
	m := chromeManager(t)
	ctx := context.Background()
	markup := []byte(`<html><body><h1>dynresp</h1></body></html>`)

	png, err := m.Screenshot(ctx, markup)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("not a PNG: % x", png[:8])
	}

	pdf, err := m.PDF(ctx, markup, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("not a PDF: %q", pdf[:8])
	}
}

func TestManager_ConcurrentRendersAndRecycle(t *testing.T) {
	m := chromeManager(t)
	if m.cfg.RemoteURL != "" {
		t.Skip("remote browsers are never recycled")
	}
	m.cfg.RecycleInterval = time.Nanosecond
	ctx := context.Background()

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := m.Screenshot(ctx, []byte("<p>concurrent</p>"))
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}

	if !m.recycleIfIdle() {
		t.Fatal("idle browser past its lifetime was not recycled")
	}
	if m.Running() {
		t.Error("browser still attached after recycle")
	}
	if _, err := m.Screenshot(ctx, []byte("<p>after recycle</p>")); err != nil {
		t.Fatal(err)
	}
}

func TestManager_RelaunchesAfterCrash(t *testing.T) {
	// WHAT: A render after Chrome died relaunches it instead of failing.
	// WHY: a cached dead handle would fail every image and PDF until recycle.
	m := chromeManager(t)
	if m.cfg.RemoteURL != "" {
		t.Skip("cannot kill a remote browser")
	}
	ctx := context.Background()
	if _, err := m.Screenshot(ctx, []byte("<p>before</p>")); err != nil {
		t.Fatal(err)
	}

	m.mu.RLock()
	dead := m.browser
	m.lnch.Kill()
	m.mu.RUnlock()
	waitDead(t, dead)

	if _, err := m.Screenshot(ctx, []byte("<p>after crash</p>")); err != nil {
		t.Fatalf("render after crash: %v", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.browser == nil || m.browser == dead {
		t.Error("dead browser still cached")
	}
}

func TestManager_RenderTimeoutReachesChrome(t *testing.T) {
	// WHAT: The render deadline applies to opening the context and page too.
	m := chromeManager(t)
	ctx := context.Background()
	if _, err := m.Screenshot(ctx, []byte("<p>warm</p>")); err != nil {
		t.Fatal(err)
	}
	m.cfg.RenderTimeout = time.Nanosecond
	if _, err := m.Screenshot(ctx, []byte("<p>late</p>")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if !m.Running() {
		t.Error("a timed-out render discarded a healthy browser")
	}
}

func waitDead(t *testing.T, b *rod.Browser) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		_, err := b.Context(ctx).Version()
		cancel()
		if err != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("killed browser still answers")
}

func TestManager_StartIsLazy(t *testing.T) {
	// WHAT: Start does not launch Chrome; Close stops the monitor.
	// WHY: the server must boot on hosts without Chrome installed.
	m := NewManager(Config{Bin: "/nonexistent/chrome"})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Running() {
		t.Error("Start launched a browser")
	}
	m.Close()
	if err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("start after close: %v", err)
	}
}
