package browser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Screenshot renders markup in a fresh page and captures the viewport as PNG.
func (m *Manager) Screenshot(ctx context.Context, markup []byte) ([]byte, error) {
	var png []byte
	err := m.withPage(ctx, markup, func(p *rod.Page) error {
		var err error
		png, err = p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			return fmt.Errorf("browser: screenshot: %w", err)
		}
		return nil
	})
	return png, err
}

// PDF renders markup in a fresh page and prints it with backgrounds.
func (m *Manager) PDF(ctx context.Context, markup []byte, scale float64) ([]byte, error) {
	var pdf []byte
	err := m.withPage(ctx, markup, func(p *rod.Page) error {
		r, err := p.PDF(&proto.PagePrintToPDF{
			PrintBackground: true,
			Scale:           &scale,
		})
		if err != nil {
			return fmt.Errorf("browser: print: %w", err)
		}
		defer r.Close()
		pdf, err = io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("browser: read pdf stream: %w", err)
		}
		return nil
	})
	return pdf, err
}

// withPage holds one concurrency slot and one incognito page for the
// duration of fn. Both are released on every path, including a cancelled
// ctx or a Chrome crash. A browser that stopped answering is discarded and
// the page is retried once on a fresh one.
func (m *Manager) withPage(ctx context.Context, markup []byte, fn func(*rod.Page) error) error {
	if err := m.slots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.slots.Release(1)

	ctx, cancel := context.WithTimeout(ctx, m.cfg.RenderTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		b, err := m.ensure()
		if err != nil {
			return err
		}
		err = m.renderPage(ctx, b, markup, fn)
		var lost *lostError
		if !errors.As(err, &lost) {
			return err
		}
		if ctx.Err() != nil || !m.discardIfDead(b) || attempt > 0 {
			return lost.err
		}
	}
}

// lostError marks a failure to open a page, which may mean Chrome is gone.
type lostError struct{ err error }

func (e *lostError) Error() string { return e.err.Error() }
func (e *lostError) Unwrap() error { return e.err }

func (m *Manager) renderPage(ctx context.Context, b *rod.Browser, markup []byte, fn func(*rod.Page) error) error {
	incog, err := b.Context(ctx).Incognito()
	if err != nil {
		return &lostError{fmt.Errorf("browser: incognito context: %w", err)}
	}
	defer closeDetached(incog)

	var page *rod.Page
	if m.cfg.Stealth {
		page, err = stealth.Page(incog)
	} else {
		page, err = incog.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return &lostError{fmt.Errorf("browser: create page: %w", err)}
	}

	if len(m.cfg.ResourceBlocking) > 0 {
		stop := applyResourceBlocking(page, m.cfg.ResourceBlocking)
		defer stop()
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("browser: viewport: %w", err)
	}
	if err := page.SetDocumentContent(string(markup)); err != nil {
		return fmt.Errorf("browser: load markup: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load", "error", err)
	}
	return fn(page)
}

// closeDetached disposes the incognito context, and every page in it, even
// when the request context is already done.
func closeDetached(incog *rod.Browser) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = incog.Context(ctx).Close()
}
