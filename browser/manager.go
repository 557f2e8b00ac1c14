package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("browser: manager is closed")

const (
	probeTimeout = 2 * time.Second
	closeTimeout = 5 * time.Second
)

// Manager owns the Chrome process. Chrome is launched on first use. It is
// replaced after a crash, or once it has lived longer than RecycleInterval
// while no render is in flight.
type Manager struct {
	cfg   Config
	slots *semaphore.Weighted

	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
	stop    context.CancelFunc
}

// NewManager creates a browser Manager. Chrome is not started yet.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		cfg:   cfg,
		slots: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Start runs the recycle monitor until ctx is done or Close is called.
// Chrome itself is launched (or connected to) by the first render, so a
// host without Chrome still serves every other representation.
func (m *Manager) Start(ctx context.Context) error {
	mctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return ErrClosed
	}
	if m.stop != nil {
		m.stop()
	}
	m.stop = cancel
	m.mu.Unlock()

	go m.monitorLoop(mctx)
	return nil
}

// Close shuts Chrome down. In-flight renders fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	m.cleanup()
	return nil
}

// Running reports whether a Chrome process is currently connected.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// ensure returns the live browser, launching it if needed.
func (m *Manager) ensure() (*rod.Browser, error) {
	m.mu.RLock()
	b, closed := m.browser, m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if b != nil {
		return b, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}
	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()
	return b, nil
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(true).Leakless(true)
		if m.cfg.Bin != "" {
			l = l.Bin(m.cfg.Bin)
		}
		if m.cfg.NoSandbox {
			l = l.NoSandbox(true)
		}
		l = l.Set("disable-gpu").Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if m.lnch != nil {
			m.lnch.Cleanup()
			m.lnch = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return b, nil
}

// cleanup must be called with mu held.
func (m *Manager) cleanup() {
	if m.browser != nil {
		if m.cfg.RemoteURL == "" {
			m.browser.Close()
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

// recycleIfIdle drops a locally launched Chrome past its lifetime.
// Holding every slot guarantees no render is using it; the next call
// relaunches lazily.
func (m *Manager) recycleIfIdle() bool {
	m.mu.RLock()
	due := m.cfg.RemoteURL == "" && m.browser != nil && time.Since(m.startAt) > m.cfg.RecycleInterval
	m.mu.RUnlock()
	if !due {
		return false
	}
	if !m.slots.TryAcquire(int64(m.cfg.MaxConcurrent)) {
		return false
	}
	defer m.slots.Release(int64(m.cfg.MaxConcurrent))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.startAt))
	m.cleanup()
	return true
}

// discardIfDead drops b when it no longer answers so the next call
// relaunches (or reconnects). A browser already replaced is left alone.
func (m *Manager) discardIfDead(b *rod.Browser) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if _, err := b.Context(ctx).Version(); err == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != b {
		return false
	}
	m.cfg.Logger.Warn("browser: connection lost, discarding")
	m.cleanup()
	return true
}

func (m *Manager) monitorLoop(ctx context.Context) {
	interval := m.cfg.RecycleInterval / 4
	if interval > 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.recycleIfIdle()
		}
	}
}
