// Package scraper runs extractions against a browser session: it owns the
// session lifecycle, stabilizes lazily loaded pages and turns a source
// description into a validated record.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/models"
)

// WaitKind is what Navigate waits for after the document starts loading.
type WaitKind int

const (
	WaitNetworkIdle WaitKind = iota
	WaitSelectorPresent
	WaitNone
)

func (k WaitKind) String() string {
	switch k {
	case WaitNetworkIdle:
		return "network_idle"
	case WaitSelectorPresent:
		return "selector_present"
	default:
		return "none"
	}
}

// WaitCondition is a navigation wait. Selector is used by WaitSelectorPresent.
type WaitCondition struct {
	Kind     WaitKind
	Selector string
}

// NavigationTarget is a URL to load and how long to wait for it.
type NavigationTarget struct {
	URL     string
	Wait    WaitCondition
	Timeout time.Duration
}

// Session is one browser and one page, owned by a single extraction.
type Session struct {
	id      string
	browser browser.Browser
	page    browser.Page
	counted bool
}

// Ready reports whether both handles are held.
func (s *Session) Ready() bool {
	return s != nil && s.browser != nil && s.page != nil
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Page returns the page handle, or nil when the session is not ready.
func (s *Session) Page() browser.Page {
	if !s.Ready() {
		return nil
	}
	return s.page
}

// SessionOptions configures every session a manager opens.
type SessionOptions struct {
	Launch            browser.LaunchOptions
	DefaultTimeout    time.Duration
	NavigationTimeout time.Duration
	UserAgent         string
}

// SessionManager opens, navigates and tears down sessions.
type SessionManager struct {
	launcher browser.Launcher
	opts     SessionOptions
	metrics  *Metrics
}

// NewSessionManager creates a manager. metrics may be nil.
func NewSessionManager(l browser.Launcher, opts SessionOptions, m *Metrics) *SessionManager {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 30 * time.Second
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = browser.DefaultUserAgent
	}
	return &SessionManager{launcher: l, opts: opts, metrics: m}
}

// Open launches a browser and opens one page on it. On any failure the
// partially acquired handles are released before the LaunchError is returned.
func (m *SessionManager) Open(ctx context.Context) (*Session, error) {
	s := &Session{id: uuid.NewString()}

	b, err := m.launcher.Launch(ctx, m.opts.Launch)
	if err != nil {
		m.Close(s)
		return nil, models.NewLaunchError("browser engine could not start", err)
	}
	s.browser = b

	page, err := b.NewPage(ctx)
	if err != nil {
		m.Close(s)
		return nil, models.NewLaunchError("could not open a page", err)
	}
	s.page = page

	page.SetDefaultTimeout(m.opts.DefaultTimeout)
	if err := page.SetUserAgent(m.opts.UserAgent); err != nil {
		m.Close(s)
		return nil, models.NewLaunchError("could not set user agent", err)
	}

	s.counted = true
	m.metrics.sessionOpened()
	slog.Debug("session opened", "session", s.id)
	return s, nil
}

// Navigate loads target.URL and waits for target.Wait within target.Timeout
// (the manager's navigation timeout when zero).
func (m *SessionManager) Navigate(ctx context.Context, s *Session, target NavigationTarget) error {
	if !s.Ready() {
		return models.NewSessionNotReadyError(target.URL)
	}

	timeout := target.Timeout
	if timeout <= 0 {
		timeout = m.opts.NavigationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	until := browser.WaitNone
	switch target.Wait.Kind {
	case WaitNetworkIdle:
		until = browser.WaitNetworkIdle
	case WaitSelectorPresent:
		until = browser.WaitLoad
	}

	start := time.Now()
	if err := s.page.Goto(ctx, target.URL, until); err != nil {
		return models.NewNavigationError(target.URL, navFailure(ctx, "navigation failed"), err)
	}
	if target.Wait.Kind == WaitSelectorPresent && target.Wait.Selector != "" {
		if err := s.page.WaitForSelector(ctx, target.Wait.Selector); err != nil {
			msg := fmt.Sprintf("selector %q did not appear", target.Wait.Selector)
			return models.NewNavigationError(target.URL, navFailure(ctx, msg), err)
		}
	}

	slog.Debug("navigated",
		"session", s.id,
		"url", target.URL,
		"wait", target.Wait.Kind.String(),
		"elapsed", time.Since(start),
	)
	return nil
}

func navFailure(ctx context.Context, msg string) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return msg + ": timed out"
	}
	return msg
}

// Close releases the page and then the browser. Release failures are logged
// and swallowed. It is safe on a nil, never-opened or already closed session,
// and leaves the session not ready in every case.
func (m *SessionManager) Close(s *Session) {
	if s == nil {
		return
	}
	page, b := s.page, s.browser
	s.page, s.browser = nil, nil

	if page != nil {
		release(s.id, "page", page.Close)
	}
	if b != nil {
		release(s.id, "browser", b.Close)
	}
	if s.counted {
		s.counted = false
		m.metrics.sessionClosed()
		slog.Debug("session closed", "session", s.id)
	}
}

// IsReady reports whether s can be navigated.
func (m *SessionManager) IsReady(s *Session) bool {
	return s.Ready()
}

func release(id, handle string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("session: release panicked", "session", id, "handle", handle, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		slog.Warn("session: release failed", "session", id, "handle", handle, "error", err)
	}
}
