package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// RodLauncher starts a local headless Chromium through go-rod.
type RodLauncher struct{}

// NewRodLauncher returns a Launcher backed by go-rod.
func NewRodLauncher() *RodLauncher {
	return &RodLauncher{}
}

// Launch starts Chromium and connects to it over CDP. On any failure the
// browser process is killed before returning, so no half-open handle is left.
func (RodLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox)

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-setuid-sandbox"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	return &rodBrowser{browser: b, launcher: l, opts: opts}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     LaunchOptions
}

// NewPage opens a tab and installs stealth scripts, extra headers and the
// resource blocker. These must precede the first navigation to take effect.
func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	// Drop the launch context so later calls are bound per operation.
	page = page.Context(context.Background())

	if b.opts.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	if len(b.opts.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(b.opts.Headers),
		}.Call(page)
	}

	return &rodPage{
		page:   page,
		router: mountBlocker(page, b.opts.BlockedResourceTypes, b.opts.BlockAds),
	}, nil
}

// Close disconnects and kills the browser process.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	return err
}

type rodPage struct {
	page    *rod.Page
	router  *rod.HijackRouter
	timeout time.Duration
}

// bind returns the page bound to ctx, or to the default timeout when ctx
// has no deadline.
func (r *rodPage) bind(ctx context.Context) (*rod.Page, context.CancelFunc) {
	ctx, cancel := withDefaultTimeout(ctx, r.timeout)
	return r.page.Context(ctx), cancel
}

func (r *rodPage) Goto(ctx context.Context, url string, until WaitUntil) error {
	p, cancel := r.bind(ctx)
	defer cancel()

	// The idle waiter must be registered before Navigate or it misses the
	// requests fired by the initial load and returns immediately.
	var waitIdle func()
	if until == WaitNetworkIdle && r.router == nil {
		waitIdle = p.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)
	}

	if err := p.Navigate(url); err != nil {
		return err
	}

	switch until {
	case WaitLoad:
		return p.WaitLoad()
	case WaitNetworkIdle:
		if waitIdle == nil {
			// WaitRequestIdle conflicts with the hijack router's Fetch domain.
			return p.WaitDOMStable(300*time.Millisecond, 0.1)
		}
		waitIdle()
		return p.GetContext().Err()
	default:
		return nil
	}
}

func (r *rodPage) SetUserAgent(ua string) error {
	return r.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
}

func (r *rodPage) SetDefaultTimeout(d time.Duration) {
	r.timeout = d
}

func (r *rodPage) URL() string {
	info, err := r.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (r *rodPage) HTML(ctx context.Context) (string, error) {
	p, cancel := r.bind(ctx)
	defer cancel()
	return p.HTML()
}

func (r *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	p, cancel := r.bind(ctx)
	defer cancel()
	has, _, err := p.Has(selector)
	return has, err
}

func (r *rodPage) WaitForSelector(ctx context.Context, selector string) error {
	p, cancel := r.bind(ctx)
	defer cancel()
	return p.WaitElementsMoreThan(selector, 0)
}

func (r *rodPage) WaitForCondition(ctx context.Context, js string, args ...any) error {
	p, cancel := r.bind(ctx)
	defer cancel()
	return p.Wait(rod.Eval(js, args...))
}

const textContainsJS = `(fragments) => {
	const body = document.body;
	const text = body ? (body.textContent || body.innerText || '') : '';
	return fragments.every(f => text.includes(f));
}`

func (r *rodPage) WaitForText(ctx context.Context, fragments ...string) error {
	return r.WaitForCondition(ctx, textContainsJS, fragments)
}

func (r *rodPage) Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	p, cancel := r.bind(ctx)
	defer cancel()
	res, err := p.Eval(js, args...)
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

func (r *rodPage) ScrollHeight(ctx context.Context) (int, error) {
	v, err := r.Evaluate(ctx, `() => document.body ? document.body.scrollHeight : 0`)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

func (r *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := r.Evaluate(ctx, `() => { window.scrollTo(0, document.body ? document.body.scrollHeight : 0); }`)
	return err
}

func (r *rodPage) ClickAndWait(ctx context.Context, selector string) error {
	p, cancel := r.bind(ctx)
	defer cancel()

	has, el, err := p.Has(selector)
	if err != nil {
		return err
	}
	if !has {
		return ErrNotFound
	}

	wait := p.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	wait()
	return p.GetContext().Err()
}

func (r *rodPage) Close() error {
	if r.router != nil {
		_ = r.router.Stop()
	}
	return r.page.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
