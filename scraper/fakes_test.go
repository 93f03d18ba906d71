package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/ysmood/gson"
)

// eventLog records handle operations in call order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeLauncher struct {
	launchErr error
	browser   *fakeBrowser
	launches  int
}

func (l *fakeLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	l.launches++
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	return l.browser, nil
}

type fakeBrowser struct {
	log      *eventLog
	page     *fakePage
	pageErr  error
	closeErr error
	closed   int
}

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	b.log.add("browser.close")
	return b.closeErr
}

// fakePage is a scripted page. heights drives ScrollHeight: call n returns
// heights(n).
type fakePage struct {
	log *eventLog

	ua      string
	timeout time.Duration
	uaErr   error

	gotoErr   error
	blockGoto bool
	waitErr   error
	gotoURLs  []string
	lastUntil browser.WaitUntil

	heights     func(call int) (int, error)
	heightCalls int
	scrolls     int

	textErr   error
	blockText bool

	closeErr     error
	panicOnClose bool
	closed       int
}

func newFakeSession(log *eventLog) (*fakeLauncher, *fakeBrowser, *fakePage) {
	p := &fakePage{log: log}
	b := &fakeBrowser{log: log, page: p}
	return &fakeLauncher{browser: b}, b, p
}

func (p *fakePage) Goto(ctx context.Context, url string, until browser.WaitUntil) error {
	p.gotoURLs = append(p.gotoURLs, url)
	p.lastUntil = until
	if p.blockGoto {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.gotoErr
}

func (p *fakePage) SetUserAgent(ua string) error {
	p.ua = ua
	return p.uaErr
}

func (p *fakePage) SetDefaultTimeout(d time.Duration) { p.timeout = d }

func (p *fakePage) URL() string {
	if len(p.gotoURLs) == 0 {
		return ""
	}
	return p.gotoURLs[len(p.gotoURLs)-1]
}

func (p *fakePage) HTML(ctx context.Context) (string, error) { return "<html></html>", nil }

func (p *fakePage) Has(ctx context.Context, selector string) (bool, error) { return false, nil }

func (p *fakePage) WaitForSelector(ctx context.Context, selector string) error { return p.waitErr }

func (p *fakePage) WaitForCondition(ctx context.Context, js string, args ...any) error {
	return browser.ErrUnsupported
}

func (p *fakePage) WaitForText(ctx context.Context, fragments ...string) error {
	if p.blockText {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.textErr
}

func (p *fakePage) Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	return gson.JSON{}, browser.ErrUnsupported
}

func (p *fakePage) ScrollHeight(ctx context.Context) (int, error) {
	n := p.heightCalls
	p.heightCalls++
	if p.heights == nil {
		return 1000, nil
	}
	return p.heights(n)
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error {
	p.scrolls++
	return ctx.Err()
}

func (p *fakePage) ClickAndWait(ctx context.Context, selector string) error {
	return browser.ErrNotFound
}

func (p *fakePage) Close() error {
	p.closed++
	p.log.add("page.close")
	if p.panicOnClose {
		panic("target crashed")
	}
	return p.closeErr
}

// sequence returns a height script that walks through hs and then repeats
// the last value.
func sequence(hs ...int) func(int) (int, error) {
	return func(call int) (int, error) {
		if call >= len(hs) {
			return hs[len(hs)-1], nil
		}
		return hs[call], nil
	}
}

// fakeClock is an injectable sleep that advances virtual time.
type fakeClock struct {
	elapsed time.Duration
	sleeps  int
	failAt  int
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	if c.failAt > 0 && c.sleeps >= c.failAt {
		return context.Canceled
	}
	c.elapsed += d
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// trackingLauncher wraps a launcher and records whether every browser it
// handed out was closed.
type trackingLauncher struct {
	inner    browser.Launcher
	browsers []*trackingBrowser
}

func (l *trackingLauncher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	b, err := l.inner.Launch(ctx, opts)
	if err != nil {
		return nil, err
	}
	tb := &trackingBrowser{Browser: b}
	l.browsers = append(l.browsers, tb)
	return tb, nil
}

func (l *trackingLauncher) allClosed() bool {
	for _, b := range l.browsers {
		if b.closes != 1 {
			return false
		}
	}
	return len(l.browsers) > 0
}

type trackingBrowser struct {
	browser.Browser
	closes int
}

func (b *trackingBrowser) Close() error {
	b.closes++
	return b.Browser.Close()
}

var errBoom = errors.New("boom")

func htmlPage(body string) string {
	return "<html><head><title>Fixture</title></head><body>" + strings.TrimSpace(body) + "</body></html>"
}
