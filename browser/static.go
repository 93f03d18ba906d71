package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	tls "github.com/refraction-networking/utls"
	"github.com/ysmood/gson"
	"golang.org/x/net/html"
)

// FetchRequest describes one static document fetch.
type FetchRequest struct {
	URL       string
	UserAgent string
	Headers   map[string]string
}

// FetchResult is a fetched HTML document.
type FetchResult struct {
	HTML       string
	FinalURL   string
	StatusCode int
}

// Fetcher retrieves raw HTML for the static engine.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error)
}

// chromeH1Spec is a Chrome ClientHello with ALPN limited to http/1.1, since
// net/http cannot speak h2 over a utls connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// HTTPFetcher fetches pages over HTTP with a Chrome TLS fingerprint.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher. proxy may be an http(s) proxy URL or empty.
func NewHTTPFetcher(proxy string) *HTTPFetcher {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("static: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("static: build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", req.UserAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("static: do request: %w", err)
	}
	defer resp.Body.Close()

	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("static: read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("static: HTTP %d for %s", resp.StatusCode, req.URL)
	}

	return &FetchResult{
		HTML:       string(body),
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}, nil
}

// MemoryFetcher serves fixed documents keyed by absolute URL. Unknown URLs
// fail as a 404 would.
type MemoryFetcher map[string]string

func (m MemoryFetcher) Fetch(ctx context.Context, req FetchRequest) (*FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := m[req.URL]
	if !ok {
		return nil, fmt.Errorf("static: HTTP 404 for %s", req.URL)
	}
	return &FetchResult{HTML: doc, FinalURL: req.URL, StatusCode: http.StatusOK}, nil
}

// StaticLauncher opens pages that are fetched over plain HTTP and queried
// without executing scripts.
type StaticLauncher struct {
	fetcher Fetcher
}

// NewStaticLauncher returns a launcher using f, or an HTTPFetcher built from
// the launch options when f is nil.
func NewStaticLauncher(f Fetcher) *StaticLauncher {
	return &StaticLauncher{fetcher: f}
}

func (l *StaticLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := l.fetcher
	if f == nil {
		f = NewHTTPFetcher(opts.Proxy)
	}
	return &staticBrowser{fetcher: f, headers: opts.Headers}, nil
}

type staticBrowser struct {
	fetcher Fetcher
	headers map[string]string

	mu     sync.Mutex
	closed bool
}

func (b *staticBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("static: browser is closed")
	}
	return &staticPage{fetcher: b.fetcher, headers: b.headers, ua: DefaultUserAgent}, nil
}

func (b *staticBrowser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

type staticPage struct {
	fetcher Fetcher
	headers map[string]string
	ua      string
	timeout time.Duration

	url string
	raw string
	doc *goquery.Document
}

func (p *staticPage) Goto(ctx context.Context, target string, _ WaitUntil) error {
	ctx, cancel := withDefaultTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.fetcher.Fetch(ctx, FetchRequest{URL: target, UserAgent: p.ua, Headers: p.headers})
	if err != nil {
		return err
	}
	root, err := html.Parse(strings.NewReader(res.HTML))
	if err != nil {
		return fmt.Errorf("static: parse %s: %w", target, err)
	}

	p.url = res.FinalURL
	p.raw = res.HTML
	p.doc = goquery.NewDocumentFromNode(root)
	slog.Debug("static page loaded",
		"url", p.url,
		"title", strings.TrimSpace(p.doc.Find("title").First().Text()),
		"bytes", len(res.HTML),
	)
	return nil
}

func (p *staticPage) SetUserAgent(ua string) error {
	p.ua = ua
	return nil
}

func (p *staticPage) SetDefaultTimeout(d time.Duration) {
	p.timeout = d
}

func (p *staticPage) URL() string { return p.url }

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	if p.doc == nil {
		return "", errors.New("static: no document loaded")
	}
	var buf bytes.Buffer
	for _, n := range p.doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func (p *staticPage) Has(ctx context.Context, selector string) (bool, error) {
	if p.doc == nil {
		return false, nil
	}
	return p.doc.Find(selector).Length() > 0, nil
}

// WaitForSelector fails immediately when nothing matches: a static document
// never changes after load.
func (p *staticPage) WaitForSelector(ctx context.Context, selector string) error {
	ok, _ := p.Has(ctx, selector)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return nil
}

func (p *staticPage) WaitForCondition(ctx context.Context, js string, args ...any) error {
	return ErrUnsupported
}

func (p *staticPage) WaitForText(ctx context.Context, fragments ...string) error {
	if p.doc == nil {
		return fmt.Errorf("%w: no document", ErrNotFound)
	}
	body := p.doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	text := body.Text()
	for _, f := range fragments {
		if !strings.Contains(text, f) {
			return fmt.Errorf("%w: text %q", ErrNotFound, f)
		}
	}
	return nil
}

func (p *staticPage) Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	return gson.JSON{}, ErrUnsupported
}

// ScrollHeight reports the document size, which is fixed once loaded.
func (p *staticPage) ScrollHeight(ctx context.Context) (int, error) {
	return len(p.raw), nil
}

func (p *staticPage) ScrollToBottom(ctx context.Context) error { return nil }

// ClickAndWait follows the href of the first matching element.
func (p *staticPage) ClickAndWait(ctx context.Context, selector string) error {
	if p.doc == nil {
		return ErrNotFound
	}
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return ErrNotFound
	}
	href, ok := sel.Attr("href")
	if !ok {
		href, ok = sel.Closest("a").Attr("href")
	}
	if !ok || strings.TrimSpace(href) == "" {
		return fmt.Errorf("%w: %s has no link target", ErrUnsupported, selector)
	}

	base, err := url.Parse(p.url)
	if err != nil {
		return fmt.Errorf("static: current url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return fmt.Errorf("static: link %q: %w", href, err)
	}
	return p.Goto(ctx, base.ResolveReference(ref).String(), WaitLoad)
}

func (p *staticPage) Close() error {
	p.doc = nil
	p.raw = ""
	return nil
}
