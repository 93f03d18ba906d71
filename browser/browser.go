// Package browser defines the automation capability the extraction engine
// consumes, with a go-rod implementation for JavaScript-rendered sources and
// a static HTTP implementation for sources that need no script execution.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/ysmood/gson"
)

// ErrUnsupported is returned by engines that cannot perform an operation,
// e.g. script evaluation on the static engine.
var ErrUnsupported = errors.New("browser: operation not supported by this engine")

// ErrNotFound is returned when a selector matches nothing on the page.
var ErrNotFound = errors.New("browser: element not found")

// WaitUntil selects the lifecycle point Goto waits for.
type WaitUntil int

const (
	// WaitNone returns as soon as navigation is committed.
	WaitNone WaitUntil = iota
	// WaitLoad waits for the load event.
	WaitLoad
	// WaitNetworkIdle waits until the page has no in-flight requests.
	WaitNetworkIdle
)

func (w WaitUntil) String() string {
	switch w {
	case WaitLoad:
		return "load"
	case WaitNetworkIdle:
		return "network_idle"
	default:
		return "none"
	}
}

// LaunchOptions controls how a Browser is started.
type LaunchOptions struct {
	Headless  bool
	NoSandbox bool

	// Bin overrides the Chromium binary path.
	Bin string

	// Proxy is the proxy URL used for all page traffic.
	Proxy string

	// Stealth injects anti-automation-detection evasions into new pages.
	Stealth bool

	// BlockedResourceTypes lists resource types to block
	// ("Image", "Stylesheet", "Font", "Media", "Script").
	BlockedResourceTypes []string

	// BlockAds blocks requests to well-known ad and tracking domains.
	BlockAds bool

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string
}

// Launcher starts browser instances.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser instance.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab. Every blocking method honours the context deadline;
// when ctx carries no deadline the page's default timeout applies.
type Page interface {
	// Goto navigates to url and waits for the given lifecycle point.
	Goto(ctx context.Context, url string, until WaitUntil) error

	SetUserAgent(ua string) error
	SetDefaultTimeout(d time.Duration)

	// URL returns the address of the current document.
	URL() string

	// HTML returns the serialized current document.
	HTML(ctx context.Context) (string, error)

	// Has reports whether selector matches at least one element, without waiting.
	Has(ctx context.Context, selector string) (bool, error)

	WaitForSelector(ctx context.Context, selector string) error

	// WaitForCondition polls the JS predicate until it returns true.
	WaitForCondition(ctx context.Context, js string, args ...any) error

	// WaitForText waits until the document text contains every fragment.
	WaitForText(ctx context.Context, fragments ...string) error

	// Evaluate runs js against the live document and returns its result.
	Evaluate(ctx context.Context, js string, args ...any) (gson.JSON, error)

	// ScrollHeight returns the total scrollable height of the document.
	ScrollHeight(ctx context.Context) (int, error)
	ScrollToBottom(ctx context.Context) error

	// ClickAndWait activates the first element matching selector and waits
	// for the resulting navigation. It returns ErrNotFound when nothing matches.
	ClickAndWait(ctx context.Context, selector string) error

	Close() error
}

// DefaultUserAgent is the fixed identifying agent string applied to pages.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// withDefaultTimeout derives a context bounded by d unless ctx already
// carries a deadline.
func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
