package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/harvest/extract"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sources"
)

// Pipeline turns a source description into a record. Each call opens its
// own session and closes it before returning, on every path. Calls on one
// Pipeline must not overlap.
type Pipeline struct {
	sessions   *SessionManager
	stabilizer *Stabilizer
	metrics    *Metrics
	stabilize  StabilizeOptions

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline. stabilize supplies the bounds for sources
// that leave them unset.
func NewPipeline(sm *SessionManager, st *Stabilizer, m *Metrics, stabilize StabilizeOptions) *Pipeline {
	return &Pipeline{
		sessions:   sm,
		stabilizer: st,
		metrics:    m,
		stabilize:  stabilize.withDefaults(DefaultStabilizeOptions()),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// Extract runs the extraction matching the source's kind.
func (p *Pipeline) Extract(ctx context.Context, src *sources.Source) (models.Record, error) {
	switch src.Kind {
	case sources.KindListing:
		rec, err := p.ExtractListing(ctx, src)
		if err != nil {
			return nil, err
		}
		return rec, nil
	case sources.KindLatestPost:
		rec, err := p.ExtractLatestPost(ctx, src)
		if err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("source %q has unsupported kind %q", src.ID, src.Kind), nil)
	}
}

// ExtractListing reads every repeating item on the source's listing page.
func (p *Pipeline) ExtractListing(ctx context.Context, src *sources.Source) (rec *models.ListingRecord, err error) {
	start := time.Now()
	defer func() { p.metrics.observeExtraction(src.ID, start, err) }()

	chains, err := compiled(src)
	if err != nil {
		return nil, err
	}

	s, err := p.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer p.sessions.Close(s)

	if err := p.openListing(ctx, s, src); err != nil {
		return nil, err
	}
	lp, err := p.readListing(ctx, s, src, chains)
	if err != nil {
		return nil, err
	}
	return p.finalizeListing(src, lp.title, lp.items)
}

// ExtractLatestPost resolves the first post on the source's listing page and,
// when the source has a detail page, its engagement count.
func (p *Pipeline) ExtractLatestPost(ctx context.Context, src *sources.Source) (rec *models.LatestPostRecord, err error) {
	start := time.Now()
	defer func() { p.metrics.observeExtraction(src.ID, start, err) }()

	chains, err := compiled(src)
	if err != nil {
		return nil, err
	}

	s, err := p.sessions.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer p.sessions.Close(s)

	if err := p.openListing(ctx, s, src); err != nil {
		return nil, err
	}
	doc, err := snapshot(ctx, s)
	if err != nil {
		return nil, err
	}

	card := doc.Find(src.ItemSelector).First()
	if card.Length() == 0 {
		return nil, models.NewNoRecordError(src.BaseURL, "no posts on listing page")
	}

	title := extract.Resolve(card, chains.Title)
	author := extract.Resolve(card, chains.Author)
	if title.IsSentinel() || author.IsSentinel() {
		return nil, models.NewNoRecordError(src.BaseURL,
			fmt.Sprintf("mandatory fields unresolved (title=%t, author=%t)", !title.IsSentinel(), !author.IsSentinel()))
	}
	slog.Debug("post resolved",
		"source", src.ID,
		"titleStrategy", title.StrategyIndex,
		"authorStrategy", author.StrategyIndex,
	)

	rec = &models.LatestPostRecord{
		Title:  title.Value,
		Author: author.Value,
		Source: src.ID,
	}
	if link := extract.Resolve(card, chains.PostURL); !link.IsSentinel() {
		if abs, ok := absoluteURL(src.BaseURL, link.Value); ok {
			rec.PostURL = &abs
		}
	}

	if src.Detail != nil && rec.PostURL != nil {
		rec.Comments = p.readDetail(ctx, s, src, *rec.PostURL)
	}

	rec.ScrapedAt = p.now().UTC()
	if err := models.ValidateRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

type listingPage struct {
	title string
	items []models.Item
}

// openListing navigates to the source's listing and lets it settle.
func (p *Pipeline) openListing(ctx context.Context, s *Session, src *sources.Source) error {
	target := NavigationTarget{
		URL:     src.BaseURL,
		Wait:    waitCondition(src.ListingWait),
		Timeout: src.ListingWait.Timeout,
	}
	if err := p.sessions.Navigate(ctx, s, target); err != nil {
		return err
	}
	if err := p.sleep(ctx, src.SettleDelay); err != nil {
		return models.NewNavigationError(src.BaseURL, "interrupted while settling", err)
	}
	return nil
}

// readListing resolves items from the page currently loaded in s.
func (p *Pipeline) readListing(ctx context.Context, s *Session, src *sources.Source, chains sources.Chains) (*listingPage, error) {
	doc, err := snapshot(ctx, s)
	if err != nil {
		return nil, err
	}
	pageURL := s.page.URL()

	cards := doc.Find(src.ItemSelector)
	if cards.Length() == 0 {
		return nil, models.NewNoRecordError(pageURL, "no repeating items on listing page")
	}

	lp := &listingPage{}
	cards.Each(func(i int, card *goquery.Selection) {
		name := extract.Resolve(card, chains.ItemName)
		if name.IsSentinel() {
			slog.Debug("listing item dropped: name unresolved", "source", src.ID, "index", i)
			return
		}
		item := models.Item{Name: name.Value}
		if price := extract.Resolve(card, chains.ItemPrice); !price.IsSentinel() {
			item.Price = price.Value
		}
		lp.items = append(lp.items, item)
	})
	if len(lp.items) == 0 {
		return nil, models.NewNoRecordError(pageURL, "no listing item resolved a name")
	}

	lp.title = src.Label
	if t := extract.Resolve(doc.Selection, chains.PageTitle); !t.IsSentinel() {
		lp.title = t.Value
	}
	return lp, nil
}

func (p *Pipeline) finalizeListing(src *sources.Source, title string, items []models.Item) (*models.ListingRecord, error) {
	rec := &models.ListingRecord{
		SourceTitle: title,
		Items:       items,
		ScrapedAt:   p.now().UTC(),
		Source:      src.ID,
	}
	if err := models.ValidateRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// readDetail loads the post page and mines its engagement count. Every
// failure degrades to an unknown count.
func (p *Pipeline) readDetail(ctx context.Context, s *Session, src *sources.Source, postURL string) *int {
	d := src.Detail
	log := slog.With("source", src.ID, "url", postURL)

	target := NavigationTarget{URL: postURL, Wait: WaitCondition{Kind: WaitNetworkIdle}, Timeout: d.NavigationTimeout}
	if err := p.sessions.Navigate(ctx, s, target); err != nil {
		log.Warn("detail page unreachable, count unknown", "error", err)
		p.metrics.countLookup(src.ID, false)
		return nil
	}
	if p.sleep(ctx, d.SettleDelay) != nil {
		return nil
	}

	if d.WaitSelector != "" {
		wctx, cancel := withTimeout(ctx, d.WaitTimeout)
		err := s.page.WaitForSelector(wctx, d.WaitSelector)
		cancel()
		if err != nil {
			log.Debug("detail selector missing, reading body", "selector", d.WaitSelector, "error", err)
		}
	}
	if p.sleep(ctx, d.ReadyDelay) != nil {
		return nil
	}

	opts := StabilizeOptions{
		StepDelay:            d.Stabilize.StepDelay,
		MaxIterations:        d.Stabilize.MaxIterations,
		RequiredStableStreak: d.Stabilize.RequiredStableStreak,
		TailCycles:           d.Stabilize.TailCycles,
	}.withDefaults(p.stabilize)
	p.stabilizer.Stabilize(ctx, s.page, opts)

	if p.stabilizer.WaitForMarker(ctx, s.page, MarkerOptions{Fragments: d.MarkerFragments, Timeout: d.MarkerTimeout}) {
		if p.sleep(ctx, d.MarkerSettle) != nil {
			return nil
		}
	}

	doc, err := snapshot(ctx, s)
	if err != nil {
		log.Warn("detail snapshot failed, count unknown", "error", err)
		p.metrics.countLookup(src.ID, false)
		return nil
	}
	n, ok := extract.NewMiner(d.CountSingular, d.CountPlural).Mine(extract.PageText(doc), extract.Headings(doc))
	p.metrics.countLookup(src.ID, ok)
	if !ok {
		log.Debug("no count on detail page")
		return nil
	}
	return &n
}

// snapshot parses the document currently loaded in s.
func snapshot(ctx context.Context, s *Session) (*goquery.Document, error) {
	raw, err := s.page.HTML(ctx)
	if err != nil {
		return nil, models.NewNavigationError(s.page.URL(), "could not read page", err)
	}
	doc, err := extract.ParseDocument(raw)
	if err != nil {
		return nil, models.NewNavigationError(s.page.URL(), "could not parse page", err)
	}
	return doc, nil
}

func compiled(src *sources.Source) (sources.Chains, error) {
	chains, err := src.Chains()
	if err != nil {
		return sources.Chains{}, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid source", err)
	}
	return chains, nil
}

func waitCondition(w sources.WaitSpec) WaitCondition {
	switch w.Kind {
	case sources.WaitSelector:
		return WaitCondition{Kind: WaitSelectorPresent, Selector: w.Selector}
	case sources.WaitNone:
		return WaitCondition{Kind: WaitNone}
	default:
		return WaitCondition{Kind: WaitNetworkIdle}
	}
}

// absoluteURL resolves ref against base. Only http(s) results are accepted.
func absoluteURL(base, ref string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	u := b.ResolveReference(r)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
