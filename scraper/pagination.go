package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/simhash"
	"github.com/use-agent/harvest/sources"
)

// PaginationWalker accumulates listing items across consecutive pages in a
// single session.
type PaginationWalker struct {
	pipeline *Pipeline
}

// NewPaginationWalker creates a walker that reads pages with p.
func NewPaginationWalker(p *Pipeline) *PaginationWalker {
	return &PaginationWalker{pipeline: p}
}

// Walk reads up to maxPages listing pages, following the source's next-page
// control. A missing control, a failed activation or a page whose items are
// within src.RepeatDistance of the previous page's ends the walk early with
// the items gathered so far. maxPages below 1 is treated as 1.
func (w *PaginationWalker) Walk(ctx context.Context, src *sources.Source, maxPages int) (rec *models.PagedListingRecord, err error) {
	p := w.pipeline
	start := time.Now()
	defer func() { p.metrics.observeExtraction(src.ID, start, err) }()

	if maxPages < 1 {
		maxPages = 1
	}
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

	var (
		title   string
		items   []models.Item
		visited int
		prevFP  uint64
	)
	for {
		lp, err := p.readListing(ctx, s, src, chains)
		if err != nil {
			return nil, err
		}

		names := make([]string, len(lp.items))
		for i, it := range lp.items {
			names[i] = it.Name
		}
		fp := simhash.FingerprintItems(names)
		if visited > 0 && simhash.Similar(fp, prevFP, src.RepeatDistance) {
			slog.Warn("next page repeated the previous one, stopping",
				"source", src.ID, "url", s.page.URL(), "pagesVisited", visited,
				"distance", simhash.Distance(fp, prevFP))
			break
		}
		prevFP = fp

		if visited == 0 {
			title = lp.title
		}
		items = append(items, lp.items...)
		visited++
		p.metrics.pageVisited(src.ID)

		if visited >= maxPages || !src.Paginated() {
			break
		}
		if !w.advance(ctx, s, src) {
			break
		}
	}

	listing, err := p.finalizeListing(src, title, items)
	if err != nil {
		return nil, err
	}
	rec = &models.PagedListingRecord{ListingRecord: *listing, PagesVisited: visited}
	if err := models.ValidateRecord(rec); err != nil {
		return nil, err
	}
	slog.Info("pagination finished",
		"source", src.ID, "pagesVisited", visited, "items", len(items), "maxPages", maxPages)
	return rec, nil
}

// advance activates the next-page control and reports whether a new page
// loaded. Absence of the control is the normal end of a listing.
func (w *PaginationWalker) advance(ctx context.Context, s *Session, src *sources.Source) bool {
	has, err := s.page.Has(ctx, src.NextSelector)
	if err != nil || !has {
		slog.Debug("no next page control", "source", src.ID, "selector", src.NextSelector)
		return false
	}

	nctx, cancel := withTimeout(ctx, src.ListingWait.Timeout)
	defer cancel()
	if err := s.page.ClickAndWait(nctx, src.NextSelector); err != nil {
		if !errors.Is(err, browser.ErrNotFound) {
			slog.Warn("next page activation failed, stopping", "source", src.ID, "error", err)
		}
		return false
	}
	if err := w.pipeline.sleep(ctx, src.SettleDelay); err != nil {
		return false
	}
	return true
}
