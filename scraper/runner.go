package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sources"
	"golang.org/x/sync/semaphore"
)

// Runner serializes extractions. Only one session is open at a time; callers
// queue on the runner instead of launching browsers side by side.
type Runner struct {
	pipeline *Pipeline
	walker   *PaginationWalker
	engine   string

	sem  *semaphore.Weighted
	busy atomic.Bool
}

// NewRunner creates a Runner. engine names the browser engine for reporting.
func NewRunner(p *Pipeline, engine string) *Runner {
	return &Runner{
		pipeline: p,
		walker:   NewPaginationWalker(p),
		engine:   engine,
		sem:      semaphore.NewWeighted(1),
	}
}

// Run extracts one record from src. Listing sources walk up to pages pages
// when pages > 1; other kinds ignore pages. A caller whose ctx ends while
// another extraction holds the runner gives up its place in the queue.
func (r *Runner) Run(ctx context.Context, src *sources.Source, pages int) (models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "request cancelled while queued", err)
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "request cancelled while queued", err)
	}
	r.busy.Store(true)
	defer func() {
		r.busy.Store(false)
		r.sem.Release(1)
	}()

	if src.Kind == sources.KindListing && pages > 1 {
		slog.Debug("walking listing", "source", src.ID, "max_pages", pages)
		rec, err := r.walker.Walk(ctx, src, pages)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return r.pipeline.Extract(ctx, src)
}

// Busy reports whether an extraction is in progress.
func (r *Runner) Busy() bool { return r.busy.Load() }

// Engine returns the configured engine name.
func (r *Runner) Engine() string { return r.engine }
