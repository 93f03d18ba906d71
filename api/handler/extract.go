package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/scraper"
	"github.com/use-agent/harvest/sources"
	"github.com/use-agent/harvest/webhook"
)

// Extract returns a handler for POST /api/v1/extract.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults, resolve the source.
//  2. Serve from cache when max_age allows.
//  3. Runner.Run → validated record   (records extraction_ms)
//  4. Store in cache, notify webhook, respond.
//
// timeout bounds the queue wait plus the extraction; zero leaves only the
// client's own deadline.
func Extract(rn *scraper.Runner, reg *sources.Registry, cc *cache.Cache, wh *webhook.Notifier, maxPages int, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err), models.TimingInfo{})
			return
		}
		req.Defaults()
		if maxPages > 0 && req.MaxPages > maxPages {
			req.MaxPages = maxPages
		}

		src, ok := reg.Get(req.Source)
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeUnknownSource, "unknown source: "+req.Source, nil), models.TimingInfo{})
			return
		}

		// ── 2. Cache lookup ────────────────────────────────────────
		key := cache.Key(src.ID, req.MaxPages)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(key, req.MaxAge); hit {
				c.JSON(http.StatusOK, models.ExtractResponse{
					Success:     true,
					Kind:        cached.Kind(),
					Data:        cached,
					CacheStatus: "hit",
					Timing:      models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()},
				})
				return
			}
		}

		// ── 3. Extract ──────────────────────────────────────────────
		ctx := c.Request.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		extractStart := time.Now()
		rec, err := rn.Run(ctx, src, req.MaxPages)
		timing := models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			ExtractionMs: time.Since(extractStart).Milliseconds(),
		}

		if err != nil {
			slog.Warn("extraction failed", "source", src.ID, "error", err)
			if req.WebhookURL != "" && wh != nil {
				wh.DeliverAsync(req.WebhookURL, webhook.NewFailed(src.ID, models.AsScrapeError(err).ToDetail()))
			}
			respondError(c, err, timing)
			return
		}

		// ── 4. Cache store, webhook, respond ────────────────────────
		resp := models.ExtractResponse{
			Success: true,
			Kind:    rec.Kind(),
			Data:    rec,
			Timing:  timing,
		}
		if cc != nil && req.MaxAge > 0 {
			cc.Set(key, rec)
			resp.CacheStatus = "miss"
		}
		if req.WebhookURL != "" && wh != nil {
			wh.DeliverAsync(req.WebhookURL, webhook.NewCompleted(src.ID, rec))
		}

		c.JSON(http.StatusOK, resp)
	}
}
