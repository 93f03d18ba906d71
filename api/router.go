package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/harvest/api/handler"
	"github.com/use-agent/harvest/api/middleware"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/scraper"
	"github.com/use-agent/harvest/sources"
	"github.com/use-agent/harvest/webhook"
)

// Services bundles what the routes need.
type Services struct {
	Runner   *scraper.Runner
	Registry *sources.Registry
	Cache    *cache.Cache
	Webhook  *webhook.Notifier
	Gatherer prometheus.Gatherer
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics are outside auth so monitoring probes always work.
func NewRouter(svc Services, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if svc.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")

	// Health needs no auth.
	v1.GET("/health", handler.Health(svc.Runner, startTime))

	// Protected group: auth and rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/sources", handler.Sources(svc.Registry))
	protected.POST("/extract", handler.Extract(svc.Runner, svc.Registry, svc.Cache, svc.Webhook, cfg.Pagination.MaxPages, cfg.Session.RequestTimeout))

	return r
}
