// Package app assembles the extraction stack from configuration.
package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/scraper"
	"github.com/use-agent/harvest/sources"
)

// Engine names accepted in BrowserConfig.Engine.
const (
	EngineRod    = "rod"
	EngineStatic = "static"
)

// App holds the wired components shared by the CLI, the HTTP server and the
// MCP server.
type App struct {
	Config   *config.Config
	Registry *sources.Registry
	Metrics  *scraper.Metrics
	Gatherer *prometheus.Registry
	Runner   *scraper.Runner
}

// Option customises New.
type Option func(*options)

type options struct {
	launcher browser.Launcher
}

// WithLauncher replaces the engine selected by configuration.
func WithLauncher(l browser.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// New builds an App from cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := sources.NewDefaultRegistry(cfg.Sources.File)
	if err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	launcher := o.launcher
	engine := "custom"
	if launcher == nil {
		launcher, engine, err = newLauncher(cfg.Browser)
		if err != nil {
			return nil, err
		}
	}

	gatherer := prometheus.NewRegistry()
	gatherer.MustRegister(collectors.NewGoCollector())
	metrics := scraper.NewMetrics(gatherer)

	sm := scraper.NewSessionManager(launcher, scraper.SessionOptions{
		Launch: browser.LaunchOptions{
			Headless:             cfg.Browser.Headless,
			NoSandbox:            cfg.Browser.NoSandbox,
			Bin:                  cfg.Browser.Bin,
			Proxy:                cfg.Browser.Proxy,
			Stealth:              cfg.Browser.Stealth,
			BlockedResourceTypes: cfg.Browser.BlockedResourceTypes,
			BlockAds:             cfg.Browser.BlockAds,
		},
		DefaultTimeout:    cfg.Session.DefaultTimeout,
		NavigationTimeout: cfg.Session.NavigationTimeout,
		UserAgent:         cfg.Session.UserAgent,
	}, metrics)

	pipeline := scraper.NewPipeline(sm, scraper.NewStabilizer(metrics), metrics, scraper.StabilizeOptions{
		StepDelay:            cfg.Stabilizer.StepDelay,
		MaxIterations:        cfg.Stabilizer.MaxIterations,
		RequiredStableStreak: cfg.Stabilizer.RequiredStableStreak,
		TailCycles:           cfg.Stabilizer.TailCycles,
	})

	slog.Debug("extraction stack ready", "engine", engine, "sources", reg.IDs())

	return &App{
		Config:   cfg,
		Registry: reg,
		Metrics:  metrics,
		Gatherer: gatherer,
		Runner:   scraper.NewRunner(pipeline, engine),
	}, nil
}

func newLauncher(cfg config.BrowserConfig) (browser.Launcher, string, error) {
	switch cfg.Engine {
	case EngineRod, "":
		return browser.NewRodLauncher(), EngineRod, nil
	case EngineStatic:
		return browser.NewStaticLauncher(browser.NewHTTPFetcher(cfg.Proxy)), EngineStatic, nil
	default:
		return nil, "", fmt.Errorf("unknown browser engine %q (want %q or %q)", cfg.Engine, EngineRod, EngineStatic)
	}
}

// InitLogger configures slog based on the LogConfig.
func InitLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
