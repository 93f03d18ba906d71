package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/use-agent/harvest/api"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/webhook"
)

func newServeCmd(load func() *config.Config, factory Factory) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := load()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg, factory)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (env HARVEST_PORT)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config, factory Factory) error {
	slog.Info("harvest starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Browser.Engine,
	)

	// ── 1. Extraction stack ─────────────────────────────────────────
	a, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("initialise extraction stack: %w", err)
	}
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled without API keys, API is open")
	}

	// ── 2. Cache and webhooks ───────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()
	wh := webhook.NewNotifier(cfg.Webhook.Secret, cfg.Webhook.Timeout)

	// ── 3. Router and server ────────────────────────────────────────
	router := api.NewRouter(api.Services{
		Runner:   a.Runner,
		Registry: a.Registry,
		Cache:    cc,
		Webhook:  wh,
		Gatherer: a.Gatherer,
	}, cfg, time.Now())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 4. Graceful shutdown ────────────────────────────────────────
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// An extraction may hold the session for a while; give it time to close
	// its browser.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("harvest stopped")
	return nil
}
