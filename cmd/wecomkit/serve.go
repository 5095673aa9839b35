package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/wecomkit/internal/adapter/driving/http"
	"github.com/ericfisherdev/wecomkit/internal/application"
	"github.com/ericfisherdev/wecomkit/internal/config"
	"github.com/ericfisherdev/wecomkit/internal/domain/model"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the callback URL, JS-SDK config and metrics",
		Long: `Serve the WeCom callback URL on WECOMKIT_LISTEN_ADDR.

Routes:
  GET  /callback               URL verification
  POST /callback               encrypted notifications
  GET  /api/v1/jssdk/config    signed JS-SDK parameters (?url=&scope=agent|corp)
  GET  /api/v1/health          health check
  GET  /metrics                Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr, true)
	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"cache_mode", cfg.CacheMode,
		"callback_enabled", cfg.HasCallback(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Metrics registry with runtime collectors.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 4. Wire store, upstream client and credential services.
	a, err := newApp(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Error("error closing credential store", "error", closeErr)
		}
	}()

	// 5. Callback channel (optional).
	var callbacks *application.CallbackService
	if cfg.HasCallback() {
		callbacks, err = application.NewCallbackService(cfg.Token, cfg.EncodingAESKey, cfg.CorpID, logger, a.metrics)
		if err != nil {
			return fmt.Errorf("callback channel: %w", err)
		}
	} else {
		logger.Warn("WECOMKIT_TOKEN or WECOMKIT_ENCODING_AES_KEY not set, callback routes disabled")
	}

	// 6. JS-SDK signing.
	jssdk := application.NewJSSDKService(a.creds, cfg.CorpID, cfg.AgentID, corpTicketScope(cfg))

	// 7. HTTP handler with middleware.
	h := httphandler.NewHandler(callbacks, application.LogSink{Logger: logger}, jssdk, logger)
	handler := httphandler.NewServeMux(h, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 8. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// 9. Graceful shutdown with 10s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// corpTicketScope is the scope whose token signs corp-level JS-SDK configs.
func corpTicketScope(cfg *config.Config) model.SecretScope {
	if _, ok := cfg.Secrets()[model.ScopeCorp]; ok {
		return model.ScopeCorp
	}
	return defaultScope(cfg)
}
