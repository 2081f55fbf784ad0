package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/asn-portal/internal/adapters/http"
	"github.com/kirillkom/asn-portal/internal/bootstrap"
	"github.com/kirillkom/asn-portal/internal/config"
	"github.com/kirillkom/asn-portal/internal/observability/logging"
	"github.com/kirillkom/asn-portal/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("api", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Database:        true,
		Bus:             true,
		Verifier:        true,
		ClientName:      "asn-api",
		Metrics:         httpMetrics,
		BreakerListener: httpMetrics.RecordBreakerState,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.RunTempJanitor(ctx, cfg.TempMaxAge)

	router := httpadapter.NewRouter(cfg, app.Verifier, app.Checklist, app.Reviews, httpMetrics).Handler()
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "addr", server.Addr, "ocr_provider", cfg.OCRProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
