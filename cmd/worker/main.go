package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/asn-portal/internal/bootstrap"
	"github.com/kirillkom/asn-portal/internal/config"
	"github.com/kirillkom/asn-portal/internal/core/domain"
	"github.com/kirillkom/asn-portal/internal/observability/logging"
	"github.com/kirillkom/asn-portal/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.NATSEnabled {
		slog.Error("worker_requires_nats", "hint", "set NATS_ENABLED=true")
		os.Exit(1)
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Database:   true,
		Bus:        true,
		ClientName: "asn-worker",
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Bus.SubscribeVerificationCompleted(ctx, func(handlerCtx context.Context, event domain.VerificationCompleted) error {
		workerMetrics.StartEvent()
		started := time.Now()
		if !event.VerifiedAt.IsZero() {
			workerMetrics.ObserveEventLag(started.Sub(event.VerifiedAt))
		}

		recordCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Second)
		defer cancel()
		queued, err := app.Reviews.Record(recordCtx, event)
		workerMetrics.FinishEvent(time.Since(started), queued, err)
		if err == nil && queued {
			slog.Info("review_queued", "event_id", event.ID, "status", event.Status, "score", event.Score)
		}
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
