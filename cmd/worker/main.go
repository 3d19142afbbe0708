package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loandesk/loan-doc-processor/internal/bootstrap"
	"github.com/loandesk/loan-doc-processor/internal/config"
	natsqueue "github.com/loandesk/loan-doc-processor/internal/infrastructure/queue/nats"
	"github.com/loandesk/loan-doc-processor/internal/observability/logging"
	"github.com/loandesk/loan-doc-processor/internal/observability/metrics"
)

const serviceName = "loan-doc-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Stream.Subscribe(ctx, func(handlerCtx context.Context, event natsqueue.PipelineEvent) error {
		workerMetrics.ObserveEventLag(serviceName, event.Kind, time.Since(event.OccurredAt))

		switch event.Kind {
		case natsqueue.EventApplicationProcessed:
			logger.Info("application processed",
				"application_id", event.ApplicationID,
				"documents", event.DocumentCount,
				"recommendation", event.Recommendation,
				"degraded", event.Degraded,
			)
		case natsqueue.EventVerificationApproved:
			logger.Info("verification approved",
				"application_id", event.ApplicationID,
				"filename", event.Filename,
			)
		default:
			logger.Warn("unknown pipeline event", "kind", event.Kind)
		}

		workerMetrics.RecordEvent(serviceName, event.Kind, nil)
		return nil
	})
	if err != nil {
		logger.Error("worker subscribe failed", "error", err)
		os.Exit(1)
	}
}
