package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loandesk/loan-doc-processor/internal/config"
	"github.com/loandesk/loan-doc-processor/internal/core/usecase"
	"github.com/loandesk/loan-doc-processor/internal/infrastructure/llm/gemini"
	"github.com/loandesk/loan-doc-processor/internal/infrastructure/normalizer"
	natsqueue "github.com/loandesk/loan-doc-processor/internal/infrastructure/queue/nats"
	"github.com/loandesk/loan-doc-processor/internal/infrastructure/repository/postgres"
	"github.com/loandesk/loan-doc-processor/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Stream *natsqueue.Stream
	Ledger *postgres.VerificationRepository

	ProcessUC *usecase.ProcessApplicationUseCase
	VerifyUC  *usecase.VerifyUseCase
	ReportUC  *usecase.ReportUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ledger := postgres.NewVerificationRepository(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	stream, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event stream: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		MaxAttempts:         cfg.LLMMaxAttempts,
		BreakerEnabled:      true,
		BreakerMinRequests:  uint32(cfg.BreakerMinRequests),
		BreakerFailureRatio: cfg.BreakerFailureRatio,
		BreakerOpenTimeout:  time.Duration(cfg.BreakerOpenSeconds) * time.Second,
	})
	client := gemini.New(cfg.GeminiURL, cfg.GeminiModel, cfg.GeminiAPIKey, gemini.Options{
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		Executor:          executor,
	})

	processUC := usecase.NewProcessApplicationUseCase(
		normalizer.New(),
		gemini.NewExtractor(client),
		gemini.NewCrossValidator(client),
		gemini.NewSummarizer(client),
		stream,
		logger,
		cfg.MaxConcurrentExtractions,
	)
	verifyUC := usecase.NewVerifyUseCase(ledger, stream, logger)
	reportUC := usecase.NewReportUseCase(ledger)

	return &App{
		Config: cfg,
		Stream: stream,
		Ledger: ledger,

		ProcessUC: processUC,
		VerifyUC:  verifyUC,
		ReportUC:  reportUC,

		closeFn: func() {
			stream.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
